package ingest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/r58io/core-service/internal/apperr"
	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/eventbus"
	"github.com/r58io/core-service/internal/logging"
	"github.com/r58io/core-service/internal/metrics"
	"github.com/r58io/core-service/internal/probe"
	"golang.org/x/sync/errgroup"
)

// Publisher is the narrow event-bus handle the supervisor needs to announce
// signal and preview transitions (C3 -> C5). Mirrors internal/recorder's
// Publisher so both managers depend on the same shape rather than the
// concrete eventbus.Bus type.
type Publisher interface {
	Publish(eventType, deviceID string, payload map[string]interface{}) eventbus.Event
}

// allPipelineStates lists every State value, for zeroing inactive states in
// the pipeline_state gauge when a camera transitions.
var allPipelineStates = []string{
	string(StateIdle), string(StateStarting), string(StateStreaming),
	string(StateNoSignal), string(StateStopping), string(StateError),
}

// CameraStatus is the read-only snapshot Status()/StatusOne() return. It is
// the only view of a camera's pipeline exposed outside this package.
type CameraStatus struct {
	CameraID  string                    `json:"camera_id"`
	Label     string                    `json:"label"`
	Variant   Variant                   `json:"variant"`
	State     State                     `json:"state"`
	Caps      probe.CaptureCapabilities `json:"capabilities"`
	LastError string                    `json:"last_error,omitempty"`
	Retries   int                       `json:"retries"`
}

// PreviewPathFunc resolves the broker publish path for a camera's live
// preview. Kept as an injected function rather than an internal/broker
// import so internal/ingest has no dependency on the broker package.
type PreviewPathFunc func(cameraID string) string

type cameraEntry struct {
	cfg      config.CameraConfig
	pipeline *Pipeline
	caps     probe.CaptureCapabilities
	retries  int
	timer    *time.Timer
	probed   bool
}

// Supervisor starts, stops, and health-monitors one pipeline per configured
// camera (C3). All mutating operations and status reads take the same
// coarse mutex, per spec.md §4.3's "observers read under the same lock".
type Supervisor struct {
	mu      sync.Mutex
	cameras map[string]*cameraEntry

	cfg         config.IngestConfig
	prober      *probe.Prober
	previewPath PreviewPathFunc
	pub         Publisher
	logger      *logging.Logger
	dispatcher  *dispatcher

	healthTicker   *time.Ticker
	healthStop     chan struct{}
	healthDone     chan struct{}
	healthStopOnce sync.Once
}

// NewSupervisor constructs a Supervisor for the given camera fleet. It does
// not start any pipeline; call StartAll or Start per camera.
func NewSupervisor(cfg config.IngestConfig, cameras []config.CameraConfig, prober *probe.Prober, previewPath PreviewPathFunc, pub Publisher, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.GetLogger("ingest.supervisor")
	}
	s := &Supervisor{
		cameras:     make(map[string]*cameraEntry, len(cameras)),
		cfg:         cfg,
		prober:      prober,
		previewPath: previewPath,
		pub:         pub,
		logger:      logger,
		dispatcher:  newDispatcher(logger),
		healthStop:  make(chan struct{}),
		healthDone:  make(chan struct{}),
	}
	for _, cam := range cameras {
		variant := VariantSubscriber
		if cam.PipelineVariant == string(VariantValve) {
			variant = VariantValve
		}
		s.cameras[cam.ID] = &cameraEntry{
			cfg: cam,
			pipeline: newPipeline(cam.ID, GraphSpec{Variant: variant}, s.dispatcher.changes),
		}
	}
	go s.dispatcher.run()
	return s
}

// VariantFor implements the narrow lookup internal/recorder uses to pick
// SubscriberRecorder vs ValveRecorder for a camera without importing
// internal/ingest's internals.
func (s *Supervisor) VariantFor(cameraID string) (Variant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cameras[cameraID]
	if !ok {
		return "", false
	}
	return entry.pipeline.spec.Variant, true
}

// OpenValve opens camera's recording valve (Variant B only).
func (s *Supervisor) OpenValve(cameraID string) error {
	s.mu.Lock()
	entry, ok := s.cameras[cameraID]
	s.mu.Unlock()
	if !ok {
		return apperr.New("ingest.OpenValve", apperr.KindPipelineRuntimeError, cameraID)
	}
	return entry.pipeline.OpenValve()
}

// CloseValve closes camera's recording valve (Variant B only).
func (s *Supervisor) CloseValve(cameraID string) error {
	s.mu.Lock()
	entry, ok := s.cameras[cameraID]
	s.mu.Unlock()
	if !ok {
		return apperr.New("ingest.CloseValve", apperr.KindPipelineRuntimeError, cameraID)
	}
	return entry.pipeline.CloseValve()
}

// Start probes cameraID, builds its graph, and starts its pipeline. Devices
// with no signal are left in StateNoSignal and scheduled for health-loop
// retry rather than treated as an error.
func (s *Supervisor) Start(ctx context.Context, cameraID string) error {
	s.mu.Lock()
	entry, ok := s.cameras[cameraID]
	s.mu.Unlock()
	if !ok {
		return apperr.New("ingest.Start", apperr.KindPipelineStartFailed, cameraID)
	}
	return s.startEntry(ctx, cameraID, entry)
}

func (s *Supervisor) startEntry(ctx context.Context, cameraID string, entry *cameraEntry) error {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	var caps probe.CaptureCapabilities
	var err error
	if entry.cfg.Subdevice != "" {
		caps, err = s.prober.InitializeBridge(probeCtx, entry.cfg.DevicePath, entry.cfg.Subdevice)
	} else {
		caps, err = s.prober.Probe(probeCtx, entry.cfg.DevicePath)
	}

	s.mu.Lock()
	prevCaps := entry.caps
	entry.probed = true
	entry.caps = caps
	s.mu.Unlock()

	if err != nil {
		s.scheduleRetry(cameraID, entry)
		return apperr.Wrap("ingest.Start", apperr.KindDeviceBusy, cameraID, err)
	}

	if prevCaps.HasSignal != caps.HasSignal {
		s.publishSignalChanged(cameraID, caps)
	}

	if !caps.HasSignal {
		entry.pipeline.MarkNoSignal()
		return nil
	}

	width, height, fps := caps.Width, caps.Height, caps.Framerate
	if width == 0 {
		width = entry.cfg.DefaultWidth
	}
	if height == 0 {
		height = entry.cfg.DefaultHeight
	}
	if fps == 0 {
		fps = entry.cfg.DefaultFramerate
	}

	params := BuildParams{
		DevicePath:       entry.cfg.DevicePath,
		Width:            width,
		Height:           height,
		Framerate:        fps,
		PreviewBitrate:   entry.cfg.PreviewBitrate,
		RecordingBitrate: entry.cfg.RecordingBitrate,
		PreviewPath:      s.previewPath(cameraID),
	}

	var spec GraphSpec
	if entry.pipeline.spec.Variant == VariantValve {
		spec = BuildVariantB(params)
	} else {
		spec = BuildVariantA(params)
	}
	entry.pipeline.spec = spec

	startCtx, startCancel := context.WithTimeout(ctx, s.cfg.PipelineStartTimeout)
	defer startCancel()

	if err := entry.pipeline.Start(startCtx); err != nil {
		s.scheduleRetry(cameraID, entry)
		return classifyStartError(cameraID, err)
	}

	s.mu.Lock()
	entry.retries = 0
	s.mu.Unlock()

	s.dispatcher.registerHandler(cameraID, func(change StateChange) {
		metrics.SetPipelineState(cameraID, allPipelineStates, string(change.State))
		switch change.State {
		case StateStreaming:
			s.publishPreview("preview.started", cameraID)
		case StateIdle, StateNoSignal, StateError:
			s.publishPreview("preview.stopped", cameraID)
		}
		if change.State == StateError {
			s.logger.WithField("camera_id", cameraID).WithError(change.Err).
				Warn("pipeline reported runtime error")
		}
	})

	return nil
}

// publishSignalChanged announces an input.signal_changed transition for
// cameraID, carrying the capabilities observed at the moment of the edge
// (spec.md §7: no-signal is raised as an event on transition, not a failure).
func (s *Supervisor) publishSignalChanged(cameraID string, caps probe.CaptureCapabilities) {
	if s.pub == nil {
		return
	}
	s.pub.Publish("input.signal_changed", cameraID, map[string]interface{}{
		"has_signal": caps.HasSignal,
		"width":      caps.Width,
		"height":     caps.Height,
		"framerate":  caps.Framerate,
	})
}

// publishPreview announces a preview.started/preview.stopped transition for
// cameraID.
func (s *Supervisor) publishPreview(eventType, cameraID string) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(eventType, cameraID, map[string]interface{}{})
}

// scheduleRetry arms a per-camera retry timer with exponential backoff
// delay = min(2 * 2^attempt, 10) seconds, up to cfg.MaxRetries attempts,
// exactly as spec.md §4.3 mandates.
func (s *Supervisor) scheduleRetry(cameraID string, entry *cameraEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.retries >= s.cfg.MaxRetries {
		s.logger.WithField("camera_id", cameraID).Warn("max retries reached, giving up until next health check")
		return
	}

	delay := time.Duration(math.Min(2.0*math.Pow(2, float64(entry.retries)), 10.0) * float64(time.Second))
	entry.retries++

	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.timer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PipelineStartTimeout)
		defer cancel()
		_ = s.startEntry(ctx, cameraID, entry)
	})
}

// Stop stops cameraID's pipeline and cancels any pending retry timer.
func (s *Supervisor) Stop(ctx context.Context, cameraID string) error {
	s.mu.Lock()
	entry, ok := s.cameras[cameraID]
	if ok && entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}
	s.mu.Unlock()
	if !ok {
		return apperr.New("ingest.Stop", apperr.KindPipelineRuntimeError, cameraID)
	}

	s.dispatcher.unregisterHandler(cameraID)

	stopCtx, cancel := context.WithTimeout(ctx, s.cfg.PipelineStopTimeout)
	defer cancel()
	return entry.pipeline.Stop(stopCtx)
}

// StartAll starts every configured camera concurrently.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.cameras))
	for id, entry := range s.cameras {
		if entry.cfg.Enabled {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.Start(gctx, id); err != nil {
				s.logger.WithField("camera_id", id).WithError(err).Warn("camera failed to start during StartAll")
			}
			return nil
		})
	}
	return g.Wait()
}

// StopAll stops every running camera with a small inter-stop delay between
// dispatches, grounded on spec.md §4.3's staggered teardown requirement to
// avoid a thundering-herd of simultaneous pipeline teardowns.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.cameras))
	for id := range s.cameras {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		id := id
		delay := time.Duration(i) * s.cfg.InterStopDelay
		g.Go(func() error {
			select {
			case <-time.After(delay):
			case <-gctx.Done():
				return gctx.Err()
			}
			if err := s.Stop(gctx, id); err != nil {
				s.logger.WithField("camera_id", id).WithError(err).Warn("camera failed to stop during StopAll")
			}
			return nil
		})
	}
	return g.Wait()
}

// Status returns a snapshot of every configured camera. Cameras that are
// enabled but have never completed a probe are reported as no_signal
// stubs rather than omitted (SUPPLEMENTED: device-check fallback).
func (s *Supervisor) Status() map[string]CameraStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]CameraStatus, len(s.cameras))
	for id, entry := range s.cameras {
		out[id] = s.snapshotLocked(id, entry)
	}
	return out
}

// StatusOne returns the snapshot for a single camera.
func (s *Supervisor) StatusOne(cameraID string) (CameraStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cameras[cameraID]
	if !ok {
		return CameraStatus{}, false
	}
	return s.snapshotLocked(cameraID, entry), true
}

func (s *Supervisor) snapshotLocked(id string, entry *cameraEntry) CameraStatus {
	state, lastErr := entry.pipeline.snapshot()
	if !entry.probed {
		state = StateNoSignal
	}
	errText := ""
	if lastErr != nil {
		errText = lastErr.Error()
	}
	return CameraStatus{
		CameraID:  id,
		Label:     entry.cfg.Label,
		Variant:   entry.pipeline.spec.Variant,
		State:     state,
		Caps:      entry.caps,
		LastError: errText,
		Retries:   entry.retries,
	}
}

// StartHealthLoop starts the periodic health check goroutine. It must be
// called at most once per Supervisor lifetime.
func (s *Supervisor) StartHealthLoop(ctx context.Context) {
	interval := s.cfg.HealthCheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s.healthTicker = time.NewTicker(interval)

	go func() {
		defer close(s.healthDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.healthStop:
				return
			case <-s.healthTicker.C:
				s.runHealthCheck(ctx)
			}
		}
	}()
}

func (s *Supervisor) runHealthCheck(ctx context.Context) {
	s.mu.Lock()
	entries := make(map[string]*cameraEntry, len(s.cameras))
	for id, entry := range s.cameras {
		entries[id] = entry
	}
	s.mu.Unlock()

	for id, entry := range entries {
		if !entry.cfg.Enabled {
			continue
		}
		state, _ := entry.pipeline.snapshot()
		if state == StateNoSignal || state == StateIdle || !entry.probed {
			_ = s.startEntry(ctx, id, entry)
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
		caps, err := s.prober.Probe(probeCtx, entry.cfg.DevicePath)
		cancel()
		if err != nil {
			continue
		}

		if !caps.HasSignal && state == StateStreaming {
			s.publishSignalChanged(id, caps)
			entry.pipeline.MarkNoSignal()
			s.logger.WithField("camera_id", id).Info("signal lost, tearing down pipeline")
			_ = s.Stop(ctx, id)
			continue
		}

		if caps.HasSignal && state == StateStreaming && resolutionChanged(entry.caps, caps) {
			s.publishSignalChanged(id, caps)
			s.logger.WithField("camera_id", id).
				WithField("width", caps.Width).WithField("height", caps.Height).WithField("framerate", caps.Framerate).
				Info("signal resolution changed, rebuilding pipeline")
			_ = s.Stop(ctx, id)
			_ = s.startEntry(ctx, id, entry)
		}
	}
}

// resolutionChanged reports whether caps describes a different frame
// geometry than prev, the trigger for tearing down and rebuilding an
// actively streaming pipeline (spec.md §4.3, §8 boundary property: exactly
// one input.signal_changed edge per resolution change).
func resolutionChanged(prev, caps probe.CaptureCapabilities) bool {
	return prev.Width != caps.Width || prev.Height != caps.Height || prev.Framerate != caps.Framerate
}

// StopHealthLoop stops the health check goroutine and waits for it to exit.
// Safe to call more than once; only the first call has any effect.
func (s *Supervisor) StopHealthLoop() {
	s.healthStopOnce.Do(func() {
		if s.healthTicker == nil {
			return
		}
		close(s.healthStop)
		s.healthTicker.Stop()
		<-s.healthDone
	})
}

// Shutdown stops the health loop and the dispatch loop. It does not stop
// running pipelines; call StopAll first.
func (s *Supervisor) Shutdown() {
	s.StopHealthLoop()
	s.dispatcher.Stop()
}

var _ fmt.Stringer = Variant("")

func (v Variant) String() string { return string(v) }
