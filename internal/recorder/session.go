package recorder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/r58io/core-service/internal/apperr"
	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/logging"
	"github.com/r58io/core-service/internal/sysmetrics"
)

// Coordinator owns the at-most-one-active-session state machine (I4) under
// its own mutex, independent from internal/ingest's supervisor lock. It is
// the recorder set's public entry point: StartSession, StopSession, Status.
type Coordinator struct {
	cfg      config.RecorderConfig
	variants VariantLookup
	valves   ValveController
	puller   BrokerPuller
	pub      Publisher
	logger   *logging.Logger

	mu      sync.Mutex
	active  *Session
	stallCancel context.CancelFunc
}

// NewCoordinator builds a session coordinator. variants, valves and puller
// are the narrow collaborator interfaces internal/ingest.Supervisor and
// internal/broker.Client satisfy structurally; pub is the narrow slice of
// internal/eventbus.Bus used to announce lifecycle events.
func NewCoordinator(cfg config.RecorderConfig, variants VariantLookup, valves ValveController, puller BrokerPuller, pub Publisher, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		variants: variants,
		valves:   valves,
		puller:   puller,
		pub:      pub,
		logger:   logger,
	}
}

// recorderFor returns the cameraRecorder implementation for a camera's fixed
// pipeline variant. Variant is assigned once at ingest supervisor
// configuration time and never changes for a camera's lifetime (spec.md §9
// "do not mix").
func (c *Coordinator) recorderFor(cameraID string) (cameraRecorder, error) {
	v, ok := c.variants.VariantFor(cameraID)
	if !ok {
		return nil, apperr.New("recorder.Coordinator.recorderFor", apperr.KindDeviceBusy, cameraID)
	}
	switch v {
	case VariantSubscriber:
		return newSubscriberRecorder(c.puller), nil
	case VariantValve:
		return newValveRecorder(c.valves), nil
	default:
		return nil, apperr.New("recorder.Coordinator.recorderFor", apperr.KindPipelineStartFailed, cameraID)
	}
}

// StartSession validates the disk and session-conflict preflight, allocates
// one output file per requested camera, and starts the corresponding
// recorder for each. On any per-camera start failure, cameras already
// started in this call are rolled back before the error is returned.
func (c *Coordinator) StartSession(ctx context.Context, req StartSessionRequest) (SessionDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.State == SessionRecording {
		if req.IdempotencyKey != "" && req.IdempotencyKey == c.active.ID {
			return descriptorOf(c.active), nil
		}
		return SessionDescriptor{}, apperr.New("recorder.Coordinator.StartSession", apperr.KindSessionConflict, c.active.ID)
	}

	free, err := sysmetrics.FreeBytes(c.cfg.RecordingsRoot)
	if err != nil {
		return SessionDescriptor{}, apperr.Wrap("recorder.Coordinator.StartSession", apperr.KindStorageInsufficient, c.cfg.RecordingsRoot, err)
	}
	if int64(free) < c.cfg.StartFreeBytesMin {
		return SessionDescriptor{}, apperr.New("recorder.Coordinator.StartSession", apperr.KindStorageInsufficient, c.cfg.RecordingsRoot)
	}

	sessionID := req.IdempotencyKey
	if sessionID == "" {
		sessionID = "session_" + utcStamp()
	}

	sess := &Session{
		ID:         sessionID,
		Name:       req.Name,
		StartedAt:  time.Now().UTC(),
		State:      SessionRecording,
		Recordings: make(map[string]*Recording, len(req.Cameras)),
	}

	started := make([]*Recording, 0, len(req.Cameras))
	for _, camID := range req.Cameras {
		rec := &Recording{
			CameraID:   camID,
			OutputPath: c.outputPath(sessionID, camID),
			StartedAt:  time.Now().UTC(),
			State:      RecordingActive,
		}
		cr, err := c.recorderFor(camID)
		if err != nil {
			c.rollback(ctx, started)
			return SessionDescriptor{}, err
		}
		if err := cr.Start(ctx, rec); err != nil {
			c.rollback(ctx, started)
			return SessionDescriptor{}, err
		}
		sess.Recordings[camID] = rec
		started = append(started, rec)
	}

	c.active = sess
	c.pub.Publish("recorder.started", "", map[string]interface{}{"session_id": sessionID, "cameras": req.Cameras})

	stallCtx, cancel := context.WithCancel(context.Background())
	c.stallCancel = cancel
	go c.runStallLoop(stallCtx, sess)

	if c.cfg.WriteSidecarMetadata {
		if err := writeSidecarMetadata(c.cfg.RecordingsRoot, sess); err != nil && c.logger != nil {
			c.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to write session sidecar metadata")
		}
	}

	return descriptorOf(sess), nil
}

// rollback stops any recorders started earlier in a failed StartSession call.
// Best-effort: a rollback failure is logged, not propagated, since the
// original start error is what the caller needs to see.
func (c *Coordinator) rollback(ctx context.Context, started []*Recording) {
	for _, rec := range started {
		cr, err := c.recorderFor(rec.CameraID)
		if err != nil {
			continue
		}
		if err := cr.Stop(ctx, rec); err != nil && c.logger != nil {
			c.logger.WithError(err).WithField("camera_id", rec.CameraID).Warn("rollback stop failed")
		}
	}
}

// StopSession stops every active recording in the current session. A stop
// while nothing is recording is a success no-op; a stop naming a session
// other than the active one is a conflict.
func (c *Coordinator) StopSession(ctx context.Context, sessionID string) (SessionDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || c.active.State != SessionRecording {
		if c.active != nil {
			return descriptorOf(c.active), nil
		}
		return SessionDescriptor{}, nil
	}
	if sessionID != "" && sessionID != c.active.ID {
		return SessionDescriptor{}, apperr.New("recorder.Coordinator.StopSession", apperr.KindSessionConflict, sessionID)
	}

	sess := c.active
	c.stopLocked(ctx, sess)

	c.pub.Publish("recorder.stopped", "", map[string]interface{}{"session_id": sess.ID})
	return descriptorOf(sess), nil
}

// stopLocked finalizes every recording in sess, bounded by FinalizeTimeout.
// Called with c.mu held.
func (c *Coordinator) stopLocked(ctx context.Context, sess *Session) {
	if c.stallCancel != nil {
		c.stallCancel()
		c.stallCancel = nil
	}

	stopCtx, cancel := context.WithTimeout(ctx, c.cfg.FinalizeTimeout)
	defer cancel()

	for _, rec := range sess.Recordings {
		cr, err := c.recorderFor(rec.CameraID)
		if err != nil {
			rec.State = RecordingError
			rec.LastError = err.Error()
			continue
		}
		if err := cr.Stop(stopCtx, rec); err != nil {
			rec.State = RecordingError
			rec.LastError = err.Error()
			continue
		}
		rec.State = RecordingStopped
	}
	sess.State = SessionStopped
}

// Status returns the current session snapshot, or a zero-value descriptor
// with an empty ID if no session has ever been started.
func (c *Coordinator) Status() SessionDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return SessionDescriptor{}
	}
	return descriptorOf(c.active)
}

func (c *Coordinator) outputPath(sessionID, cameraID string) string {
	ext := c.cfg.ContainerExt
	if ext == "" {
		ext = "mp4"
	}
	name := fmt.Sprintf("%s_%s_%s.%s", sessionID, cameraID, utcStamp(), ext)
	return filepath.Join(c.cfg.RecordingsRoot, name)
}

func utcStamp() string {
	return time.Now().UTC().Format("20060102_150405")
}
