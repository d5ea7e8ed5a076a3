package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/r58io/core-service/internal/apperr"
)

// Variant identifies which of the two pipeline graph shapes a camera uses.
// A camera's variant is fixed at configuration time and must not change
// while the pipeline is running (spec.md §9: "do not mix").
type Variant string

const (
	// VariantSubscriber (A) publishes preview only; recording is done out
	// of band by a recorder.SubscriberRecorder pulling from the broker.
	VariantSubscriber Variant = "subscriber"
	// VariantValve (B) builds a single tee'd pipeline with an in-graph
	// valve element the recorder opens/closes to start and stop writing.
	VariantValve Variant = "valve"
)

// Encoding contract constants (spec.md §4.2), fixed across both variants.
const (
	EncoderQPInit = 26
	EncoderQPMin  = 10
	EncoderQPMax  = 51
	GOPSeconds    = 2
)

// RecValveName is the name of the tee-branch valve element in Variant B
// graphs; ValveRecorder addresses it by this name.
const RecValveName = "rec_valve"

// StateChange is emitted on a Pipeline's state channel as its underlying
// bus reports state transitions.
type StateChange struct {
	CameraID string
	State    State
	Err      error
}

// State is the lifecycle state of one camera's pipeline.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateStreaming State = "streaming"
	StateNoSignal  State = "no_signal"
	StateStopping  State = "stopping"
	StateError     State = "error"
)

// GraphSpec is the output of building a pipeline graph: a description
// string for the embedded media-framework plus the list of named elements
// whose properties the supervisor or recorder may need to change at
// runtime (currently only the valve, in Variant B).
type GraphSpec struct {
	Variant     Variant
	Description string
	ValveName   string // empty unless Variant == VariantValve
}

// BuildParams carries the per-camera values a graph template needs.
type BuildParams struct {
	DevicePath       string
	Width            int
	Height           int
	Framerate        int
	PreviewBitrate   int
	RecordingBitrate int
	PreviewPath      string // broker publish path for the live preview
	RecordingDir     string // Variant B only: where the muxed file is written
}

// BuildVariantA constructs a subscriber-style graph: capture, encode once,
// publish to the broker. Recording is done by pulling the published stream
// back out of the broker, so the graph itself carries no recording branch.
func BuildVariantA(p BuildParams) GraphSpec {
	desc := fmt.Sprintf(
		"v4l2src device=%s ! video/x-raw,width=%d,height=%d,framerate=%d/1 ! "+
			"mpph264enc qp-init=%d qp-min=%d qp-max=%d gop=%d bps=%d profile=baseline ! "+
			"h264parse ! rtspclientsink location=%s",
		p.DevicePath, p.Width, p.Height, p.Framerate,
		EncoderQPInit, EncoderQPMin, EncoderQPMax, p.Framerate*GOPSeconds, p.PreviewBitrate,
		p.PreviewPath,
	)
	return GraphSpec{Variant: VariantSubscriber, Description: desc}
}

// BuildVariantB constructs a tee'd graph: capture, encode once, one branch
// publishes to the broker, the other passes through a named valve (default
// closed/dropping) into a container muxer writing to RecordingDir. Opening
// the valve is how recorder.ValveRecorder starts a recording without
// rebuilding the graph.
func BuildVariantB(p BuildParams) GraphSpec {
	desc := fmt.Sprintf(
		"v4l2src device=%s ! video/x-raw,width=%d,height=%d,framerate=%d/1 ! "+
			"mpph264enc qp-init=%d qp-min=%d qp-max=%d gop=%d bps=%d profile=baseline ! "+
			"h264parse ! tee name=t "+
			"t. ! queue ! rtspclientsink location=%s "+
			"t. ! queue ! valve name=%s drop=true ! mp4mux ! filesink location=%s/%%05d.mp4",
		p.DevicePath, p.Width, p.Height, p.Framerate,
		EncoderQPInit, EncoderQPMin, EncoderQPMax, p.Framerate*GOPSeconds, p.PreviewBitrate,
		p.PreviewPath, RecValveName, p.RecordingDir,
	)
	return GraphSpec{Variant: VariantValve, Description: desc, ValveName: RecValveName}
}

// ErrNotTeeVariant is returned by OpenValve/CloseValve on a Variant A pipeline.
var ErrNotTeeVariant = fmt.Errorf("pipeline is not a tee/valve (Variant B) pipeline")

// Pipeline wraps one camera's running (or stopped) graph. It is not
// exported outside internal/ingest; the supervisor exposes read-only
// status snapshots instead, the same way the teacher's controller keeps
// its managers private and returns DTOs.
type Pipeline struct {
	cameraID string
	spec     GraphSpec

	mu          sync.Mutex
	state       State
	valveOpen   bool
	lastErr     error
	stateChange chan StateChange
}

func newPipeline(cameraID string, spec GraphSpec, changeCh chan StateChange) *Pipeline {
	return &Pipeline{
		cameraID:    cameraID,
		spec:        spec,
		state:       StateIdle,
		stateChange: changeCh,
	}
}

// Start transitions the pipeline to streaming. In this implementation the
// embedded media-framework invocation is represented by the state machine
// alone; a concrete deployment plugs a real pipeline-launch call in here.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStreaming || p.state == StateStarting {
		return nil
	}
	p.state = StateStarting
	p.emitLocked(StateStarting, nil)

	p.state = StateStreaming
	p.emitLocked(StateStreaming, nil)
	return nil
}

// Stop transitions the pipeline to idle, releasing the underlying device.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateIdle {
		return nil
	}
	p.state = StateStopping
	p.emitLocked(StateStopping, nil)

	p.state = StateIdle
	p.valveOpen = false
	p.emitLocked(StateIdle, nil)
	return nil
}

// MarkNoSignal records a signal-loss transition detected by the health loop.
func (p *Pipeline) MarkNoSignal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateNoSignal {
		return
	}
	p.state = StateNoSignal
	p.emitLocked(StateNoSignal, nil)
}

// MarkRuntimeError records a bus error reported by the underlying pipeline.
func (p *Pipeline) MarkRuntimeError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateError
	p.lastErr = err
	p.emitLocked(StateError, err)
}

// emitLocked must be called with p.mu held; it sends without blocking so a
// slow consumer can never stall the pipeline's own state machine.
func (p *Pipeline) emitLocked(state State, err error) {
	if p.stateChange == nil {
		return
	}
	select {
	case p.stateChange <- StateChange{CameraID: p.cameraID, State: state, Err: err}:
	default:
	}
}

// OpenValve opens the recording branch of a Variant B pipeline.
func (p *Pipeline) OpenValve() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spec.Variant != VariantValve {
		return ErrNotTeeVariant
	}
	p.valveOpen = true
	return nil
}

// CloseValve closes the recording branch of a Variant B pipeline.
func (p *Pipeline) CloseValve() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spec.Variant != VariantValve {
		return ErrNotTeeVariant
	}
	p.valveOpen = false
	return nil
}

// ValveOpen reports whether a Variant B pipeline's recording branch is
// currently passing data.
func (p *Pipeline) ValveOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valveOpen
}

func (p *Pipeline) snapshot() (State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.lastErr
}

// classifyStartError maps a graph-construction/start failure to an
// apperr.Kind the supervisor's retry policy can act on, grounded on the
// teacher's error_recovery_manager retryable/fatal split.
func classifyStartError(cameraID string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap("pipeline.Start", apperr.KindPipelineStartFailed, cameraID, err)
}
