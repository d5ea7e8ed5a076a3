package ingest

import (
	"time"

	"github.com/r58io/core-service/internal/logging"
)

// dispatcher is the single process-wide goroutine that fans pipeline state
// changes out to per-camera handler closures, mirroring the teacher's
// controller.go readiness-event channel pattern generalized from one
// listener to a per-camera map of them.
type dispatcher struct {
	changes  chan StateChange
	logger   *logging.Logger
	handlers map[string]func(StateChange)
	register chan registration
	stop     chan struct{}
}

type registration struct {
	cameraID string
	handler  func(StateChange)
	remove   bool
}

func newDispatcher(logger *logging.Logger) *dispatcher {
	return &dispatcher{
		changes:  make(chan StateChange, 256),
		logger:   logger,
		handlers: make(map[string]func(StateChange)),
		register: make(chan registration, 16),
		stop:     make(chan struct{}),
	}
}

// run is the dispatch loop; it must run in exactly one goroutine for the
// lifetime of the supervisor that owns it.
func (d *dispatcher) run() {
	for {
		select {
		case <-d.stop:
			return
		case reg := <-d.register:
			if reg.remove {
				delete(d.handlers, reg.cameraID)
			} else {
				d.handlers[reg.cameraID] = reg.handler
			}
		case change := <-d.changes:
			handler, ok := d.handlers[change.CameraID]
			if !ok {
				continue
			}
			d.dispatchOne(handler, change)
		}
	}
}

// dispatchOne invokes handler with a short deadline; a handler that hasn't
// returned within it only gets a warning log, since pipeline handlers must
// be fast closures (per the concurrency model) and a slow one indicates a
// bug in the handler, not the dispatcher.
func (d *dispatcher) dispatchOne(handler func(StateChange), change StateChange) {
	done := make(chan struct{})
	go func() {
		handler(change)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(50 * time.Millisecond):
		d.logger.WithField("camera_id", change.CameraID).
			Warn("pipeline state handler did not return promptly")
		<-done
	}
}

func (d *dispatcher) registerHandler(cameraID string, handler func(StateChange)) {
	d.register <- registration{cameraID: cameraID, handler: handler}
}

func (d *dispatcher) unregisterHandler(cameraID string) {
	d.register <- registration{cameraID: cameraID, remove: true}
}

func (d *dispatcher) Stop() {
	close(d.stop)
}
