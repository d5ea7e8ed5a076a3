package recorder

import (
	"context"

	"github.com/r58io/core-service/internal/eventbus"
)

// VariantLookup resolves which pipeline variant a camera was configured
// with. internal/ingest.Supervisor satisfies this structurally; the recorder
// package never imports internal/ingest to avoid the two packages depending
// on each other's internals.
type VariantLookup interface {
	VariantFor(cameraID string) (Variant, bool)
}

// ValveController is the narrow slice of internal/ingest.Supervisor the
// ValveRecorder needs to gate the in-pipeline recording branch.
type ValveController interface {
	OpenValve(cameraID string) error
	CloseValve(cameraID string) error
}

// BrokerPuller is the narrow slice of internal/broker.Client the
// SubscriberRecorder needs to locate a camera's encoded stream.
type BrokerPuller interface {
	RecordingPullURL(cameraID string) string
}

// cameraRecorder is implemented by both recorder variants.
type cameraRecorder interface {
	Start(ctx context.Context, rec *Recording) error
	Stop(ctx context.Context, rec *Recording) error
}

// Publisher is the narrow slice of internal/eventbus.Bus the recorder set
// uses to announce session lifecycle, stall, and storage events. The bus
// assigns the sequence number and timestamp; the recorder only supplies the
// event type, the subject device (empty for session-wide events), and a
// payload.
type Publisher interface {
	Publish(eventType, deviceID string, payload map[string]interface{}) eventbus.Event
}
