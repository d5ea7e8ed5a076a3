package apiserver

import (
	"context"

	"github.com/r58io/core-service/internal/eventbus"
	"github.com/r58io/core-service/internal/ingest"
	"github.com/r58io/core-service/internal/recorder"
)

// SupervisorAPI is the narrow slice of internal/ingest.Supervisor the
// control API needs to drive per-camera ingest and report status.
type SupervisorAPI interface {
	Start(ctx context.Context, cameraID string) error
	Stop(ctx context.Context, cameraID string) error
	StatusOne(cameraID string) (ingest.CameraStatus, bool)
	Status() map[string]ingest.CameraStatus
}

// RecorderAPI is the narrow slice of internal/recorder.Coordinator the
// control API needs to drive session start/stop and report status.
type RecorderAPI interface {
	StartSession(ctx context.Context, req recorder.StartSessionRequest) (recorder.SessionDescriptor, error)
	StopSession(ctx context.Context, sessionID string) (recorder.SessionDescriptor, error)
	Status() recorder.SessionDescriptor
}

// EventBusAPI is the narrow slice of internal/eventbus.Bus the control API
// needs to serve the subscribe/resync protocol.
type EventBusAPI interface {
	SubscribeWithID(id string) *eventbus.Subscriber
	Unsubscribe(id string)
	Resync(lastSeq uint64) (events []eventbus.Event, snapshot map[string]interface{}, canReplay bool)
}
