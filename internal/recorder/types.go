package recorder

import "time"

// Variant mirrors internal/ingest.Variant without importing that package, so
// the recorder set and the ingest supervisor stay decoupled per the narrow
// VariantLookup interface in collaborators.go.
type Variant string

const (
	VariantSubscriber Variant = "subscriber"
	VariantValve      Variant = "valve"
)

// SessionState is the aggregate state of a Session.
type SessionState string

const (
	SessionRecording SessionState = "recording"
	SessionStopped   SessionState = "stopped"
	SessionError     SessionState = "error"
)

// RecordingState is the state of one per-camera Recording. Once terminal
// (Stopped or Error) a Recording is never revived (I5).
type RecordingState string

const (
	RecordingActive  RecordingState = "recording"
	RecordingStopped RecordingState = "stopped"
	RecordingError   RecordingState = "error"
)

// Recording is one file being written for one camera in one session.
type Recording struct {
	CameraID     string
	OutputPath   string
	StartedAt    time.Time
	BytesWritten int64
	State        RecordingState
	LastError    string

	noGrowthCount int
}

// RecordingDescriptor is the read-only snapshot returned to callers.
type RecordingDescriptor struct {
	CameraID     string         `json:"camera_id"`
	OutputPath   string         `json:"output_path"`
	StartedAt    time.Time      `json:"started_at"`
	BytesWritten int64          `json:"bytes_written"`
	State        RecordingState `json:"state"`
	LastError    string         `json:"last_error,omitempty"`
}

// Session groups recordings started together under one idempotency key.
type Session struct {
	ID         string
	Name       *string
	StartedAt  time.Time
	State      SessionState
	Recordings map[string]*Recording
}

// SessionDescriptor is the read-only snapshot returned to callers.
type SessionDescriptor struct {
	ID         string                 `json:"id"`
	Name       *string                `json:"name,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	State      SessionState           `json:"state"`
	Recordings []RecordingDescriptor  `json:"recordings"`
}

// StartSessionRequest is the caller-supplied request for StartSession.
type StartSessionRequest struct {
	IdempotencyKey string
	Cameras        []string
	Name           *string
}

func descriptorOf(s *Session) SessionDescriptor {
	recs := make([]RecordingDescriptor, 0, len(s.Recordings))
	for _, r := range s.Recordings {
		recs = append(recs, RecordingDescriptor{
			CameraID:     r.CameraID,
			OutputPath:   r.OutputPath,
			StartedAt:    r.StartedAt,
			BytesWritten: r.BytesWritten,
			State:        r.State,
			LastError:    r.LastError,
		})
	}
	return SessionDescriptor{
		ID:         s.ID,
		Name:       s.Name,
		StartedAt:  s.StartedAt,
		State:      s.State,
		Recordings: recs,
	}
}
