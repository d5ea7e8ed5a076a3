package eventbus

import (
	"time"

	"github.com/r58io/core-service/internal/constants"
)

// schemaVersion is the wire envelope's v field, per spec.md §6.
const schemaVersion = constants.ProtocolVersion

// Event is the wire envelope broadcast to every subscriber. Immutable once
// assigned a sequence number (I3).
type Event struct {
	V        int                    `json:"v"`
	Type     string                 `json:"type"`
	Seq      uint64                 `json:"seq"`
	TS       time.Time              `json:"ts"`
	DeviceID string                 `json:"device_id,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

// stateMutatingTypes lists the event types that mutate the cached
// authoritative state snapshot, per spec.md §4.5's state-cache update rule
// and §6's wire type list: recording started/stopped, mode changed, input
// signal changed, preview started/stopped. Events outside this set
// (recorder.progress, heartbeat, connected, pipeline.error) are
// informational and never touch the cache.
var stateMutatingTypes = map[string]bool{
	"recorder.started":      true,
	"recorder.stopped":      true,
	"mode.changed":          true,
	"input.signal_changed":  true,
	"preview.started":       true,
	"preview.stopped":       true,
}

// SnapshotFunc produces the authoritative state snapshot (operating mode,
// current session summary, per-input state) on demand. It is supplied by the
// caller at construction and must never be called while the bus's internal
// lock is held, so it is free to call into internal/ingest and
// internal/recorder without risking a cross-package deadlock.
type SnapshotFunc func() map[string]interface{}
