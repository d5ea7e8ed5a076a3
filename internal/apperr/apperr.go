// Package apperr defines the typed error kinds shared across the capture,
// ingest, recording, and session-coordination components. Components wrap
// the underlying cause with one of these kinds so that callers (the control
// API, the event bus) can map failures onto stable machine-readable codes
// without string-matching error text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure independent of which component raised it.
type Kind string

const (
	KindDeviceBusy               Kind = "device-busy"
	KindNoSignal                 Kind = "no-signal"
	KindCapabilitiesUnavailable  Kind = "capabilities-unavailable"
	KindPipelineStartFailed      Kind = "pipeline-start-failed"
	KindPipelineRuntimeError     Kind = "pipeline-runtime-error"
	KindStorageInsufficient      Kind = "storage-insufficient"
	KindStorageCritical          Kind = "storage-critical"
	KindSessionConflict          Kind = "session-conflict"
	KindIdempotentReplay         Kind = "idempotent-replay"
	KindStallDetected            Kind = "stall-detected"
	KindBrokerUnreachable        Kind = "broker-unreachable"
)

// Error is an application error tagged with a Kind, wrapping an optional
// underlying cause.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "ingest.Start"
	Subject string // the camera ID, session ID, etc. this error concerns
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		if e.Subject != "" {
			return fmt.Sprintf("%s: %s: %s", e.Op, e.Subject, e.Kind)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Subject, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error with no wrapped cause.
func New(op string, kind Kind, subject string) *Error {
	return &Error{Op: op, Kind: kind, Subject: subject}
}

// Wrap constructs an Error tagging an existing cause with a Kind.
func Wrap(op string, kind Kind, subject string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Subject: subject, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindOf returns the Kind carried by err, and false if err does not carry one.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}
