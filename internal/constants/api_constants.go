// Package constants holds shared control-API protocol constants: the
// envelope version, method names, and the error code mapping from
// internal/apperr.Kind to the wire error codes returned to callers.
package constants

import "github.com/r58io/core-service/internal/apperr"

const (
	// ProtocolVersion is the "v" field of every event envelope and the
	// control-API message envelope (spec.md §6 wire schema).
	ProtocolVersion = 1

	// JSON-RPC-style transport error codes, reused for the control API's
	// error envelope.
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAuthRequired   = -32001
	CodeRateLimited    = -32002
)

// Control-API method names.
const (
	MethodAuthenticate = "authenticate"
	MethodStartSession = "start_session"
	MethodStopSession  = "stop_session"
	MethodStartCamera  = "start_camera"
	MethodStopCamera   = "stop_camera"
	MethodGetStatus    = "status"
	MethodSubscribe    = "subscribe"
)

// Protocol-level error kinds surfaced in ErrorDescriptor.Kind for failures
// that have no internal/apperr.Kind (bad envelopes, auth, unknown methods).
const (
	KindInvalidArgument = "invalid-argument"
	KindUnauthorized    = "unauthorized"
	KindMethodNotFound  = "method-not-found"
	KindInternal        = "internal"
)

// protoCodes maps the protocol-level kinds above to their wire error code.
var protoCodes = map[string]int{
	KindInvalidArgument: CodeInvalidParams,
	KindUnauthorized:    CodeAuthRequired,
	KindMethodNotFound:  CodeMethodNotFound,
	KindInternal:        CodeInternalError,
}

// CodeForProtoKind returns the wire error code for a protocol-level kind, or
// CodeInternalError if the kind is unrecognized.
func CodeForProtoKind(kind string) int {
	if code, ok := protoCodes[kind]; ok {
		return code
	}
	return CodeInternalError
}

// kindCodes maps apperr.Kind to a stable negative error code surfaced to
// control-API callers, mirroring the structured error descriptor spec.md §7
// requires to "mirror the event" the same failure would raise on the bus.
var kindCodes = map[apperr.Kind]int{
	apperr.KindDeviceBusy:              -1001,
	apperr.KindNoSignal:                -1002,
	apperr.KindCapabilitiesUnavailable: -1003,
	apperr.KindPipelineStartFailed:     -1004,
	apperr.KindPipelineRuntimeError:    -1005,
	apperr.KindStorageInsufficient:     -1006,
	apperr.KindStorageCritical:         -1007,
	apperr.KindSessionConflict:         -1008,
	apperr.KindIdempotentReplay:        -1009,
	apperr.KindStallDetected:           -1010,
	apperr.KindBrokerUnreachable:       -1011,
}

// CodeForKind returns the wire error code for a Kind, or CodeInternalError
// if the kind is unrecognized.
func CodeForKind(kind apperr.Kind) int {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return CodeInternalError
}
