package apiserver

import "encoding/json"

// Request is a client-to-server method call. ID is echoed back on the
// matching Response so callers can correlate out-of-order replies.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is a server-to-client reply to a Request.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorDescriptor `json:"error,omitempty"`
}

// ErrorDescriptor mirrors a bus event's error payload shape, per spec.md §7
// "HTTP caller receives a structured error descriptor mirroring the event."
type ErrorDescriptor struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

// EventMessage wraps an eventbus.Event for the unsolicited stream a
// subscribed connection receives alongside Responses.
type EventMessage struct {
	Type  string      `json:"type"`
	Event interface{} `json:"event"`
}

// AuthenticateParams is the payload of the one method a connection may call
// before authenticating.
type AuthenticateParams struct {
	Token string `json:"token"`
}

// StartSessionParams is the payload of the "start_session" method.
type StartSessionParams struct {
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
	Cameras        []string `json:"cameras,omitempty"`
	Name           *string  `json:"name,omitempty"`
}

// StopSessionParams is the payload of the "stop_session" method.
type StopSessionParams struct {
	SessionID string `json:"session_id,omitempty"`
}

// CameraParams is the payload of "start_camera"/"stop_camera".
type CameraParams struct {
	CameraID string `json:"camera_id"`
}

// SubscribeParams is the payload of the "subscribe" method.
type SubscribeParams struct {
	LastSeq uint64 `json:"last_seq"`
}
