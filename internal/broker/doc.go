// Package broker is the thin collaborator interface to the external media
// broker's HTTP control plane and RTSP paths. internal/ingest and
// internal/recorder depend only on the Client interface so the concrete
// HTTP implementation, its connection pool, and its circuit breaker stay
// isolated here.
package broker
