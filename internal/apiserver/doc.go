// Package apiserver exposes the control API surface over a WebSocket JSON
// protocol: start/stop session, start/stop per-camera ingest, query status,
// and subscribe to the event bus. Every connection is authenticated via
// internal/security's JWT handler before any method other than authenticate
// is accepted.
package apiserver
