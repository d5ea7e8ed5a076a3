// Package recorder implements the recorder set and session coordinator (C4):
// per-camera subscriber or valve recorders grouped into sessions, disk-space
// preflight, stall detection, and idempotent session start/stop.
package recorder
