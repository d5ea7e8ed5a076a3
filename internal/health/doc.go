// Package health exposes the container-orchestration health endpoints
// (liveness/readiness/detailed) for the core service, delegating all
// status computation to an API implementation assembled at startup from
// status sources for the broker, the ingest supervisor and the recorder.
//
// Health endpoints:
//   - /health: basic status (healthy/degraded/unhealthy)
//   - /health/detailed: per-component status plus uptime
//   - /ready: readiness probe
//   - /alive: liveness probe
package health
