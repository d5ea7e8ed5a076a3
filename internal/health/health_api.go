package health

import (
	"context"
	"time"
)

// Status is the coarse health classification surfaced at /health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus is the health of one subsystem (ingest supervisor,
// recorder set, event bus, broker client) at the time it was last sampled.
type ComponentStatus struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// DetailedHealthResponse is returned by /health/detailed.
type DetailedHealthResponse struct {
	Status     Status            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components []ComponentStatus `json:"components"`
	Uptime     string            `json:"uptime"`
}

// ReadinessResponse is returned by /ready.
type ReadinessResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}

// LivenessResponse is returned by /alive.
type LivenessResponse struct {
	Alive     bool      `json:"alive"`
	Timestamp time.Time `json:"timestamp"`
}

// API is implemented by whatever aggregates component health for the HTTP
// server to report. cmd/coreserviced wires an Aggregator with sources for
// the broker health monitor, internal/ingest.Supervisor and the recorder.
type API interface {
	GetHealth(ctx context.Context) (HealthResponse, error)
	GetDetailedHealth(ctx context.Context) (DetailedHealthResponse, error)
	IsReady(ctx context.Context) (ReadinessResponse, error)
	IsAlive(ctx context.Context) (LivenessResponse, error)
}

// Aggregator is a minimal, registration-based API implementation: callers
// register component status producers and the aggregator folds them into
// an overall Status using the worst-of-N rule.
type Aggregator struct {
	startedAt time.Time
	sources   map[string]func() ComponentStatus
}

// NewAggregator creates an Aggregator that reports Alive immediately and
// Ready whenever no registered component reports unhealthy (including when
// none are registered).
func NewAggregator() *Aggregator {
	return &Aggregator{
		startedAt: time.Now(),
		sources:   make(map[string]func() ComponentStatus),
	}
}

// Register adds a named component status source. Re-registering a name
// replaces its source.
func (a *Aggregator) Register(name string, source func() ComponentStatus) {
	a.sources[name] = source
}

func (a *Aggregator) snapshot() []ComponentStatus {
	out := make([]ComponentStatus, 0, len(a.sources))
	for _, source := range a.sources {
		out = append(out, source())
	}
	return out
}

func worstOf(components []ComponentStatus) Status {
	if len(components) == 0 {
		return StatusDegraded
	}
	overall := StatusHealthy
	for _, c := range components {
		switch c.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

func (a *Aggregator) GetHealth(ctx context.Context) (HealthResponse, error) {
	return HealthResponse{Status: worstOf(a.snapshot()), Timestamp: time.Now()}, nil
}

func (a *Aggregator) GetDetailedHealth(ctx context.Context) (DetailedHealthResponse, error) {
	components := a.snapshot()
	return DetailedHealthResponse{
		Status:     worstOf(components),
		Timestamp:  time.Now(),
		Components: components,
		Uptime:     time.Since(a.startedAt).String(),
	}, nil
}

func (a *Aggregator) IsReady(ctx context.Context) (ReadinessResponse, error) {
	return ReadinessResponse{Ready: worstOf(a.snapshot()) != StatusUnhealthy, Timestamp: time.Now()}, nil
}

func (a *Aggregator) IsAlive(ctx context.Context) (LivenessResponse, error) {
	return LivenessResponse{Alive: true, Timestamp: time.Now()}, nil
}
