// Package metrics exposes the Prometheus collectors the appliance's
// components record against. Collectors are package-level promauto vars,
// same as ManuGH-xg2g's internal/metrics package, so every component can
// import this package directly without threading a registry through
// constructors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineState reports each camera's ingest pipeline state as a gauge
	// (1 = current state, 0 = every other state) so a single query can chart
	// state transitions over time. Labels: camera_id, state.
	PipelineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "coreservice",
		Subsystem: "ingest",
		Name:      "pipeline_state",
		Help:      "Current ingest pipeline state per camera (1=active, 0=inactive)",
	}, []string{"camera_id", "state"})

	// EventBusSequence tracks the event bus's monotonic sequence counter.
	EventBusSequence = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coreservice",
		Subsystem: "eventbus",
		Name:      "sequence_total",
		Help:      "Total number of events assigned a sequence number",
	})

	// EventBusSubscribers tracks the number of connected event bus subscribers.
	EventBusSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "coreservice",
		Subsystem: "eventbus",
		Name:      "subscribers",
		Help:      "Number of currently connected event bus subscribers",
	})

	// EventBusDroppedTotal counts subscribers disconnected after a full
	// delivery queue, mirroring ManuGH-xg2g's bus drop counter.
	EventBusDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "coreservice",
		Subsystem: "eventbus",
		Name:      "subscriber_dropped_total",
		Help:      "Total number of subscribers disconnected due to a full delivery queue",
	})

	// RecorderBytesWritten tracks cumulative bytes observed written to each
	// active recording's output file.
	RecorderBytesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coreservice",
		Subsystem: "recorder",
		Name:      "bytes_written_total",
		Help:      "Total bytes observed written to recording output files",
	}, []string{"camera_id"})

	// RecorderStallTotal counts stall events (no file growth for the
	// configured threshold) raised per camera.
	RecorderStallTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "coreservice",
		Subsystem: "recorder",
		Name:      "stall_total",
		Help:      "Total stall events raised per camera",
	}, []string{"camera_id"})
)

// SetPipelineState records cameraID's current state, zeroing every other
// known state label so a camera never reports two states as simultaneously
// active.
func SetPipelineState(cameraID string, states []string, current string) {
	for _, st := range states {
		value := 0.0
		if st == current {
			value = 1.0
		}
		PipelineState.WithLabelValues(cameraID, st).Set(value)
	}
}

// ObserveBytesWritten adds the delta in bytes written since the last
// observation for cameraID. Callers pass the non-negative delta, not the
// cumulative total, since this is a Prometheus counter.
func ObserveBytesWritten(cameraID string, delta int64) {
	if delta <= 0 {
		return
	}
	RecorderBytesWritten.WithLabelValues(cameraID).Add(float64(delta))
}
