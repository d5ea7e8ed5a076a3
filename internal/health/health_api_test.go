package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_NoSourcesReportsDegraded(t *testing.T) {
	a := NewAggregator()

	resp, err := a.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestAggregator_WorstOfNRule(t *testing.T) {
	a := NewAggregator()
	a.Register("broker", func() ComponentStatus {
		return ComponentStatus{Name: "broker", Status: StatusHealthy, UpdatedAt: time.Now()}
	})
	a.Register("ingest", func() ComponentStatus {
		return ComponentStatus{Name: "ingest", Status: StatusDegraded, UpdatedAt: time.Now()}
	})

	resp, err := a.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestAggregator_UnhealthyComponentDominates(t *testing.T) {
	a := NewAggregator()
	a.Register("broker", func() ComponentStatus {
		return ComponentStatus{Name: "broker", Status: StatusUnhealthy, UpdatedAt: time.Now()}
	})
	a.Register("ingest", func() ComponentStatus {
		return ComponentStatus{Name: "ingest", Status: StatusHealthy, UpdatedAt: time.Now()}
	})

	resp, err := a.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, resp.Status)

	ready, err := a.IsReady(context.Background())
	require.NoError(t, err)
	assert.False(t, ready.Ready)
}

func TestAggregator_IsAliveAlwaysTrue(t *testing.T) {
	a := NewAggregator()
	alive, err := a.IsAlive(context.Background())
	require.NoError(t, err)
	assert.True(t, alive.Alive)
}

func TestAggregator_ReRegisteringReplacesSource(t *testing.T) {
	a := NewAggregator()
	a.Register("broker", func() ComponentStatus {
		return ComponentStatus{Name: "broker", Status: StatusUnhealthy, UpdatedAt: time.Now()}
	})
	a.Register("broker", func() ComponentStatus {
		return ComponentStatus{Name: "broker", Status: StatusHealthy, UpdatedAt: time.Now()}
	})

	resp, err := a.GetHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestAggregator_DetailedHealthIncludesComponents(t *testing.T) {
	a := NewAggregator()
	a.Register("broker", func() ComponentStatus {
		return ComponentStatus{Name: "broker", Status: StatusHealthy, UpdatedAt: time.Now()}
	})

	detailed, err := a.GetDetailedHealth(context.Background())
	require.NoError(t, err)
	require.Len(t, detailed.Components, 1)
	assert.Equal(t, "broker", detailed.Components[0].Name)
	assert.NotEmpty(t, detailed.Uptime)
}
