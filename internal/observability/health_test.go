package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitor_AggregatesWorstStatus(t *testing.T) {
	m := NewHealthMonitor()
	m.Register("feed", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusHealthy}
	})
	m.Register("redis", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "slow ping"}
	})

	h := m.Check(context.Background())
	assert.Equal(t, StatusDegraded, h.Status)
	require.Len(t, h.Components, 2)
	assert.Equal(t, "redis", h.Components["redis"].Name)
	assert.Equal(t, "slow ping", h.Components["redis"].Message)
	assert.False(t, h.Components["feed"].LastChecked.IsZero())
}

func TestHealthMonitor_UnhealthyWins(t *testing.T) {
	m := NewHealthMonitor()
	m.Register("a", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusUnhealthy}
	})
	m.Register("b", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded}
	})

	assert.Equal(t, StatusUnhealthy, m.Check(context.Background()).Status)
}

func TestHealthMonitor_EmptyIsHealthy(t *testing.T) {
	m := NewHealthMonitor()
	assert.Equal(t, StatusHealthy, m.Check(context.Background()).Status)
}

func TestMetrics_RegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.ScanCycles.Inc()
	m.AlertsEmitted.WithLabelValues("high").Inc()
	m.FeedSize.Set(42)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
