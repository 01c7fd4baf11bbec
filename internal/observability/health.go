package observability

import (
	"context"
	"sync"
	"time"
)

// Status grades a component's health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check probes one component.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth is one component's report.
type ComponentHealth struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Latency     time.Duration `json:"latency_ms"`
}

// SystemHealth aggregates every component. Overall status is the worst
// individual status.
type SystemHealth struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"ts"`
	Uptime     string                     `json:"uptime"`
}

// HealthMonitor runs registered checks on demand.
type HealthMonitor struct {
	mu        sync.RWMutex
	checks    map[string]Check
	startTime time.Time
}

func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		checks:    make(map[string]Check),
		startTime: time.Now(),
	}
}

// Register adds a named check.
func (m *HealthMonitor) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs every registered probe and aggregates the result.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	m.mu.RUnlock()

	health := SystemHealth{
		Status:     StatusHealthy,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now(),
		Uptime:     time.Since(m.startTime).Round(time.Second).String(),
	}

	for name, check := range checks {
		start := time.Now()
		report := check(ctx)
		report.Name = name
		report.LastChecked = time.Now()
		report.Latency = time.Since(start)
		health.Components[name] = report

		if worse(report.Status, health.Status) {
			health.Status = report.Status
		}
	}
	return health
}

func worse(a, b Status) bool {
	return rank(a) > rank(b)
}

func rank(s Status) int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
