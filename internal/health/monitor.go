package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/infra/storage"
	"github.com/vietddude/absenta/internal/resilience"
)

// StatusSource reports the resilience helper's state.
type StatusSource interface {
	Snapshot() resilience.Status
}

// Thresholds decide when a component degrades.
type Thresholds struct {
	// QueueDegraded and QueueCritical bound the offline queue depth.
	QueueDegraded int
	QueueCritical int
	// CacheTTL rate limits full checks.
	CacheTTL time.Duration
}

// DefaultThresholds returns the agent's standard limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		QueueDegraded: 1,
		QueueCritical: 100,
		CacheTTL:      10 * time.Second,
	}
}

// Monitor aggregates health status from the agent's components.
type Monitor struct {
	source     StatusSource
	store      storage.HealthChecker
	thresholds Thresholds
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. store may be nil.
func NewMonitor(source StatusSource, store storage.HealthChecker, t Thresholds) *Monitor {
	return &Monitor{
		source:     source,
		store:      store,
		thresholds: t,
	}
}

// QueueDepth returns the live offline queue depth, bypassing the report
// cache.
func (m *Monitor) QueueDepth() int {
	return m.source.Snapshot().QueueDepth
}

// CheckHealth returns the current report, reusing the previous one if it
// is younger than CacheTTL.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport.Components != nil && time.Since(m.lastCheck) < m.thresholds.CacheTTL {
		return m.lastReport
	}

	st := m.source.Snapshot()
	components := map[string]ComponentHealth{
		"network": m.checkNetwork(st),
		"queue":   m.checkQueue(st),
	}
	if m.store != nil {
		components["storage"] = m.checkStorage(ctx)
	}

	report := HealthReport{SystemStatus: StatusHealthy, Components: components}
	for _, c := range components {
		report.SystemStatus = worst(report.SystemStatus, c.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *Monitor) checkNetwork(st resilience.Status) ComponentHealth {
	h := ComponentHealth{Name: "network", Status: StatusHealthy, Details: st.Quality}
	switch {
	case st.State == domain.NetworkOffline:
		h.Status = StatusDegraded
		h.Message = "backend unreachable, operations are queued"
	case st.Quality.EffectiveType == domain.Effective2G || st.Quality.EffectiveType == domain.EffectiveSlow2G:
		h.Status = StatusDegraded
		h.Message = fmt.Sprintf("slow link (%s)", st.Quality.EffectiveType)
	}
	return h
}

func (m *Monitor) checkQueue(st resilience.Status) ComponentHealth {
	h := ComponentHealth{Name: "queue", Status: StatusHealthy, Details: map[string]int{"depth": st.QueueDepth}}
	switch {
	case m.thresholds.QueueCritical > 0 && st.QueueDepth >= m.thresholds.QueueCritical:
		h.Status = StatusCritical
		h.Message = fmt.Sprintf("%d operations waiting", st.QueueDepth)
	case m.thresholds.QueueDegraded > 0 && st.QueueDepth >= m.thresholds.QueueDegraded:
		h.Status = StatusDegraded
		h.Message = fmt.Sprintf("%d operations waiting", st.QueueDepth)
	}
	return h
}

// checkStorage degrades rather than fails: the memory tier keeps serving
// while the durable tier is down.
func (m *Monitor) checkStorage(ctx context.Context) ComponentHealth {
	h := ComponentHealth{Name: "storage", Status: StatusHealthy}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.store.Health(ctx); err != nil {
		h.Status = StatusDegraded
		h.Message = err.Error()
	}
	return h
}
