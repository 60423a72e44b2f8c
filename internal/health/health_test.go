package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/resilience"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSource struct {
	status resilience.Status
	calls  int
}

func (s *stubSource) Snapshot() resilience.Status {
	s.calls++
	return s.status
}

type stubStore struct {
	err error
}

func (s *stubStore) Health(context.Context) error { return s.err }

func noCache() Thresholds {
	t := DefaultThresholds()
	t.CacheTTL = 0
	return t
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_CheckHealth(t *testing.T) {
	tests := []struct {
		name     string
		status   resilience.Status
		storeErr error
		want     SystemStatus
	}{
		{
			name:   "online and empty queue",
			status: resilience.Status{State: domain.NetworkOnline, Quality: domain.UnknownQuality()},
			want:   StatusHealthy,
		},
		{
			name:   "offline",
			status: resilience.Status{State: domain.NetworkOffline},
			want:   StatusDegraded,
		},
		{
			name: "slow link",
			status: resilience.Status{
				State:   domain.NetworkOnline,
				Quality: domain.NetworkQuality{EffectiveType: domain.Effective2G},
			},
			want: StatusDegraded,
		},
		{
			name:   "queue backlog",
			status: resilience.Status{State: domain.NetworkOnline, QueueDepth: 3},
			want:   StatusDegraded,
		},
		{
			name:   "queue critical",
			status: resilience.Status{State: domain.NetworkOffline, QueueDepth: 100},
			want:   StatusCritical,
		},
		{
			name:     "storage down",
			status:   resilience.Status{State: domain.NetworkOnline},
			storeErr: errors.New("connection refused"),
			want:     StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(&stubSource{status: tt.status}, &stubStore{err: tt.storeErr}, noCache())
			report := m.CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("SystemStatus = %s, want %s (%+v)", report.SystemStatus, tt.want, report.Components)
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	src := &stubSource{status: resilience.Status{State: domain.NetworkOnline}}
	m := NewMonitor(src, nil, DefaultThresholds())

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())

	if src.calls != 1 {
		t.Errorf("Snapshot calls = %d, want 1", src.calls)
	}
	if _, ok := m.CheckHealth(context.Background()).Components["storage"]; ok {
		t.Error("storage component reported without a store")
	}
}

func TestServer_Endpoints(t *testing.T) {
	src := &stubSource{status: resilience.Status{State: domain.NetworkOffline, QueueDepth: 150}}
	s := NewServer(NewMonitor(src, &stubStore{}, noCache()), 0)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health code = %d, want 503", rec.Code)
	}
	var sum Summary
	if err := json.NewDecoder(rec.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if sum.Status != StatusCritical || sum.QueueDepth != 150 {
		t.Errorf("summary = %+v", sum)
	}
	if !reflect.DeepEqual(sum.Degraded, []string{"network", "queue"}) {
		t.Errorf("degraded = %v, want [network queue]", sum.Degraded)
	}

	rec = get("/health/detailed")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/health/detailed code = %d, want 503", rec.Code)
	}
	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatal(err)
	}
	if report.Components["queue"].Status != StatusCritical {
		t.Errorf("queue status = %s", report.Components["queue"].Status)
	}

	rec = get("/health/components/storage")
	var c ComponentHealth
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || c.Status != StatusHealthy {
		t.Errorf("storage = %d %+v", rec.Code, c)
	}

	if rec = get("/health/components/chain"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown component code = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health code = %d, want 405", rec.Code)
	}

	if rec = get("/metrics"); rec.Code != http.StatusOK {
		t.Errorf("/metrics code = %d", rec.Code)
	}
}
