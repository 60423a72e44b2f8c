package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/network"
)

// sleepRecorder replaces the helper's backoff sleep so tests run instantly.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestHelper(t *testing.T, cfg Config) (*Helper, *sleepRecorder) {
	t.Helper()
	h, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &sleepRecorder{}
	h.sleep = rec.sleep
	t.Cleanup(h.Close)
	return h, rec
}

// collect subscribes to t and returns a function reading what arrived.
func collect(h *Helper, t domain.EventType) func() []domain.Event {
	var mu sync.Mutex
	var got []domain.Event
	h.Subscribe(t, func(e domain.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	return func() []domain.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]domain.Event(nil), got...)
	}
}

func TestNew_RejectsInvalidDefaults(t *testing.T) {
	bad := DefaultRetryOptions()
	bad.RetryMultiplier = 1

	if _, err := New(Config{Retry: &bad}); err == nil {
		t.Fatal("expected error for multiplier 1")
	}
	if _, err := New(Config{Timeout: -time.Second}); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}

func TestNew_InitialStateFromNotifier(t *testing.T) {
	tests := []struct {
		name     string
		notifier network.Notifier
		want     domain.NetworkState
	}{
		{"no notifier", nil, domain.NetworkOnline},
		{"online", network.NewManual(true), domain.NetworkOnline},
		{"offline", network.NewManual(false), domain.NetworkOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHelper(t, Config{Notifier: tt.notifier})
			if got := h.State(); got != tt.want {
				t.Errorf("State() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHelper_PublishesTransitions(t *testing.T) {
	m := network.NewManual(true)
	h, _ := newTestHelper(t, Config{Notifier: m})

	offline := collect(h, domain.EventOffline)
	online := collect(h, domain.EventOnline)

	m.Set(false)
	m.Set(true)

	if got := offline(); len(got) != 1 {
		t.Fatalf("offline events = %d, want 1", len(got))
	}
	got := online()
	if len(got) != 1 {
		t.Fatalf("online events = %d, want 1", len(got))
	}
	tr, ok := got[0].Payload.(network.Transition)
	if !ok {
		t.Fatalf("payload type = %T, want network.Transition", got[0].Payload)
	}
	if tr.From != domain.NetworkOffline || tr.To != domain.NetworkOnline {
		t.Errorf("transition = %s -> %s", tr.From, tr.To)
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	h, _ := newTestHelper(t, Config{})

	calls := 0
	unsubscribe := h.Subscribe(domain.EventOfflineDataStored, func(domain.Event) { calls++ })

	ctx := context.Background()
	h.SetDurable(ctx, "a", 1)
	unsubscribe()
	unsubscribe()
	h.SetDurable(ctx, "b", 2)

	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestSubscribe_PanickingHandlerIsIsolated(t *testing.T) {
	h, _ := newTestHelper(t, Config{})

	h.Subscribe(domain.EventOfflineDataCleared, func(domain.Event) { panic("boom") })
	reached := false
	h.Subscribe(domain.EventOfflineDataCleared, func(domain.Event) { reached = true })

	h.ClearDurable(context.Background(), "k")

	if !reached {
		t.Error("second handler did not run after first panicked")
	}
}

func TestOn_FiltersByPayloadType(t *testing.T) {
	h, _ := newTestHelper(t, Config{})

	var keys []string
	On(h, domain.EventOfflineDataStored, func(p DataChanged) { keys = append(keys, p.Key) })
	On(h, domain.EventOfflineDataStored, func(p Performance) { t.Error("wrong payload type delivered") })

	h.SetDurable(context.Background(), "roster", []string{"a"})

	if len(keys) != 1 || keys[0] != "roster" {
		t.Errorf("keys = %v, want [roster]", keys)
	}
}

func TestMeasurePerformance(t *testing.T) {
	h, _ := newTestHelper(t, Config{})
	measured := collect(h, domain.EventPerformanceMeasured)
	failed := collect(h, domain.EventPerformanceError)

	ctx := context.Background()
	if err := h.MeasurePerformance(ctx, "load", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errTest("boom")
	if err := h.MeasurePerformance(ctx, "save", func(context.Context) error { return boom }); err != boom {
		t.Fatalf("error = %v, want %v", err, boom)
	}

	if got := measured(); len(got) != 1 || got[0].Payload.(Performance).Name != "load" {
		t.Errorf("measured events = %+v", got)
	}
	got := failed()
	if len(got) != 1 {
		t.Fatalf("error events = %d, want 1", len(got))
	}
	if p := got[0].Payload.(Performance); p.Name != "save" || p.Err != boom {
		t.Errorf("error payload = %+v", p)
	}
}

func TestSnapshot(t *testing.T) {
	m := network.NewManual(false)
	m.SetQuality(domain.NetworkQuality{EffectiveType: domain.Effective3G, RTT: 300 * time.Millisecond})
	h, _ := newTestHelper(t, Config{Notifier: m, Quality: m})

	st := h.Snapshot()
	if st.State != domain.NetworkOffline {
		t.Errorf("State = %s, want offline", st.State)
	}
	if st.Quality.EffectiveType != domain.Effective3G {
		t.Errorf("EffectiveType = %s, want 3g", st.Quality.EffectiveType)
	}
}

func TestClose_DetachesFromNotifier(t *testing.T) {
	m := network.NewManual(true)
	h, err := New(Config{Notifier: m})
	if err != nil {
		t.Fatal(err)
	}
	offline := collect(h, domain.EventOffline)

	h.Close()
	h.Close()
	m.Set(false)

	if len(offline()) != 0 {
		t.Error("closed helper still reacts to notifier")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
