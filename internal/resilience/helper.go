// Package resilience wraps operations with timeouts, exponential-backoff
// retry and an offline queue replayed on reconnect, and provides a two-tier
// durable cache, progressive batched loading and network-quality tuning.
package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/absenta/internal/cache"
	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/infra/storage"
	"github.com/vietddude/absenta/internal/infra/storage/memory"
	"github.com/vietddude/absenta/internal/metrics"
	"github.com/vietddude/absenta/internal/network"
)

// DefaultTimeout bounds each attempt when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Config configures a Helper.
type Config struct {
	// Timeout bounds every attempt. Zero selects DefaultTimeout.
	Timeout time.Duration

	// Retry holds the defaults merged into every call's options. Nil
	// selects DefaultRetryOptions.
	Retry *RetryOptions

	// Notifier drives NetworkState. Nil means always online.
	Notifier network.Notifier

	// Quality is an optional link-quality source for AdaptiveParameters.
	Quality network.QualitySource

	// Store backs the durable cache tier. Nil selects a process-local store.
	Store storage.DurableStore

	// MemorySize bounds the cache memory tier.
	MemorySize int
}

// Status is a point-in-time view of the helper for health reporting.
type Status struct {
	State      domain.NetworkState   `json:"state"`
	QueueDepth int                   `json:"queue_depth"`
	Quality    domain.NetworkQuality `json:"quality"`
}

// Helper is the resilient operation helper. It is safe for concurrent use.
type Helper struct {
	timeout  time.Duration
	defaults RetryOptions
	notifier network.Notifier
	quality  network.QualitySource
	cache    *cache.TwoTier
	bus      *eventBus
	log      *slog.Logger

	mu     sync.Mutex
	state  domain.NetworkState
	queue  []*QueuedOperation
	closed bool

	// drainMu keeps queue passes from overlapping
	drainMu sync.Mutex
	wg      sync.WaitGroup

	bgCtx       context.Context
	bgCancel    context.CancelFunc
	unsubscribe func()

	// replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a helper and subscribes it to the configured notifier.
func New(cfg Config) (*Helper, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	defaults := DefaultRetryOptions()
	if cfg.Retry != nil {
		defaults = *cfg.Retry
		if defaults.RetryCondition == nil {
			defaults.RetryCondition = AlwaysRetry
		}
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative: %s", cfg.Timeout)
	}
	if cfg.Store == nil {
		cfg.Store = memory.NewMemoryStorage()
	}

	c, err := cache.New(cfg.Store, cfg.MemorySize)
	if err != nil {
		return nil, err
	}

	log := slog.Default().With("component", "resilience")
	bgCtx, bgCancel := context.WithCancel(context.Background())

	h := &Helper{
		timeout:  cfg.Timeout,
		defaults: defaults,
		notifier: cfg.Notifier,
		quality:  cfg.Quality,
		cache:    c,
		bus:      newEventBus(log),
		log:      log,
		state:    domain.NetworkOnline,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
		sleep:    sleepContext,
		now:      time.Now,
	}

	if h.notifier != nil {
		h.state = domain.StateFromBool(h.notifier.Online())
		h.unsubscribe = h.notifier.Subscribe(h.handleConnectivity)
	}
	setOnlineGauge(h.state)

	return h, nil
}

// Subscribe registers a handler for one event type.
func (h *Helper) Subscribe(t domain.EventType, handler Handler) (unsubscribe func()) {
	return h.bus.subscribe(t, handler)
}

func (h *Helper) emit(t domain.EventType, payload any) {
	h.bus.emit(t, payload)
}

// State returns the current NetworkState.
func (h *Helper) State() domain.NetworkState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsOnline reports whether the helper considers the network reachable.
func (h *Helper) IsOnline() bool {
	return h.State() == domain.NetworkOnline
}

// Snapshot returns the helper's current status.
func (h *Helper) Snapshot() Status {
	h.mu.Lock()
	st := Status{State: h.state, QueueDepth: len(h.queue)}
	h.mu.Unlock()
	st.Quality = h.NetworkQuality()
	return st
}

// handleConnectivity applies a notifier edge. Offline → Online starts a
// queue pass in the background.
func (h *Helper) handleConnectivity(online bool) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	t := network.NewTransition(h.state, domain.StateFromBool(online))
	if !t.IsValid() {
		h.mu.Unlock()
		return
	}
	h.state = t.To
	reconnected := t.Reconnected()
	if reconnected {
		h.wg.Add(1)
	}
	h.mu.Unlock()

	setOnlineGauge(t.To)
	h.log.Info("Network state changed", "from", t.From, "to", t.To)

	if t.To == domain.NetworkOnline {
		h.emit(domain.EventOnline, t)
	} else {
		h.emit(domain.EventOffline, t)
	}

	if reconnected {
		go h.drainInBackground()
	}
}

// drainInBackground runs one queue pass. The caller must have added to h.wg
// while holding h.mu.
func (h *Helper) drainInBackground() {
	defer h.wg.Done()
	if err := h.ProcessOfflineQueue(h.bgCtx); err != nil {
		h.log.Warn("Offline queue pass interrupted", "error", err)
	}
}

// Close detaches the helper from its notifier, waits for a running queue
// pass and discards whatever is still queued. The durable store is not
// closed; it belongs to the caller.
func (h *Helper) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.bgCancel()
	h.wg.Wait()

	h.mu.Lock()
	dropped := len(h.queue)
	h.queue = nil
	h.mu.Unlock()

	metrics.OfflineQueueDepth.Set(0)
	if dropped > 0 {
		h.log.Warn("Discarded queued operations on close", "count", dropped)
	}
}

func setOnlineGauge(s domain.NetworkState) {
	if s == domain.NetworkOnline {
		metrics.NetworkOnline.Set(1)
	} else {
		metrics.NetworkOnline.Set(0)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
