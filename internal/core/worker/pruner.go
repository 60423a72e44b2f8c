package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/absenta/internal/cache"
)

// DefaultPrefixes are the key spaces the agent writes on its own behalf:
// retry failure records and cached export pages.
var DefaultPrefixes = []string{"retry:", "export:page:"}

// PruneTarget deletes durable entries older than maxAge under prefix.
type PruneTarget interface {
	PruneDurable(ctx context.Context, prefix string, maxAge time.Duration) (int, error)
}

// Pruner deletes old durable cache entries based on retention policy.
type Pruner struct {
	retention time.Duration
	prefixes  []string
	target    PruneTarget
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker. A nil prefixes slice selects
// DefaultPrefixes.
func NewPruner(retention time.Duration, prefixes []string, target PruneTarget) *Pruner {
	if prefixes == nil {
		prefixes = DefaultPrefixes
	}
	return &Pruner{
		retention: retention,
		prefixes:  prefixes,
		target:    target,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	if !p.Prune(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one pass over every prefix. It reports false when the store
// cannot be pruned at all.
func (p *Pruner) Prune(ctx context.Context) bool {
	for _, prefix := range p.prefixes {
		n, err := p.target.PruneDurable(ctx, prefix, p.retention)
		if errors.Is(err, cache.ErrPruneUnsupported) {
			p.log.Warn("Durable store does not support pruning, retention disabled")
			return false
		}
		if err != nil {
			p.log.Error("Failed to prune durable entries", "prefix", prefix, "error", err)
			continue
		}
		if n > 0 {
			p.log.Info("Pruned durable entries", "prefix", prefix, "count", n)
		}
	}
	return true
}
