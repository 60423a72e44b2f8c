package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/absenta/internal/metrics"
)

// Progress is reported after every non-empty batch.
type Progress struct {
	Loaded int
	Batch  int
	// Percentage is loaded / (loaded + batchSize) × 100, capped at 100.
	// The total is unknown up front, so this is an estimate only.
	Percentage float64
}

// Loader fetches up to limit items starting at offset. An empty result ends
// the load.
type Loader[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// BatchConfig configures BatchedLoad.
type BatchConfig[T any] struct {
	BatchSize  int
	Delay      time.Duration
	OnProgress func(Progress)
	OnComplete func([]T)
	OnError    func(error)
}

// DefaultBatchConfig returns a config with batch size 50 and a 100ms pause.
func DefaultBatchConfig[T any]() BatchConfig[T] {
	return BatchConfig[T]{
		BatchSize: 50,
		Delay:     100 * time.Millisecond,
	}
}

// BatchedLoad pages through loader until it returns an empty batch, pausing
// cfg.Delay after each non-empty one. On error, including ctx cancellation,
// no partial result is returned and OnComplete is not called.
func BatchedLoad[T any](ctx context.Context, loader Loader[T], cfg BatchConfig[T]) ([]T, error) {
	fail := func(err error) ([]T, error) {
		if cfg.OnError != nil {
			cfg.OnError(err)
		}
		return nil, err
	}

	if cfg.BatchSize <= 0 {
		return fail(fmt.Errorf("batch size must be positive: %d", cfg.BatchSize))
	}
	if cfg.Delay < 0 {
		return fail(fmt.Errorf("batch delay must not be negative: %s", cfg.Delay))
	}

	var all []T
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		batch, err := loader(ctx, offset, cfg.BatchSize)
		if err != nil {
			return fail(err)
		}
		if len(batch) == 0 {
			break
		}

		all = append(all, batch...)
		offset += cfg.BatchSize
		metrics.BatchesLoaded.Inc()

		if cfg.OnProgress != nil {
			loaded := len(all)
			pct := float64(loaded) / float64(loaded+cfg.BatchSize) * 100
			if pct > 100 {
				pct = 100
			}
			cfg.OnProgress(Progress{Loaded: loaded, Batch: len(batch), Percentage: pct})
		}

		if cfg.Delay > 0 {
			if err := sleepContext(ctx, cfg.Delay); err != nil {
				return fail(err)
			}
		}
	}

	if all == nil {
		all = []T{}
	}
	if cfg.OnComplete != nil {
		cfg.OnComplete(all)
	}
	return all, nil
}
