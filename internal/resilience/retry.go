package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/metrics"
)

// Operation is a unit of work the helper can retry and queue.
type Operation func(ctx context.Context) error

// TimeoutError is returned when an attempt exceeds its time bound.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.Timeout)
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

type result[T any] struct {
	val T
	err error
}

// ExecuteWithTimeout races op against a timer. op receives a context that
// is cancelled as soon as the race is decided; whatever op returns after
// that is dropped. A non-positive timeout runs op without a bound.
func ExecuteWithTimeout[T any](
	ctx context.Context,
	timeout time.Duration,
	op func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if timeout <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// buffered so the losing goroutine never blocks
	done := make(chan result[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timer.C:
		return zero, &TimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Retry runs op with timeout-bounded attempts and exponential backoff.
//
// Algorithm:
//   - attempts 0..MaxRetries, each bounded by the helper timeout
//   - stop at the last attempt or when RetryCondition(err) is false
//   - otherwise wait min(RetryDelay × RetryMultiplier^attempt, MaxRetryDelay)
//
// Only the last attempt's error is returned. If the chain fails while the
// helper is offline, the operation is queued for replay on reconnect. A
// cancelled ctx stops the chain at once and is never queued.
func Retry[T any](
	ctx context.Context,
	h *Helper,
	op func(ctx context.Context) (T, error),
	opts ...RetryOption,
) (T, error) {
	var zero T

	o := h.options(opts...)
	if err := o.Validate(); err != nil {
		return zero, err
	}

	v, attempts, err := runAttempts(ctx, h, op, o)
	if err == nil {
		metrics.RetryChains.WithLabelValues("success").Inc()
		if o.Key != "" {
			h.clearRetryRecord(ctx, o.Key)
		}
		return v, nil
	}

	if ctx.Err() != nil {
		return zero, err
	}

	queued := false
	if !h.IsOnline() {
		queued = h.enqueue(func(ctx context.Context) error {
			_, err := op(ctx)
			return err
		}, o, attempts, err)
	}

	if queued {
		metrics.RetryChains.WithLabelValues("queued").Inc()
	} else {
		metrics.RetryChains.WithLabelValues("failed").Inc()
	}
	if o.Key != "" {
		h.storeRetryRecord(ctx, o.Key, attempts, err, queued)
	}

	return zero, err
}

// Do is Retry for operations without a result.
func (h *Helper) Do(ctx context.Context, op Operation, opts ...RetryOption) error {
	_, err := Retry(ctx, h, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

func (h *Helper) options(opts ...RetryOption) RetryOptions {
	o := h.defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// runAttempts is the bare retry loop. It never queues.
func runAttempts[T any](
	ctx context.Context,
	h *Helper,
	op func(ctx context.Context) (T, error),
	o RetryOptions,
) (T, int, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= o.MaxRetries; attempt++ {
		v, err := ExecuteWithTimeout(ctx, h.timeout, op)
		if err == nil {
			metrics.RetryAttempts.WithLabelValues("success").Inc()
			return v, attempt + 1, nil
		}

		lastErr = err
		if IsTimeout(err) {
			metrics.RetryAttempts.WithLabelValues("timeout").Inc()
		} else {
			metrics.RetryAttempts.WithLabelValues("error").Inc()
		}

		if ctx.Err() != nil {
			return zero, attempt + 1, ctx.Err()
		}
		if attempt == o.MaxRetries || !o.RetryCondition(err) {
			return zero, attempt + 1, err
		}

		delay := o.Backoff(attempt)
		h.log.Debug("Attempt failed, backing off",
			"attempt", attempt+1, "delay", delay, "error", err)
		if err := h.sleep(ctx, delay); err != nil {
			return zero, attempt + 1, err
		}
	}

	return zero, o.MaxRetries + 1, lastErr
}

func retryRecordKey(key string) string {
	return "retry:" + key
}

func (h *Helper) storeRetryRecord(ctx context.Context, key string, attempts int, err error, queued bool) {
	rec := domain.RetryRecord{
		Key:       key,
		Attempts:  attempts,
		LastError: err.Error(),
		Queued:    queued,
		FailedAt:  h.now(),
	}
	if err := h.cache.Put(ctx, retryRecordKey(key), rec); err != nil {
		h.log.Warn("Failed to persist retry record", "key", key, "error", err)
	}
}

func (h *Helper) clearRetryRecord(ctx context.Context, key string) {
	if err := h.cache.Delete(ctx, retryRecordKey(key)); err != nil {
		h.log.Warn("Failed to clear retry record", "key", key, "error", err)
	}
}

// RetryRecord returns the failure record left by the last failed chain
// carrying key.
func (h *Helper) RetryRecord(ctx context.Context, key string) (domain.RetryRecord, bool) {
	var rec domain.RetryRecord
	ok := h.cache.Get(ctx, retryRecordKey(key), &rec)
	return rec, ok
}
