package resilience

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/metrics"
)

// QueuedOperation is an operation that failed while offline and waits for
// the next reconnect.
type QueuedOperation struct {
	ID           string
	Operation    Operation
	Options      RetryOptions
	EnqueuedAt   time.Time
	AttemptCount int
	LastError    error
}

func (h *Helper) enqueue(op Operation, o RetryOptions, attempts int, err error) bool {
	item := &QueuedOperation{
		ID:         uuid.New().String(),
		Operation:  op,
		Options:    o,
		EnqueuedAt: h.now(),
		LastError:  err,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.queue = append(h.queue, item)
	depth := len(h.queue)
	// the reconnect pass may already have drained the queue
	drain := h.state == domain.NetworkOnline
	if drain {
		h.wg.Add(1)
	}
	h.mu.Unlock()

	metrics.OfflineQueueDepth.Set(float64(depth))
	h.log.Info("Operation queued until reconnect", "id", item.ID, "key", o.Key, "depth", depth)
	h.emit(domain.EventRetryQueued, RetryQueued{
		ID:         item.ID,
		Key:        o.Key,
		Attempts:   attempts,
		Err:        err,
		QueueDepth: depth,
	})
	if drain {
		go h.drainInBackground()
	}
	return true
}

// QueueDepth returns the number of queued operations.
func (h *Helper) QueueDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Queued returns a copy of the queued operations in FIFO order.
func (h *Helper) Queued() []QueuedOperation {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]QueuedOperation, len(h.queue))
	for i, item := range h.queue {
		out[i] = *item
	}
	return out
}

// ProcessOfflineQueue replays a snapshot of the queue, one operation at a
// time in FIFO order. Operations queued while the pass runs wait for the
// next pass. A failed replay is requeued until its AttemptCount reaches
// its MaxRetries, then dropped with EventRetryFailed. Only ctx cancellation
// is returned; the unprocessed rest of the snapshot is put back first.
func (h *Helper) ProcessOfflineQueue(ctx context.Context) error {
	h.drainMu.Lock()
	defer h.drainMu.Unlock()

	h.mu.Lock()
	snapshot := h.queue
	h.queue = nil
	h.mu.Unlock()
	metrics.OfflineQueueDepth.Set(0)

	if len(snapshot) == 0 {
		return nil
	}
	h.log.Info("Processing offline queue", "count", len(snapshot))

	for i, item := range snapshot {
		if err := ctx.Err(); err != nil {
			h.restore(snapshot[i:])
			return err
		}

		_, _, err := runAttempts(ctx, h, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, item.Operation(ctx)
		}, item.Options)

		if err == nil {
			metrics.OfflineQueueReplays.WithLabelValues("success").Inc()
			if item.Options.Key != "" {
				h.clearRetryRecord(ctx, item.Options.Key)
			}
			h.emit(domain.EventRetrySuccess, RetrySucceeded{
				ID:           item.ID,
				Key:          item.Options.Key,
				AttemptCount: item.AttemptCount,
				EnqueuedAt:   item.EnqueuedAt,
			})
			continue
		}

		if ctx.Err() != nil {
			h.restore(snapshot[i:])
			return ctx.Err()
		}

		item.AttemptCount++
		item.LastError = err
		if item.AttemptCount < item.Options.MaxRetries {
			metrics.OfflineQueueReplays.WithLabelValues("requeued").Inc()
			h.requeue(item)
			continue
		}

		metrics.OfflineQueueReplays.WithLabelValues("dropped").Inc()
		h.log.Warn("Dropping queued operation", "id", item.ID, "key", item.Options.Key,
			"attempts", item.AttemptCount, "error", err)
		h.emit(domain.EventRetryFailed, RetryFailed{
			ID:           item.ID,
			Key:          item.Options.Key,
			AttemptCount: item.AttemptCount,
			Err:          err,
		})
	}

	return nil
}

func (h *Helper) requeue(item *QueuedOperation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.queue = append(h.queue, item)
	metrics.OfflineQueueDepth.Set(float64(len(h.queue)))
}

// restore puts unprocessed items back at the head of the queue.
func (h *Helper) restore(items []*QueuedOperation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.queue = append(append([]*QueuedOperation{}, items...), h.queue...)
	metrics.OfflineQueueDepth.Set(float64(len(h.queue)))
}
