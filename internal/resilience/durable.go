package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/absenta/internal/cache"
	"github.com/vietddude/absenta/internal/core/domain"
)

// SetDurable stores payload under key in both cache tiers. A durable tier
// failure is logged and otherwise ignored; the memory tier still holds the
// value. Payloads that cannot be JSON-encoded are logged and dropped.
func (h *Helper) SetDurable(ctx context.Context, key string, payload any) {
	err := h.cache.Put(ctx, key, payload)
	if err != nil {
		var se *cache.StorageError
		if !errors.As(err, &se) {
			h.log.Error("Failed to store offline data", "key", key, "error", err)
			return
		}
		h.log.Warn("Durable tier write failed, kept in memory", "key", key, "error", err)
	}
	h.emit(domain.EventOfflineDataStored, DataChanged{Key: key, At: h.now()})
}

// GetDurable decodes the value stored under key into dst. It reports false
// for a missing, unreadable or incompatible entry.
func (h *Helper) GetDurable(ctx context.Context, key string, dst any) bool {
	return h.cache.Get(ctx, key, dst)
}

// ClearDurable removes key from both tiers.
func (h *Helper) ClearDurable(ctx context.Context, key string) {
	if err := h.cache.Delete(ctx, key); err != nil {
		h.log.Warn("Durable tier delete failed", "key", key, "error", err)
	}
	h.emit(domain.EventOfflineDataCleared, DataChanged{Key: key, At: h.now()})
}

// PruneDurable deletes entries under prefix older than maxAge. Stores that
// cannot list keys return cache.ErrPruneUnsupported.
func (h *Helper) PruneDurable(ctx context.Context, prefix string, maxAge time.Duration) (int, error) {
	return h.cache.Prune(ctx, prefix, h.now().Add(-maxAge))
}
