// Package cache implements the two-tier durable cache: a bounded in-memory
// tier in front of a storage.DurableStore.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/infra/storage"
	"github.com/vietddude/absenta/internal/metrics"
)

// DefaultMemorySize is used when no memory tier size is configured.
const DefaultMemorySize = 1024

// StorageError reports a durable tier failure. The memory tier is not
// affected by it.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("durable %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// TwoTier caches JSON payloads in memory and in a durable store. The memory
// tier is authoritative while the process lives; the durable tier survives
// restarts and refills the memory tier on read.
type TwoTier struct {
	mem   *lru.Cache[string, domain.CacheEntry]
	store storage.DurableStore
	log   *slog.Logger
	now   func() time.Time

	// serializes writes and the miss-then-promote path so a concurrent
	// Delete cannot be undone by a stale promotion
	mu sync.Mutex
}

// New creates a cache over store. memorySize bounds the memory tier; an
// entry evicted from it is still served from the durable tier.
func New(store storage.DurableStore, memorySize int) (*TwoTier, error) {
	if memorySize <= 0 {
		memorySize = DefaultMemorySize
	}
	mem, err := lru.New[string, domain.CacheEntry](memorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory tier: %w", err)
	}
	return &TwoTier{
		mem:   mem,
		store: store,
		log:   slog.Default().With("component", "cache"),
		now:   time.Now,
	}, nil
}

// Put writes payload to the memory tier and then to the durable tier. A
// *StorageError means the memory write stands but the durable write failed.
// Any other error means nothing was written.
func (c *TwoTier) Put(ctx context.Context, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %q: %w", key, err)
	}
	entry := domain.CacheEntry{
		Key:           key,
		Payload:       raw,
		StoredAt:      c.now(),
		SchemaVersion: domain.CacheSchemaVersion,
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Add(key, entry)
	if err := c.store.Set(ctx, key, string(encoded)); err != nil {
		metrics.CacheWriteErrors.Inc()
		return &StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Get decodes the payload stored under key into dst. It reports false when
// the key is absent from both tiers, when the durable tier fails, or when
// the stored value cannot be decoded.
func (c *TwoTier) Get(ctx context.Context, key string, dst any) bool {
	entry, ok := c.lookup(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(entry.Payload, dst); err != nil {
		c.log.Warn("Cached payload does not decode", "key", key, "error", err)
		return false
	}
	return true
}

// Entry returns the raw envelope stored under key.
func (c *TwoTier) Entry(ctx context.Context, key string) (domain.CacheEntry, bool) {
	return c.lookup(ctx, key)
}

func (c *TwoTier) lookup(ctx context.Context, key string) (domain.CacheEntry, bool) {
	if entry, ok := c.mem.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
		return entry, true
	}
	metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	// a writer may have filled the memory tier while we waited
	if entry, ok := c.mem.Get(key); ok {
		return entry, true
	}

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("durable", "error").Inc()
		c.log.Warn("Durable cache read failed", "key", key, "error", err)
		return domain.CacheEntry{}, false
	}
	if !found {
		metrics.CacheLookups.WithLabelValues("durable", "miss").Inc()
		return domain.CacheEntry{}, false
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		metrics.CacheLookups.WithLabelValues("durable", "error").Inc()
		c.log.Warn("Durable cache entry is corrupt", "key", key, "error", err)
		return domain.CacheEntry{}, false
	}
	if entry.SchemaVersion != domain.CacheSchemaVersion {
		metrics.CacheLookups.WithLabelValues("durable", "miss").Inc()
		c.log.Debug("Ignoring entry with foreign schema version",
			"key", key, "version", entry.SchemaVersion)
		return domain.CacheEntry{}, false
	}

	metrics.CacheLookups.WithLabelValues("durable", "hit").Inc()
	c.mem.Add(key, entry)
	return entry, true
}

// Delete removes key from both tiers. The memory tier is always cleared; a
// durable failure is returned as a *StorageError.
func (c *TwoTier) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mem.Remove(key)
	if err := c.store.Delete(ctx, key); err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// PurgeMemory drops the memory tier, leaving only durable entries.
func (c *TwoTier) PurgeMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem.Purge()
}

// MemoryLen returns the number of entries held in memory.
func (c *TwoTier) MemoryLen() int {
	return c.mem.Len()
}

// ErrPruneUnsupported is returned by Prune when the durable store cannot
// enumerate its keys.
var ErrPruneUnsupported = errors.New("durable store cannot list keys")

// Prune deletes entries under prefix stored before cutoff, and entries that
// no longer decode. It returns the number of deleted keys.
func (c *TwoTier) Prune(ctx context.Context, prefix string, cutoff time.Time) (int, error) {
	lister, ok := c.store.(storage.KeyLister)
	if !ok {
		return 0, ErrPruneUnsupported
	}
	keys, err := lister.Keys(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list %q: %w", prefix, err)
	}

	pruned := 0
	for _, key := range keys {
		raw, found, err := c.store.Get(ctx, key)
		if err != nil {
			return pruned, &StorageError{Op: "get", Key: key, Err: err}
		}
		if !found {
			continue
		}
		var entry domain.CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err == nil && !entry.StoredAt.Before(cutoff) {
			continue
		}
		if err := c.Delete(ctx, key); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
