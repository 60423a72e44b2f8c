package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/absenta/internal/infra/storage"
	"github.com/vietddude/absenta/internal/infra/storage/memory"
)

type rekap struct {
	Class   string         `json:"class"`
	Present int            `json:"present"`
	ByDay   map[string]int `json:"by_day"`
}

// flakyStore wraps a memory store and fails the selected operations.
type flakyStore struct {
	*memory.MemoryStorage
	failSet, failGet, failDelete bool
}

var errQuota = errors.New("quota exceeded")

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	if s.failSet {
		return errQuota
	}
	return s.MemoryStorage.Set(ctx, key, value)
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failGet {
		return "", false, errQuota
	}
	return s.MemoryStorage.Get(ctx, key)
}

func (s *flakyStore) Delete(ctx context.Context, key string) error {
	if s.failDelete {
		return errQuota
	}
	return s.MemoryStorage.Delete(ctx, key)
}

func TestTwoTier_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	c, err := New(store, 16)
	require.NoError(t, err)

	want := rekap{Class: "XI IPA 2", Present: 31, ByDay: map[string]int{"senin": 30, "selasa": 31}}
	require.NoError(t, c.Put(ctx, "rekap:xi-ipa-2", want))

	t.Run("MemoryTier", func(t *testing.T) {
		var got rekap
		assert.True(t, c.Get(ctx, "rekap:xi-ipa-2", &got))
		assert.Equal(t, want, got)
	})

	t.Run("DurableTierAfterRestart", func(t *testing.T) {
		restarted, err := New(store, 16)
		require.NoError(t, err)
		assert.Equal(t, 0, restarted.MemoryLen())

		var got rekap
		assert.True(t, restarted.Get(ctx, "rekap:xi-ipa-2", &got))
		assert.Equal(t, want, got)
		assert.Equal(t, 1, restarted.MemoryLen(), "durable hit should be promoted")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, "rekap:xi-ipa-2"))
		require.NoError(t, c.Delete(ctx, "rekap:xi-ipa-2"))
		var got rekap
		assert.False(t, c.Get(ctx, "rekap:xi-ipa-2", &got))
		assert.Equal(t, 0, store.Len())
	})
}

func TestTwoTier_DurableWriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStorage: memory.NewMemoryStorage(), failSet: true}
	c, err := New(store, 16)
	require.NoError(t, err)

	err = c.Put(ctx, "k", "v")
	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "set", se.Op)
	assert.ErrorIs(t, err, errQuota)

	var got string
	assert.True(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "v", got)
	assert.Equal(t, 0, store.Len())
}

func TestTwoTier_ReadFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStorage: memory.NewMemoryStorage()}
	c, err := New(store, 16)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "k", 1))
	c.PurgeMemory()
	store.failGet = true

	var got int
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestTwoTier_CorruptDurableValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	require.NoError(t, store.Set(ctx, "broken", "{not json"))
	require.NoError(t, store.Set(ctx, "foreign",
		`{"key":"foreign","payload":1,"stored_at":"2025-01-01T00:00:00Z","schema_version":"0.1"}`))

	c, err := New(store, 16)
	require.NoError(t, err)

	var got int
	assert.False(t, c.Get(ctx, "broken", &got))
	assert.False(t, c.Get(ctx, "foreign", &got))
}

func TestTwoTier_PayloadTypeMismatch(t *testing.T) {
	ctx := context.Background()
	c, err := New(memory.NewMemoryStorage(), 16)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "k", "text"))
	var got int
	assert.False(t, c.Get(ctx, "k", &got))
}

func TestTwoTier_EvictedEntryServedFromDurable(t *testing.T) {
	ctx := context.Background()
	c, err := New(memory.NewMemoryStorage(), 2)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "a", 1))
	require.NoError(t, c.Put(ctx, "b", 2))
	require.NoError(t, c.Put(ctx, "c", 3)) // evicts a from memory

	assert.Equal(t, 2, c.MemoryLen())
	var got int
	assert.True(t, c.Get(ctx, "a", &got))
	assert.Equal(t, 1, got)
}

func TestTwoTier_DeleteFailureStillClearsMemory(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStorage: memory.NewMemoryStorage()}
	c, err := New(store, 16)
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "k", 1))
	store.failDelete = true

	var se *StorageError
	assert.ErrorAs(t, c.Delete(ctx, "k"), &se)
	_, inMemory := c.mem.Get("k")
	assert.False(t, inMemory)
}

func TestTwoTier_UnencodablePayload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	c, err := New(store, 16)
	require.NoError(t, err)

	err = c.Put(ctx, "fn", func() {})
	require.Error(t, err)
	var se *StorageError
	assert.False(t, errors.As(err, &se))
	assert.Equal(t, 0, c.MemoryLen())
}

func TestTwoTier_Prune(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryStorage()
	c, err := New(store, 16)
	require.NoError(t, err)

	base := time.Date(2024, 8, 1, 7, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	require.NoError(t, c.Put(ctx, "retry:old", 1))
	require.NoError(t, c.Put(ctx, "export:last", 1))

	c.now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, c.Put(ctx, "retry:fresh", 2))
	require.NoError(t, store.Set(ctx, "retry:corrupt", "{"))

	n, err := c.Prune(ctx, "retry:", base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var v int
	assert.False(t, c.Get(ctx, "retry:old", &v))
	assert.True(t, c.Get(ctx, "retry:fresh", &v))
	assert.True(t, c.Get(ctx, "export:last", &v), "other prefixes are untouched")
}

func TestTwoTier_PruneUnsupported(t *testing.T) {
	c, err := New(struct{ storage.DurableStore }{memory.NewMemoryStorage()}, 16)
	require.NoError(t, err)

	_, err = c.Prune(context.Background(), "retry:", time.Now())
	assert.ErrorIs(t, err, ErrPruneUnsupported)
}
