package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/infra/storage/memory"
)

type roster struct {
	Class    string   `json:"class"`
	Students []string `json:"students"`
}

// brokenStore fails every durable operation.
type brokenStore struct{}

func (brokenStore) Set(context.Context, string, string) error { return errors.New("quota exceeded") }
func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("io error")
}
func (brokenStore) Delete(context.Context, string) error { return errors.New("io error") }
func (brokenStore) Close() error                         { return nil }

func TestDurable_RoundTripAndRestart(t *testing.T) {
	store := memory.NewMemoryStorage()
	h, _ := newTestHelper(t, Config{Store: store})
	ctx := context.Background()

	want := roster{Class: "XI IPA 1", Students: []string{"Andi", "Budi"}}
	h.SetDurable(ctx, "roster:xi-ipa-1", want)

	var got roster
	if !h.GetDurable(ctx, "roster:xi-ipa-1", &got) {
		t.Fatal("memory tier miss")
	}
	if got.Class != want.Class || len(got.Students) != 2 {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// a new helper over the same store has an empty memory tier
	restarted, _ := newTestHelper(t, Config{Store: store})
	var again roster
	if !restarted.GetDurable(ctx, "roster:xi-ipa-1", &again) {
		t.Fatal("durable tier miss after restart")
	}
	if again.Students[1] != "Budi" {
		t.Errorf("after restart got %+v", again)
	}
}

func TestDurable_Clear(t *testing.T) {
	h, _ := newTestHelper(t, Config{})
	ctx := context.Background()
	cleared := collect(h, domain.EventOfflineDataCleared)

	h.SetDurable(ctx, "k", 1)
	h.ClearDurable(ctx, "k")
	h.ClearDurable(ctx, "never-set")

	var v int
	if h.GetDurable(ctx, "k", &v) {
		t.Error("value survived ClearDurable")
	}
	if len(cleared()) != 2 {
		t.Errorf("offlineDataCleared events = %d, want 2", len(cleared()))
	}
}

func TestDurable_StoreFailureIsSwallowed(t *testing.T) {
	h, _ := newTestHelper(t, Config{Store: brokenStore{}})
	ctx := context.Background()
	stored := collect(h, domain.EventOfflineDataStored)

	h.SetDurable(ctx, "draft", "attendance draft")

	var got string
	if !h.GetDurable(ctx, "draft", &got) || got != "attendance draft" {
		t.Errorf("memory tier lost the value: %q", got)
	}
	if len(stored()) != 1 {
		t.Errorf("offlineDataStored events = %d, want 1", len(stored()))
	}

	h.ClearDurable(ctx, "draft")
	if h.GetDurable(ctx, "draft", &got) {
		t.Error("memory tier kept value after ClearDurable")
	}
}

func TestDurable_UnencodablePayload(t *testing.T) {
	h, _ := newTestHelper(t, Config{})
	ctx := context.Background()
	stored := collect(h, domain.EventOfflineDataStored)

	h.SetDurable(ctx, "bad", func() {})

	var v any
	if h.GetDurable(ctx, "bad", &v) {
		t.Error("unencodable payload was stored")
	}
	if len(stored()) != 0 {
		t.Error("offlineDataStored fired for a dropped payload")
	}
}

func TestPruneDurable(t *testing.T) {
	h, _ := newTestHelper(t, Config{})
	ctx := context.Background()

	start := time.Now()
	h.now = func() time.Time { return start }
	_ = h.Do(ctx, func(context.Context) error { return errors.New("down") },
		WithMaxRetries(0), WithKey("submit"))

	if _, ok := h.RetryRecord(ctx, "submit"); !ok {
		t.Fatal("no retry record")
	}

	h.now = func() time.Time { return start.Add(2 * time.Hour) }
	n, err := h.PruneDurable(ctx, "retry:", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, ok := h.RetryRecord(ctx, "submit"); ok {
		t.Error("retry record survived pruning")
	}
}
