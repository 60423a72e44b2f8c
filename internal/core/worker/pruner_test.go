package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/absenta/internal/cache"
)

type stubTarget struct {
	calls []string
	err   map[string]error
}

func (s *stubTarget) PruneDurable(_ context.Context, prefix string, maxAge time.Duration) (int, error) {
	s.calls = append(s.calls, prefix)
	return 1, s.err[prefix]
}

func TestPruner_PrunesEveryPrefix(t *testing.T) {
	target := &stubTarget{err: map[string]error{"retry:": errors.New("io error")}}
	p := NewPruner(time.Hour, nil, target)

	if !p.Prune(context.Background()) {
		t.Fatal("Prune reported unsupported store")
	}
	if len(target.calls) != len(DefaultPrefixes) {
		t.Errorf("calls = %v, want %v", target.calls, DefaultPrefixes)
	}
}

func TestPruner_StopsOnUnsupportedStore(t *testing.T) {
	target := &stubTarget{err: map[string]error{"a:": cache.ErrPruneUnsupported}}
	p := NewPruner(time.Hour, []string{"a:", "b:"}, target)

	if p.Prune(context.Background()) {
		t.Error("expected false for unsupported store")
	}
	if len(target.calls) != 1 {
		t.Errorf("calls = %v, want [a:]", target.calls)
	}
}

func TestPruner_DisabledRetentionReturns(t *testing.T) {
	target := &stubTarget{}
	done := make(chan struct{})
	go func() {
		NewPruner(0, nil, target).Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return with retention disabled")
	}
	if len(target.calls) != 0 {
		t.Errorf("pruned with retention disabled: %v", target.calls)
	}
}
