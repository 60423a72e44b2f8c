package resilience

import (
	"testing"
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/network"
)

func TestAdaptLoadParams(t *testing.T) {
	base := LoadParams{BatchSize: 50, Delay: 100 * time.Millisecond}

	tests := []struct {
		effective domain.EffectiveType
		base      LoadParams
		want      LoadParams
	}{
		{domain.Effective2G, base, LoadParams{BatchSize: 20, Delay: 500 * time.Millisecond, EnableCompression: true}},
		{domain.EffectiveSlow2G, base, LoadParams{BatchSize: 20, Delay: 500 * time.Millisecond, EnableCompression: true}},
		{domain.Effective3G, base, LoadParams{BatchSize: 30, Delay: 200 * time.Millisecond}},
		{domain.Effective4G, base, base},
		{domain.EffectiveUnknown, base, base},
		// already conservative values are kept
		{domain.Effective2G, LoadParams{BatchSize: 10, Delay: time.Second},
			LoadParams{BatchSize: 10, Delay: time.Second, EnableCompression: true}},
		{domain.Effective3G, LoadParams{BatchSize: 25, Delay: 300 * time.Millisecond},
			LoadParams{BatchSize: 25, Delay: 300 * time.Millisecond}},
	}

	for _, tt := range tests {
		got := AdaptLoadParams(domain.NetworkQuality{EffectiveType: tt.effective}, tt.base)
		if got != tt.want {
			t.Errorf("AdaptLoadParams(%s, %+v) = %+v, want %+v", tt.effective, tt.base, got, tt.want)
		}
	}
}

func TestAdaptiveParameters_UsesQualitySource(t *testing.T) {
	m := network.NewManual(true)
	h, _ := newTestHelper(t, Config{Notifier: m, Quality: m})
	base := LoadParams{BatchSize: 50, Delay: 100 * time.Millisecond}

	// no reading yet
	if got := h.AdaptiveParameters(base); got != base {
		t.Errorf("without quality got %+v, want base", got)
	}
	if q := h.NetworkQuality(); q.EffectiveType != domain.EffectiveUnknown || q.RTT != 0 || q.SaveData {
		t.Errorf("fallback quality = %+v", q)
	}

	m.SetQuality(domain.NetworkQuality{EffectiveType: domain.Effective2G})
	got := h.AdaptiveParameters(base)
	want := LoadParams{BatchSize: 20, Delay: 500 * time.Millisecond, EnableCompression: true}
	if got != want {
		t.Errorf("2g got %+v, want %+v", got, want)
	}
}
