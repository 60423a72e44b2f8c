package resilience

import (
	"time"

	"github.com/vietddude/absenta/internal/core/domain"
)

// LoadParams are the tunables adjusted to link quality.
type LoadParams struct {
	BatchSize         int
	Delay             time.Duration
	EnableCompression bool
}

// AdaptLoadParams tiers base by effective connection type:
//   - slow-2g, 2g: batch ≤ 20, delay ≥ 500ms, compression on
//   - 3g: batch ≤ 30, delay ≥ 200ms
//   - anything else: base unchanged
func AdaptLoadParams(q domain.NetworkQuality, base LoadParams) LoadParams {
	p := base
	switch q.EffectiveType {
	case domain.EffectiveSlow2G, domain.Effective2G:
		p.BatchSize = min(p.BatchSize, 20)
		p.Delay = max(p.Delay, 500*time.Millisecond)
		p.EnableCompression = true
	case domain.Effective3G:
		p.BatchSize = min(p.BatchSize, 30)
		p.Delay = max(p.Delay, 200*time.Millisecond)
	}
	return p
}

// NetworkQuality returns the current link quality, or an unknown quality
// when no source is configured or it has no reading yet.
func (h *Helper) NetworkQuality() domain.NetworkQuality {
	if h.quality == nil {
		return domain.UnknownQuality()
	}
	q, ok := h.quality.Quality()
	if !ok {
		return domain.UnknownQuality()
	}
	return q
}

// AdaptiveParameters applies AdaptLoadParams to the current link quality.
func (h *Helper) AdaptiveParameters(base LoadParams) LoadParams {
	return AdaptLoadParams(h.NetworkQuality(), base)
}
