package resilience

import (
	"context"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/metrics"
)

// MeasurePerformance runs op once and publishes how long it took. The
// operation's error is returned unchanged.
func (h *Helper) MeasurePerformance(ctx context.Context, name string, op Operation) error {
	start := h.now()
	err := op(ctx)
	elapsed := h.now().Sub(start)

	if err != nil {
		metrics.OperationDuration.WithLabelValues(name, "error").Observe(elapsed.Seconds())
		h.log.Debug("Operation failed", "name", name, "duration", elapsed, "error", err)
		h.emit(domain.EventPerformanceError, Performance{Name: name, Duration: elapsed, Err: err})
		return err
	}

	metrics.OperationDuration.WithLabelValues(name, "success").Observe(elapsed.Seconds())
	h.log.Debug("Operation measured", "name", name, "duration", elapsed)
	h.emit(domain.EventPerformanceMeasured, Performance{Name: name, Duration: elapsed})
	return nil
}
