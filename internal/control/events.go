package control

import (
	"log/slog"

	"github.com/vietddude/absenta/internal/core/domain"
	"github.com/vietddude/absenta/internal/resilience"
)

// logEvents writes every helper event to log and returns the
// unsubscribe functions.
func logEvents(h *resilience.Helper, log *slog.Logger) []func() {
	return []func(){
		resilience.On(h, domain.EventRetryQueued, func(p resilience.RetryQueued) {
			log.Warn("Operation queued", "id", p.ID, "key", p.Key, "attempts", p.Attempts,
				"depth", p.QueueDepth, "error", p.Err)
		}),
		resilience.On(h, domain.EventRetrySuccess, func(p resilience.RetrySucceeded) {
			log.Info("Queued operation replayed", "id", p.ID, "key", p.Key, "replays", p.AttemptCount+1)
		}),
		resilience.On(h, domain.EventRetryFailed, func(p resilience.RetryFailed) {
			log.Error("Queued operation dropped", "id", p.ID, "key", p.Key,
				"replays", p.AttemptCount, "error", p.Err)
		}),
		resilience.On(h, domain.EventOfflineDataStored, func(p resilience.DataChanged) {
			log.Debug("Offline data stored", "key", p.Key)
		}),
		resilience.On(h, domain.EventOfflineDataCleared, func(p resilience.DataChanged) {
			log.Debug("Offline data cleared", "key", p.Key)
		}),
		resilience.On(h, domain.EventPerformanceMeasured, func(p resilience.Performance) {
			log.Debug("Operation measured", "name", p.Name, "duration", p.Duration)
		}),
		resilience.On(h, domain.EventPerformanceError, func(p resilience.Performance) {
			log.Warn("Measured operation failed", "name", p.Name, "duration", p.Duration, "error", p.Err)
		}),
	}
}
