package errors

import (
	"context"
	"fmt"

	"stream-monetization-workers/internal/common/metrics"
)

// BestEffort runs a side effect whose failure must not affect the caller's
// primary result. Errors and panics are logged at warn level and dropped.
// It reports whether the step succeeded.
func BestEffort(ctx context.Context, log Logger, step string, fn func(ctx context.Context) error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("best-effort step panicked", map[string]interface{}{
				"step":  step,
				"panic": fmt.Sprint(r),
			})
			metrics.SideEffectFailures.WithLabelValues(step).Inc()
			ok = false
		}
	}()

	if err := fn(ctx); err != nil {
		log.Warn("best-effort step failed", map[string]interface{}{
			"step":  step,
			"error": err.Error(),
		})
		metrics.SideEffectFailures.WithLabelValues(step).Inc()
		return false
	}
	return true
}
