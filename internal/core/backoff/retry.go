package backoff

import (
	"context"
	"log/slog"
	"time"

	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/aevon-lab/cruncher/internal/metrics"
)

// Retry calls fn until it succeeds, waiting a fixed delay between attempts.
// It gives up only when ctx is done, returning a ConnectivityError that wraps
// the last failure.
func Retry(ctx context.Context, target string, delay time.Duration, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				slog.Info("[Backoff] Connected after retries", "target", target, "attempts", attempt)
			}
			return nil
		}
		metrics.ConnectFailures.WithLabelValues(target).Inc()
		slog.Warn("[Backoff] Connection failed, retrying",
			"target", target,
			"attempt", attempt,
			"retry_in", delay,
			"error", err,
		)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return &cerrors.ConnectivityError{Target: target, Err: err}
		case <-t.C:
		}
	}
}
