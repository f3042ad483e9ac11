package crunch

import (
	"context"
	"log/slog"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/aevon-lab/cruncher/internal/metrics"
)

// Refreshable is a bucket cache that can reload its dimension set.
type Refreshable interface {
	Refresh(ctx context.Context) (bool, error)
	Buckets(scope work.Scope) []dimension.Bucket
}

// Refresher periodically reloads the dimension set so edits to the dimension
// tables reach the cube without a restart. It is stateless between ticks.
type Refresher struct {
	interval time.Duration
	cube     Refreshable
}

func NewRefresher(interval time.Duration, cube Refreshable) *Refresher {
	return &Refresher{interval: interval, cube: cube}
}

// Start blocks until ctx is cancelled. A zero interval disables refreshing.
func (r *Refresher) Start(ctx context.Context) error {
	if r.interval <= 0 {
		slog.Info("[Refresher] Dimension refresh disabled")
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("[Refresher] Starting dimension refresh", "interval", r.interval)
	for {
		select {
		case <-ticker.C:
			r.RefreshOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Refresher] Stopping (context cancelled)")
			return nil
		}
	}
}

// Load performs the initial dimension load and publishes the bucket counts.
// Unlike RefreshOnce it returns the error, a worker without buckets cannot run.
func (r *Refresher) Load(ctx context.Context) error {
	if _, err := r.cube.Refresh(ctx); err != nil {
		return err
	}
	r.publish()
	return nil
}

// RefreshOnce reloads the dimensions and publishes the bucket counts. A failed
// reload keeps the previous buckets.
func (r *Refresher) RefreshOnce(ctx context.Context) bool {
	changed, err := r.cube.Refresh(ctx)
	if err != nil {
		slog.Error("[Refresher] Dimension refresh failed, keeping previous buckets", "error", err)
		return false
	}
	if changed {
		r.publish()
	}
	return changed
}

func (r *Refresher) publish() {
	for _, scope := range work.Scopes {
		metrics.CubeBuckets.WithLabelValues(string(scope)).Set(float64(len(r.cube.Buckets(scope))))
	}
}
