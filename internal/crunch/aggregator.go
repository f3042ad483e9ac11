package crunch

import (
	"context"
	"fmt"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/stats"
	"github.com/aevon-lab/cruncher/internal/core/storage"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/aevon-lab/cruncher/internal/metrics"
)

// Target is the entity a set of buckets is crunched for. EntityID is empty
// for global scope.
type Target struct {
	Scope    work.Scope
	EntityID string
}

func (t Target) String() string {
	if t.EntityID == "" {
		return string(t.Scope)
	}
	return string(t.Scope) + "." + t.EntityID
}

// Aggregator computes stat records from the fact store.
type Aggregator struct {
	facts storage.FactStore
	now   func() time.Time
}

func NewAggregator(facts storage.FactStore) *Aggregator {
	return &Aggregator{facts: facts, now: time.Now}
}

// scopeFilter narrows a filter to the target's own final match snapshots.
func scopeFilter(t Target, f dimension.Filter) dimension.Filter {
	var base dimension.Filter
	switch t.Scope {
	case work.ScopePlayer:
		base = append(base, dimension.Condition{Field: dimension.FieldPlayerID, Op: dimension.OpEq, Values: []any{t.EntityID}})
	case work.ScopeTeam:
		base = append(base, dimension.Condition{Field: dimension.FieldTeamID, Op: dimension.OpEq, Values: []any{t.EntityID}})
	}
	// Bucket predicates on final only narrow further, they never widen past
	// final snapshots.
	base = append(base, dimension.Condition{Field: dimension.FieldFinal, Op: dimension.OpEq, Values: []any{true}})
	return base.With(f...)
}

// Population returns the pick-rate denominator of t: every final row of the
// entity (or of the whole service for global scope), regardless of bucket.
func (a *Aggregator) Population(ctx context.Context, t Target) (int64, error) {
	n, err := a.facts.Count(ctx, scopeFilter(t, nil))
	if err != nil {
		return 0, fmt.Errorf("population of %s: %w", t, err)
	}
	return n, nil
}

// Aggregate computes the record of bucket b for t. A bucket without matching
// rows yields nil and no error.
func (a *Aggregator) Aggregate(ctx context.Context, b dimension.Bucket, t Target, population int64) (*stats.Record, error) {
	filter := scopeFilter(t, b.Filter)

	n, err := a.facts.Count(ctx, filter)
	if err != nil {
		metrics.Aggregations.WithLabelValues(string(t.Scope), "error").Inc()
		return nil, fmt.Errorf("count %s [%s]: %w", t, b.LinkKey, err)
	}
	if n == 0 {
		metrics.Aggregations.WithLabelValues(string(t.Scope), "empty").Inc()
		return nil, nil
	}

	totals, err := a.facts.Aggregate(ctx, filter)
	if err != nil {
		metrics.Aggregations.WithLabelValues(string(t.Scope), "error").Inc()
		return nil, fmt.Errorf("aggregate %s [%s]: %w", t, b.LinkKey, err)
	}
	if totals.Played == 0 {
		metrics.Aggregations.WithLabelValues(string(t.Scope), "empty").Inc()
		return nil, nil
	}

	metrics.Aggregations.WithLabelValues(string(t.Scope), "record").Inc()
	return stats.NewRecord(t.Scope, t.EntityID, b.LinkKey, totals, population, a.now()), nil
}
