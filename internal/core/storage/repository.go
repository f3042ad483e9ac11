package storage

import (
	"context"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/stats"
	"github.com/aevon-lab/cruncher/internal/core/work"
)

// FactStore reads the match fact graph (participant, participant stats,
// roster, match). Every failure is an *errors.AggregationError.
type FactStore interface {
	// Count returns the number of participant rows matching filter.
	Count(ctx context.Context, filter dimension.Filter) (int64, error)

	// Aggregate computes the totals of every declared metric over filter.
	Aggregate(ctx context.Context, filter dimension.Filter) (stats.Totals, error)
}

// StatStore persists computed stat rows.
type StatStore interface {
	// CommitStats upserts every record in one transaction. Existing rows with
	// the same scope, entity and link key are fully replaced.
	CommitStats(ctx context.Context, records []*stats.Record) error

	// QueryStats returns stored rows whose link key contains every pair of q.Link.
	QueryStats(ctx context.Context, q StatQuery) ([]*stats.Record, error)
}

// StatQuery selects stored stat rows.
type StatQuery struct {
	Scope    work.Scope
	EntityID string           // required for player and team scope
	Link     map[string]int64 // link column -> value id, e.g. "hero_id": 3
	Limit    int
}

// DimensionStore loads the configured dimension set.
type DimensionStore interface {
	LoadDimensions(ctx context.Context) ([]dimension.Dimension, error)
}
