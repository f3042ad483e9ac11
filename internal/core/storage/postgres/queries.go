package postgres

import (
	"strings"

	"github.com/aevon-lab/cruncher/internal/core/stats"
)

// SQL for fact aggregation, stat upserts and dimension loading.

const (
	queryCountFacts = `
		SELECT COUNT(*)` + factSource

	// queryAggregatePrefix is followed by one expression per declared metric.
	queryAggregatePrefix = `
		SELECT
			COUNT(*),
			COALESCE(SUM(match.duration), 0),
			COALESCE(SUM(CASE WHEN participant.winner THEN 1 ELSE 0 END), 0)`

	queryValidateTable = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)
	`

	// queryLoadDimensions reads every dimension value. Rows of one dimension are
	// contiguous; dimensions are ordered by position, values by id.
	queryLoadDimensions = `
		SELECT
			dimension, kind, id, name, scope,
			start_value, end_value, window_size, recent_matches, predicate
		FROM stats_dimensions
		ORDER BY position ASC, dimension ASC, id ASC
	`
)

// queryAggregateFacts is the static aggregate statement without its WHERE clause.
var queryAggregateFacts = func() string {
	var sb strings.Builder
	sb.WriteString(queryAggregatePrefix)
	for _, m := range stats.Metrics {
		sb.WriteString(",\n\t\t\t")
		sb.WriteString(stats.Operators[m.Op].SQL("participant_stats." + m.Source))
	}
	sb.WriteString(factSource)
	return sb.String()
}()
