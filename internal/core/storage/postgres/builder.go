package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/lib/pq"
)

const queryRecentMatches = `match.api_id IN (SELECT api_id FROM match ORDER BY created_at DESC LIMIT %s)`

// whereBuilder renders a filter as a parameterized WHERE clause.
// Values are always bound as $n arguments, never spliced into the text.
type whereBuilder struct {
	now   time.Time
	parts []string
	args  []any
}

func (b *whereBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *whereBuilder) add(c dimension.Condition) error {
	col, ok := factColumns[c.Field]
	if !ok {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	if len(c.Values) == 0 {
		return fmt.Errorf("condition on %q has no value", c.Field)
	}
	if c.Op != dimension.OpIn && len(c.Values) != 1 {
		return fmt.Errorf("condition %s on %q takes one value, got %d", c.Op, c.Field, len(c.Values))
	}

	switch c.Op {
	case dimension.OpEq:
		b.parts = append(b.parts, col+" = "+b.bind(c.Values[0]))
	case dimension.OpIn:
		b.parts = append(b.parts, col+" = ANY("+b.bind(pq.Array(c.Values))+")")
	case dimension.OpGte:
		b.parts = append(b.parts, col+" >= "+b.bind(c.Values[0]))
	case dimension.OpLte:
		b.parts = append(b.parts, col+" <= "+b.bind(c.Values[0]))
	case dimension.OpLt:
		b.parts = append(b.parts, col+" < "+b.bind(c.Values[0]))
	case dimension.OpWithin:
		d, ok := c.Values[0].(time.Duration)
		if !ok {
			return fmt.Errorf("window on %q is not a duration", c.Field)
		}
		b.parts = append(b.parts, col+" >= "+b.bind(b.now.Add(-d)))
	case dimension.OpRecent:
		b.parts = append(b.parts, fmt.Sprintf(queryRecentMatches, b.bind(c.Values[0])))
	default:
		return fmt.Errorf("unsupported operator %q", c.Op)
	}
	return nil
}

// buildWhere returns " WHERE ..." (or "" for an empty filter) and its arguments.
func buildWhere(filter dimension.Filter, now time.Time) (string, []any, error) {
	b := &whereBuilder{now: now}
	for _, c := range filter {
		if err := b.add(c); err != nil {
			return "", nil, err
		}
	}
	if len(b.parts) == 0 {
		return "", nil, nil
	}
	return "\n\t\tWHERE " + strings.Join(b.parts, "\n\t\t  AND "), b.args, nil
}
