package dimension

import (
	"fmt"
	"sort"
	"strconv"

	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
)

// compiler turns one dimension value into aggregation conditions.
type compiler func(v Value) ([]Condition, error)

// kinds maps a dimension kind to its compiler.
var kinds = map[string]compiler{
	"hero":       equality(FieldHeroID),
	"game_mode":  equality(FieldGameModeID),
	"role":       equality(FieldRoleID),
	"series":     compileSeries,
	"skill_tier": compileSkillTier,
	"filter":     compilePredicate,
	"region":     compileRegion,
	"build":      noop,
}

// KnownKind reports whether a compiler is registered for kind.
func KnownKind(kind string) bool {
	_, ok := kinds[kind]
	return ok
}

func equality(field Field) compiler {
	return func(v Value) ([]Condition, error) {
		return []Condition{{Field: field, Op: OpEq, Values: []any{v.ID}}}, nil
	}
}

func noop(Value) ([]Condition, error) { return nil, nil }

func compileRegion(v Value) ([]Condition, error) {
	return []Condition{{Field: FieldShardID, Op: OpEq, Values: []any{v.Name}}}, nil
}

func compileSeries(v Value) ([]Condition, error) {
	if v.Recent != 0 {
		if v.Window != "" || v.Start != "" || v.End != "" {
			return nil, fmt.Errorf("recent cannot be combined with window or start/end")
		}
		if v.Recent < 0 {
			return nil, fmt.Errorf("recent must be positive, got %d", v.Recent)
		}
		return []Condition{{Field: FieldCreatedAt, Op: OpRecent, Values: []any{v.Recent}}}, nil
	}

	if v.Window != "" {
		if v.Start != "" || v.End != "" {
			return nil, fmt.Errorf("window cannot be combined with start/end")
		}
		d, err := ParseWindow(v.Window)
		if err != nil {
			return nil, err
		}
		return []Condition{{Field: FieldCreatedAt, Op: OpWithin, Values: []any{d}}}, nil
	}

	if v.Start == "" && v.End == "" {
		return nil, fmt.Errorf("series needs start, end, window or recent")
	}

	var out []Condition
	if v.Start != "" {
		start, _, err := parseBound(v.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		out = append(out, Condition{Field: FieldCreatedAt, Op: OpGte, Values: []any{start}})
	}
	if v.End != "" {
		end, dateOnly, err := parseBound(v.End)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		if dateOnly {
			out = append(out, Condition{Field: FieldCreatedAt, Op: OpLt, Values: []any{end.AddDate(0, 0, 1)}})
		} else {
			out = append(out, Condition{Field: FieldCreatedAt, Op: OpLte, Values: []any{end}})
		}
	}
	return out, nil
}

func compileSkillTier(v Value) ([]Condition, error) {
	if v.Start == "" && v.End == "" {
		return nil, fmt.Errorf("skill_tier needs start or end")
	}

	var out []Condition
	var lo, hi int64
	if v.Start != "" {
		n, err := strconv.ParseInt(v.Start, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
		lo = n
		out = append(out, Condition{Field: FieldSkillTier, Op: OpGte, Values: []any{n}})
	}
	if v.End != "" {
		n, err := strconv.ParseInt(v.End, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("end: %w", err)
		}
		hi = n
		out = append(out, Condition{Field: FieldSkillTier, Op: OpLte, Values: []any{n}})
	}
	if v.Start != "" && v.End != "" && lo > hi {
		return nil, fmt.Errorf("start %d is after end %d", lo, hi)
	}
	return out, nil
}

// compilePredicate merges a stored predicate map. Scalars compare for
// equality, lists match any element.
func compilePredicate(v Value) ([]Condition, error) {
	if len(v.Predicate) == 0 {
		return nil, fmt.Errorf("filter has an empty predicate")
	}

	keys := make([]string, 0, len(v.Predicate))
	for k := range v.Predicate {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Condition, 0, len(keys))
	for _, k := range keys {
		if !ValidField(k) {
			return nil, fmt.Errorf("unknown field %q", k)
		}
		switch val := v.Predicate[k].(type) {
		case []any:
			if len(val) == 0 {
				return nil, fmt.Errorf("field %q has an empty list", k)
			}
			out = append(out, Condition{Field: Field(k), Op: OpIn, Values: val})
		case map[string]any, nil:
			return nil, fmt.Errorf("field %q must be a scalar or a list", k)
		default:
			out = append(out, Condition{Field: Field(k), Op: OpEq, Values: []any{val}})
		}
	}
	return out, nil
}

// compileValue wraps compiler failures in a ConfigurationError.
func compileValue(d Dimension, v Value) ([]Condition, error) {
	if v.Name == Wildcard {
		return nil, nil
	}
	c, ok := kinds[d.kind()]
	if !ok {
		return nil, &cerrors.ConfigurationError{Dimension: d.Name, Reason: fmt.Sprintf("unknown dimension kind %q", d.kind())}
	}
	conds, err := c(v)
	if err != nil {
		return nil, &cerrors.ConfigurationError{Dimension: d.Name, Value: v.Name, Reason: err.Error()}
	}
	return conds, nil
}
