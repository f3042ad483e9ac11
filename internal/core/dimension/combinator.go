package dimension

import (
	"fmt"

	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/aevon-lab/cruncher/internal/core/work"
)

// Validate checks the dimension set without building any bucket.
// Every failure is a ConfigurationError.
func Validate(dims []Dimension) error {
	seen := make(map[string]struct{}, len(dims))
	for _, d := range dims {
		if d.Name == "" {
			return &cerrors.ConfigurationError{Reason: "dimension name must not be empty"}
		}
		if _, dup := seen[d.Name]; dup {
			return &cerrors.ConfigurationError{Dimension: d.Name, Reason: "duplicate dimension"}
		}
		seen[d.Name] = struct{}{}

		if !KnownKind(d.kind()) {
			return &cerrors.ConfigurationError{Dimension: d.Name, Reason: fmt.Sprintf("unknown dimension kind %q", d.kind())}
		}

		ids := make(map[int64]struct{}, len(d.Values))
		for _, v := range d.Values {
			if _, dup := ids[v.ID]; dup {
				return &cerrors.ConfigurationError{Dimension: d.Name, Value: v.Name, Reason: fmt.Sprintf("duplicate value id %d", v.ID)}
			}
			ids[v.ID] = struct{}{}

			switch v.Scope {
			case "", work.ScopePlayer, work.ScopeGlobal, work.ScopeTeam:
			default:
				return &cerrors.ConfigurationError{Dimension: d.Name, Value: v.Name, Reason: fmt.Sprintf("unknown scope %q", v.Scope)}
			}
		}
	}
	return nil
}

type compiledValue struct {
	value Value
	conds []Condition
}

// BuildBuckets expands dims into the cartesian product of buckets for scope.
// The first dimension varies slowest, so the output order is deterministic.
// Zero dimensions yield exactly one unconstrained bucket.
func BuildBuckets(dims []Dimension, scope work.Scope) ([]Bucket, error) {
	if err := Validate(dims); err != nil {
		return nil, err
	}

	axes := make([][]compiledValue, len(dims))
	for i, d := range dims {
		for _, v := range d.Values {
			conds, err := compileValue(d, v)
			if err != nil {
				return nil, err
			}
			if v.Scope != "" && v.Scope != scope {
				continue
			}
			axes[i] = append(axes[i], compiledValue{value: v, conds: conds})
		}
		if len(axes[i]) == 0 {
			return nil, nil
		}
	}

	total := 1
	for _, axis := range axes {
		total *= len(axis)
	}

	buckets := make([]Bucket, 0, total)
	idx := make([]int, len(axes))
	for {
		b := Bucket{
			Scope:      scope,
			Selections: make([]Selection, len(axes)),
			LinkKey:    make(LinkKey, len(axes)),
		}
		for i, axis := range axes {
			cv := axis[idx[i]]
			b.Selections[i] = Selection{Dimension: dims[i].Name, Value: cv.value}
			b.LinkKey[i] = LinkPair{Dimension: dims[i].Name, ID: cv.value.ID}
			b.Filter = append(b.Filter, cv.conds...)
		}
		buckets = append(buckets, b)

		// odometer: advance the last axis, carrying leftwards
		i := len(axes) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(axes[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return buckets, nil
}
