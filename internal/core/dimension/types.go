package dimension

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aevon-lab/cruncher/internal/core/work"
)

// Wildcard is the value name that tags a bucket without constraining it.
const Wildcard = "all"

// Value is one entry of a Dimension. Which payload fields are read depends on
// the dimension kind: series reads Start/End, Window or Recent; skill_tier
// reads Start/End; filter reads Predicate; region reads Name.
type Value struct {
	ID    int64      `yaml:"id" json:"id"`
	Name  string     `yaml:"name" json:"name"`
	Scope work.Scope `yaml:"scope,omitempty" json:"scope,omitempty"` // empty applies to every scope

	Start  string `yaml:"start,omitempty" json:"start,omitempty"`
	End    string `yaml:"end,omitempty" json:"end,omitempty"`
	Window string `yaml:"window,omitempty" json:"window,omitempty"`
	Recent int    `yaml:"recent,omitempty" json:"recent,omitempty"` // last N matches

	Predicate map[string]any `yaml:"predicate,omitempty" json:"predicate,omitempty"`
}

// Dimension is a named filter axis with an ordered list of values.
type Dimension struct {
	Name string `yaml:"name" json:"name"`

	// Kind selects the compiler; defaults to Name.
	Kind   string  `yaml:"kind,omitempty" json:"kind,omitempty"`
	Values []Value `yaml:"values" json:"values"`
}

func (d Dimension) kind() string {
	if d.Kind != "" {
		return d.Kind
	}
	return d.Name
}

// LinkSuffix ends every link column name.
const LinkSuffix = "_id"

// LinkColumn is the stat-row key column tagged by the dimension.
func LinkColumn(dimension string) string { return dimension + LinkSuffix }

// Op is a comparison operator of a filter condition.
type Op string

const (
	OpEq     Op = "eq"
	OpIn     Op = "in"
	OpGte    Op = "gte"
	OpLte    Op = "lte"
	OpLt     Op = "lt"
	OpWithin Op = "within" // Values[0] is a time.Duration relative to query time
	OpRecent Op = "recent" // Values[0] is the number of most recent matches
)

// Condition constrains one logical fact field.
type Condition struct {
	Field  Field
	Op     Op
	Values []any
}

// Filter is a conjunction of conditions.
type Filter []Condition

// With returns a copy of f extended by cs. f itself is never modified.
func (f Filter) With(cs ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(cs))
	out = append(out, f...)
	return append(out, cs...)
}

// HasField reports whether any condition constrains field.
func (f Filter) HasField(field Field) bool {
	for _, c := range f {
		if c.Field == field {
			return true
		}
	}
	return false
}

// LinkPair tags a stat row with one dimension value id.
type LinkPair struct {
	Dimension string
	ID        int64
}

// LinkKey addresses a stored stat row. Pairs follow dimension order.
type LinkKey []LinkPair

// String returns the canonical form, e.g. "game_mode_id=1,hero_id=3".
func (k LinkKey) String() string {
	parts := make([]string, 0, len(k))
	for _, p := range k {
		parts = append(parts, LinkColumn(p.Dimension)+"="+strconv.FormatInt(p.ID, 10))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Columns returns the key as a column -> id map.
func (k LinkKey) Columns() map[string]int64 {
	out := make(map[string]int64, len(k))
	for _, p := range k {
		out[LinkColumn(p.Dimension)] = p.ID
	}
	return out
}

// Selection is the value a bucket picked for one dimension.
type Selection struct {
	Dimension string
	Value     Value
}

// Bucket is one cell of the dimension cube for a scope.
type Bucket struct {
	Scope      work.Scope
	Selections []Selection
	Filter     Filter
	LinkKey    LinkKey
}

// Matches reports whether the bucket is tagged with every value of d.
func (b Bucket) Matches(d work.Descriptor) bool {
	cols := make(map[string]int64, len(b.LinkKey))
	for _, p := range b.LinkKey {
		cols[p.Dimension] = p.ID
	}
	for name, id := range d {
		got, ok := cols[name]
		if !ok || got != id {
			return false
		}
	}
	return true
}
