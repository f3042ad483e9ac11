package stats

import (
	"time"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/shopspring/decimal"
)

// RatioPrecision is the number of decimal places kept for derived ratios.
const RatioPrecision = 6

var sixty = decimal.NewFromInt(60)

// Totals is the raw output of one bucket aggregation.
type Totals struct {
	Played    int64
	TimeSpent int64 // seconds
	Wins      int64
	Values    []decimal.Decimal // aligned with Metrics
}

// Record is the computed stat row of one bucket, and for player and team
// scope one entity. It is never mutated after creation.
type Record struct {
	Scope    work.Scope
	EntityID string // empty for global scope
	LinkKey  dimension.LinkKey

	Played    int64
	TimeSpent int64
	Wins      int64
	Values    []decimal.Decimal

	WinRate    decimal.Decimal
	PickRate   decimal.Decimal
	KDA        decimal.Decimal
	CSPerMin   decimal.Decimal
	GoldPerMin decimal.Decimal

	ComputedAt time.Time
}

// NewRecord derives the ratios of t. population is the pick-rate denominator
// of the whole request; zero leaves the pick rate at zero.
func NewRecord(scope work.Scope, entityID string, key dimension.LinkKey, t Totals, population int64, now time.Time) *Record {
	r := &Record{
		Scope:      scope,
		EntityID:   entityID,
		LinkKey:    key,
		Played:     t.Played,
		TimeSpent:  t.TimeSpent,
		Wins:       t.Wins,
		Values:     t.Values,
		ComputedAt: now.UTC(),
	}

	played := decimal.NewFromInt(t.Played)
	r.WinRate = ratio(decimal.NewFromInt(t.Wins), played)
	r.PickRate = ratio(played, decimal.NewFromInt(population))

	deaths := r.Value("deaths")
	if deaths.LessThan(decimal.NewFromInt(1)) {
		deaths = decimal.NewFromInt(1)
	}
	r.KDA = ratio(r.Value("kills").Add(r.Value("assists")), deaths)

	seconds := decimal.NewFromInt(t.TimeSpent)
	r.CSPerMin = ratio(r.Value("minion_kills").Mul(sixty), seconds)
	r.GoldPerMin = ratio(r.Value("gold").Mul(sixty), seconds)
	return r
}

// Value returns the named metric, or zero when unknown or absent.
func (r *Record) Value(name string) decimal.Decimal {
	i, ok := MetricIndex(name)
	if !ok || i >= len(r.Values) {
		return decimal.Zero
	}
	return r.Values[i]
}

// Ratios returns the derived values in RatioColumns order.
func (r *Record) Ratios() []decimal.Decimal {
	return []decimal.Decimal{r.WinRate, r.PickRate, r.KDA, r.CSPerMin, r.GoldPerMin}
}

func ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(den, RatioPrecision)
}
