package v1

import (
	"time"

	"github.com/aevon-lab/cruncher/internal/core/stats"
	"github.com/shopspring/decimal"
)

// StatRow is one stored stat row.
type StatRow struct {
	LinkKey    string                     `json:"link_key"`
	Dimensions map[string]int64           `json:"dimensions"`
	Played     int64                      `json:"played"`
	TimeSpent  int64                      `json:"time_spent"`
	Wins       int64                      `json:"wins"`
	Metrics    map[string]decimal.Decimal `json:"metrics"`
	WinRate    decimal.Decimal            `json:"win_rate"`
	PickRate   decimal.Decimal            `json:"pick_rate"`
	KDA        decimal.Decimal            `json:"kda"`
	CSPerMin   decimal.Decimal            `json:"cs_per_min"`
	GoldPerMin decimal.Decimal            `json:"gold_per_min"`
	ComputedAt time.Time                  `json:"computed_at"`
}

func NewStatRow(r *stats.Record) StatRow {
	metrics := make(map[string]decimal.Decimal, len(stats.Metrics))
	for _, m := range stats.Metrics {
		metrics[m.Name] = r.Value(m.Name)
	}
	return StatRow{
		LinkKey:    r.LinkKey.String(),
		Dimensions: r.LinkKey.Columns(),
		Played:     r.Played,
		TimeSpent:  r.TimeSpent,
		Wins:       r.Wins,
		Metrics:    metrics,
		WinRate:    r.WinRate,
		PickRate:   r.PickRate,
		KDA:        r.KDA,
		CSPerMin:   r.CSPerMin,
		GoldPerMin: r.GoldPerMin,
		ComputedAt: r.ComputedAt,
	}
}

// StatsResponse lists the stat rows of one scope and entity.
type StatsResponse struct {
	Scope    string    `json:"scope"`
	EntityID string    `json:"entity_id,omitempty"`
	Count    int       `json:"count"`
	Rows     []StatRow `json:"rows"`
}
