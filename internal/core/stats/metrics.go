package stats

import "fmt"

// Supported metric operators.
const (
	OpSum = "sum"
	OpMax = "max"
	OpMin = "min"
)

// Operator renders the aggregate function of a metric. To add an operator,
// implement it and register it in Operators.
type Operator interface {
	// SQL wraps a column expression in the aggregate function.
	SQL(expr string) string
}

var Operators = map[string]Operator{
	OpSum: sqlFunc("SUM"),
	OpMax: sqlFunc("MAX"),
	OpMin: sqlFunc("MIN"),
}

type sqlFunc string

func (f sqlFunc) SQL(expr string) string {
	return fmt.Sprintf("COALESCE(%s(%s), 0)", string(f), expr)
}

// ValidOperator reports whether op is a registered operator.
func ValidOperator(op string) bool {
	_, ok := Operators[op]
	return ok
}

// Metric is one declared stat column. Source is the participant stats
// column it is computed from; Name is the column in the stat tables.
type Metric struct {
	Name   string
	Source string
	Op     string
}

// Metrics is the static metric schema shared by the aggregate query, the
// upsert statement and the stat table migration. Order is significant.
var Metrics = []Metric{
	{Name: "kills", Source: "kills", Op: OpSum},
	{Name: "deaths", Source: "deaths", Op: OpSum},
	{Name: "assists", Source: "assists", Op: OpSum},
	{Name: "farm", Source: "farm", Op: OpSum},
	{Name: "minion_kills", Source: "minion_kills", Op: OpSum},
	{Name: "jungle_kills", Source: "jungle_kills", Op: OpSum},
	{Name: "non_jungle_minion_kills", Source: "non_jungle_minion_kills", Op: OpSum},
	{Name: "crystal_mine_captures", Source: "crystal_mine_captures", Op: OpSum},
	{Name: "gold_mine_captures", Source: "gold_mine_captures", Op: OpSum},
	{Name: "kraken_captures", Source: "kraken_captures", Op: OpSum},
	{Name: "turret_captures", Source: "turret_captures", Op: OpSum},
	{Name: "gold", Source: "gold", Op: OpSum},
	{Name: "dmg_true_hero", Source: "dmg_true_hero", Op: OpSum},
	{Name: "dmg_true_kraken", Source: "dmg_true_kraken", Op: OpSum},
	{Name: "dmg_true_turret", Source: "dmg_true_turret", Op: OpSum},
	{Name: "dmg_true_vain_turret", Source: "dmg_true_vain_turret", Op: OpSum},
	{Name: "dmg_true_others", Source: "dmg_true_others", Op: OpSum},
	{Name: "dmg_dealt_hero", Source: "dmg_dealt_hero", Op: OpSum},
	{Name: "dmg_dealt_kraken", Source: "dmg_dealt_kraken", Op: OpSum},
	{Name: "dmg_dealt_turret", Source: "dmg_dealt_turret", Op: OpSum},
	{Name: "dmg_dealt_vain_turret", Source: "dmg_dealt_vain_turret", Op: OpSum},
	{Name: "dmg_dealt_others", Source: "dmg_dealt_others", Op: OpSum},
	{Name: "dmg_rcvd_dealt_hero", Source: "dmg_rcvd_dealt_hero", Op: OpSum},
	{Name: "dmg_rcvd_true_hero", Source: "dmg_rcvd_true_hero", Op: OpSum},
	{Name: "heal_rcvd_hero", Source: "heal_rcvd_hero", Op: OpSum},
	{Name: "heal_heal_hero", Source: "heal_heal_hero", Op: OpSum},
	{Name: "impact_score", Source: "impact_score", Op: OpSum},
	{Name: "objective_score", Source: "objective_score", Op: OpSum},
	{Name: "utility_score", Source: "utility_score", Op: OpSum},
	{Name: "max_kills", Source: "kills", Op: OpMax},
	{Name: "max_farm", Source: "farm", Op: OpMax},
}

// RatioColumns are the derived columns every record carries, in storage order.
var RatioColumns = []string{"win_rate", "pick_rate", "kda", "cs_per_min", "gold_per_min"}

var metricIndex = func() map[string]int {
	idx := make(map[string]int, len(Metrics))
	for i, m := range Metrics {
		idx[m.Name] = i
	}
	return idx
}()

// MetricIndex returns the position of the named metric in Metrics.
func MetricIndex(name string) (int, bool) {
	i, ok := metricIndex[name]
	return i, ok
}
