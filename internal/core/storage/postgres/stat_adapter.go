package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/stats"
	"github.com/aevon-lab/cruncher/internal/core/storage"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/shopspring/decimal"
)

const (
	// DefaultChunkSize is the number of rows per multi-row upsert.
	DefaultChunkSize = 500

	// maxBindParams is the PostgreSQL limit of bind parameters per statement.
	maxBindParams = 65535
)

// statTable describes where the records of one scope are stored.
type statTable struct {
	name      string
	entityCol string // empty for global scope
}

var statTablesByScope = map[work.Scope]statTable{
	work.ScopePlayer: {name: "player_stats", entityCol: "player_api_id"},
	work.ScopeTeam:   {name: "team_stats", entityCol: "team_api_id"},
	work.ScopeGlobal: {name: "global_stats"},
}

// valueColumns are replaced wholesale on every upsert, in argument order.
var valueColumns = func() []string {
	cols := []string{"dimensions", "played", "time_spent", "wins"}
	for _, m := range stats.Metrics {
		cols = append(cols, m.Name)
	}
	cols = append(cols, stats.RatioColumns...)
	return append(cols, "computed_at")
}()

func (t statTable) keyColumns() []string {
	if t.entityCol == "" {
		return []string{"link_key"}
	}
	return []string{t.entityCol, "link_key"}
}

func (t statTable) columns() []string {
	return append(t.keyColumns(), valueColumns...)
}

// upsertStatement renders a multi-row INSERT ... ON CONFLICT DO UPDATE for rows records.
func (t statTable) upsertStatement(rows int) string {
	cols := t.columns()

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", t.name, strings.Join(cols, ", "))
	n := 0
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range cols {
			if c > 0 {
				sb.WriteString(", ")
			}
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		}
		sb.WriteByte(')')
	}

	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET ", strings.Join(t.keyColumns(), ", "))
	for i, col := range valueColumns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col + " = EXCLUDED." + col)
	}
	return sb.String()
}

// rowArgs returns the bind arguments of r in columns() order.
func (t statTable) rowArgs(r *stats.Record) ([]interface{}, error) {
	dims, err := json.Marshal(r.LinkKey.Columns())
	if err != nil {
		return nil, fmt.Errorf("encode link key: %w", err)
	}
	if len(r.Values) != len(stats.Metrics) {
		return nil, fmt.Errorf("record %s has %d metric values, want %d", r.LinkKey, len(r.Values), len(stats.Metrics))
	}

	args := make([]interface{}, 0, len(valueColumns)+2)
	if t.entityCol != "" {
		args = append(args, r.EntityID)
	}
	args = append(args, r.LinkKey.String(), dims, r.Played, r.TimeSpent, r.Wins)
	for _, v := range r.Values {
		args = append(args, v)
	}
	for _, v := range r.Ratios() {
		args = append(args, v)
	}
	return append(args, r.ComputedAt), nil
}

// StatAdapter implements storage.StatStore.
type StatAdapter struct {
	db        *sql.DB
	chunkSize int
}

// NewStatAdapter creates a StatAdapter sharing db. chunkSize is capped so a
// chunk never exceeds the bind parameter limit.
func NewStatAdapter(db *sql.DB, chunkSize int) *StatAdapter {
	limit := maxBindParams / len(statTablesByScope[work.ScopePlayer].columns())
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize > limit {
		chunkSize = limit
	}
	return &StatAdapter{db: db, chunkSize: chunkSize}
}

// CommitStats upserts all records in a single transaction, one multi-row
// statement per chunk. Either every row is written or none is.
func (a *StatAdapter) CommitStats(ctx context.Context, records []*stats.Record) error {
	if len(records) == 0 {
		return nil
	}

	byScope := make(map[work.Scope][]*stats.Record, len(work.Scopes))
	for _, r := range records {
		if _, ok := statTablesByScope[r.Scope]; !ok {
			return aggregationError("commit", fmt.Errorf("no stat table for scope %q", r.Scope))
		}
		byScope[r.Scope] = append(byScope[r.Scope], r)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return aggregationError("commit: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	statements := 0
	for _, scope := range work.Scopes {
		recs := byScope[scope]
		table := statTablesByScope[scope]

		for start := 0; start < len(recs); start += a.chunkSize {
			end := start + a.chunkSize
			if end > len(recs) {
				end = len(recs)
			}
			chunk := recs[start:end]

			args := make([]interface{}, 0, len(chunk)*len(table.columns()))
			for _, r := range chunk {
				rowArgs, err := table.rowArgs(r)
				if err != nil {
					return aggregationError("commit", err)
				}
				args = append(args, rowArgs...)
			}

			if _, err := tx.ExecContext(ctx, table.upsertStatement(len(chunk)), args...); err != nil {
				return aggregationError("commit: upsert "+table.name, err)
			}
			statements++
		}
	}

	if err := tx.Commit(); err != nil {
		return aggregationError("commit", err)
	}

	slog.Debug("[StatAdapter] Committed",
		"records", len(records),
		"statements", statements)
	return nil
}

// QueryStats returns the stored rows of q.Scope whose dimensions contain q.Link.
func (a *StatAdapter) QueryStats(ctx context.Context, q storage.StatQuery) ([]*stats.Record, error) {
	table, ok := statTablesByScope[q.Scope]
	if !ok {
		return nil, fmt.Errorf("no stat table for scope %q", q.Scope)
	}

	link := q.Link
	if link == nil {
		link = map[string]int64{}
	}
	linkJSON, err := json.Marshal(link)
	if err != nil {
		return nil, fmt.Errorf("encode link filter: %w", err)
	}

	entity := "''"
	if table.entityCol != "" {
		entity = table.entityCol
	}
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE dimensions @> $1", entity, strings.Join(valueColumns, ", "), table.name)
	args := []interface{}{linkJSON}
	if table.entityCol != "" {
		if q.EntityID == "" {
			return nil, fmt.Errorf("%s scope requires an entity id", q.Scope)
		}
		args = append(args, q.EntityID)
		query += fmt.Sprintf(" AND %s = $%d", table.entityCol, len(args))
	}
	query += " ORDER BY link_key ASC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.name, err)
	}
	defer rows.Close()

	var out []*stats.Record
	for rows.Next() {
		r, err := scanStatRow(rows, q.Scope)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table.name, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStatRow(row scanner, scope work.Scope) (*stats.Record, error) {
	r := &stats.Record{Scope: scope, Values: make([]decimal.Decimal, len(stats.Metrics))}
	var dims []byte

	dest := []interface{}{&r.EntityID, &dims, &r.Played, &r.TimeSpent, &r.Wins}
	for i := range r.Values {
		dest = append(dest, &r.Values[i])
	}
	dest = append(dest, &r.WinRate, &r.PickRate, &r.KDA, &r.CSPerMin, &r.GoldPerMin, &r.ComputedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan stat row: %w", err)
	}

	var cols map[string]int64
	if err := json.Unmarshal(dims, &cols); err != nil {
		return nil, fmt.Errorf("decode dimensions: %w", err)
	}
	names := make([]string, 0, len(cols))
	for col := range cols {
		names = append(names, col)
	}
	sort.Strings(names)
	for _, col := range names {
		r.LinkKey = append(r.LinkKey, dimension.LinkPair{Dimension: strings.TrimSuffix(col, "_id"), ID: cols[col]})
	}
	return r, nil
}
