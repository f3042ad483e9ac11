package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/work"
)

// DimensionAdapter implements storage.DimensionStore over the stats_dimensions table.
type DimensionAdapter struct {
	db *sql.DB
}

func NewDimensionAdapter(db *sql.DB) *DimensionAdapter {
	return &DimensionAdapter{db: db}
}

// LoadDimensions reads every dimension value and groups consecutive rows by
// dimension name. The result is validated before it is returned.
func (a *DimensionAdapter) LoadDimensions(ctx context.Context) ([]dimension.Dimension, error) {
	rows, err := a.db.QueryContext(ctx, queryLoadDimensions)
	if err != nil {
		return nil, fmt.Errorf("load dimensions: %w", err)
	}
	defer rows.Close()

	var dims []dimension.Dimension
	values := 0
	for rows.Next() {
		var (
			name, kind                string
			v                         dimension.Value
			scope, start, end, window sql.NullString
			recent                    sql.NullInt64
			predicate                 []byte
		)
		if err := rows.Scan(&name, &kind, &v.ID, &v.Name, &scope, &start, &end, &window, &recent, &predicate); err != nil {
			return nil, fmt.Errorf("load dimensions: scan row: %w", err)
		}

		v.Scope = work.Scope(scope.String)
		v.Start = start.String
		v.End = end.String
		v.Window = window.String
		v.Recent = int(recent.Int64)
		if len(predicate) > 0 {
			if err := json.Unmarshal(predicate, &v.Predicate); err != nil {
				return nil, fmt.Errorf("load dimensions: %s value %d: decode predicate: %w", name, v.ID, err)
			}
		}

		if len(dims) == 0 || dims[len(dims)-1].Name != name {
			dims = append(dims, dimension.Dimension{Name: name, Kind: kind})
		}
		last := &dims[len(dims)-1]
		last.Values = append(last.Values, v)
		values++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load dimensions: iterate rows: %w", err)
	}

	if err := dimension.Validate(dims); err != nil {
		return nil, err
	}

	slog.Debug("[DimensionAdapter] Loaded dimensions", "dimensions", len(dims), "values", values)
	return dims, nil
}
