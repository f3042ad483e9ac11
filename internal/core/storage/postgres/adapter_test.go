package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aevon-lab/cruncher/internal/core/dimension"
	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/aevon-lab/cruncher/internal/core/stats"
	"github.com/aevon-lab/cruncher/internal/core/storage"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	_ storage.FactStore      = (*FactAdapter)(nil)
	_ storage.StatStore      = (*StatAdapter)(nil)
	_ storage.DimensionStore = (*DimensionAdapter)(nil)
)

var heroFilter = dimension.Filter{
	{Field: dimension.FieldPlayerID, Op: dimension.OpEq, Values: []any{"p-1"}},
	{Field: dimension.FieldFinal, Op: dimension.OpEq, Values: []any{true}},
}

func TestFactAdapter_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT COUNT(*)
		FROM participant
		JOIN participant_stats ON participant_stats.participant_api_id = participant.api_id
		JOIN roster ON roster.api_id = participant.roster_api_id
		JOIN match ON match.api_id = roster.match_api_id
		WHERE participant.player_api_id = $1
		  AND participant_stats.final = $2`)).
		WithArgs("p-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := NewFactAdapter(db).Count(context.Background(), heroFilter)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFactAdapter_CountClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "connection failure", err: &pq.Error{Code: "08006", Message: "connection failure"}, transient: true},
		{name: "network error", err: &net.OpError{Op: "read", Err: errors.New("connection reset by peer")}, transient: true},
		{name: "undefined table", err: &pq.Error{Code: "42P01", Message: "relation does not exist"}, transient: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(regexp.QuoteMeta(queryCountFacts)).WillReturnError(tc.err)

			_, err = NewFactAdapter(db).Count(context.Background(), nil)
			var aggErr *cerrors.AggregationError
			require.True(t, errors.As(err, &aggErr))
			require.Equal(t, tc.transient, aggErr.Transient)
			require.Equal(t, tc.transient, cerrors.IsTransient(err))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFactAdapter_CountRejectsUnknownField(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewFactAdapter(db).Count(context.Background(), dimension.Filter{{Field: "mood", Op: dimension.OpEq, Values: []any{1}}})
	var aggErr *cerrors.AggregationError
	require.True(t, errors.As(err, &aggErr))
	require.False(t, aggErr.Transient)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFactAdapter_Aggregate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"played", "time_spent", "wins"}
	row := []driver.Value{int64(4), int64(1200), int64(3)}
	for i, m := range stats.Metrics {
		cols = append(cols, m.Name)
		row = append(row, []byte(decimal.NewFromInt(int64(i)).String()))
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryAggregateFacts + "\n\t\tWHERE participant.player_api_id = $1")).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row...))

	totals, err := NewFactAdapter(db).Aggregate(context.Background(), heroFilter[:1])
	require.NoError(t, err)
	require.Equal(t, int64(4), totals.Played)
	require.Equal(t, int64(1200), totals.TimeSpent)
	require.Equal(t, int64(3), totals.Wins)
	require.Len(t, totals.Values, len(stats.Metrics))
	require.True(t, totals.Values[2].Equal(decimal.NewFromInt(2)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryAggregateFacts_DeclaresEveryMetric(t *testing.T) {
	require.Contains(t, queryAggregateFacts, "COALESCE(SUM(participant_stats.kills), 0)")
	require.Contains(t, queryAggregateFacts, "COALESCE(MAX(participant_stats.farm), 0)")
	require.Contains(t, queryAggregateFacts, "JOIN match ON match.api_id = roster.match_api_id")
}

func TestValidateSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"participant", "participant_stats", "roster"} {
		mock.ExpectQuery(regexp.QuoteMeta(queryValidateTable)).WithArgs(table).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	}
	mock.ExpectQuery(regexp.QuoteMeta(queryValidateTable)).WithArgs("match").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err = ValidateSchema(context.Background(), db)
	require.ErrorContains(t, err, "match table does not exist")
	require.NoError(t, mock.ExpectationsWereMet())
}

func testRecord(scope work.Scope, entity string, heroID int64) *stats.Record {
	values := make([]decimal.Decimal, len(stats.Metrics))
	for i := range values {
		values[i] = decimal.NewFromInt(1)
	}
	key := dimension.LinkKey{{Dimension: "hero", ID: heroID}}
	return stats.NewRecord(scope, entity, key, stats.Totals{Played: 2, TimeSpent: 600, Wins: 1, Values: values}, 10,
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
}

func TestStatAdapter_CommitStatsChunks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewStatAdapter(db, 2)
	records := []*stats.Record{
		testRecord(work.ScopePlayer, "p-1", 1),
		testRecord(work.ScopePlayer, "p-1", 2),
		testRecord(work.ScopePlayer, "p-2", 1),
		testRecord(work.ScopeGlobal, "", 1),
	}

	player := statTablesByScope[work.ScopePlayer]
	global := statTablesByScope[work.ScopeGlobal]

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(global.upsertStatement(1))).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(player.upsertStatement(2))).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(player.upsertStatement(1))).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.CommitStats(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatAdapter_CommitStatsRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewStatAdapter(db, 10)
	player := statTablesByScope[work.ScopePlayer]

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(player.upsertStatement(1))).
		WillReturnError(&pq.Error{Code: "23502", Message: "null value in column"})
	mock.ExpectRollback()

	err = adapter.CommitStats(context.Background(), []*stats.Record{testRecord(work.ScopePlayer, "p-1", 1)})
	require.Error(t, err)
	require.False(t, cerrors.IsTransient(err))
	require.ErrorContains(t, err, "commit: upsert player_stats")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatAdapter_CommitStatsEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewStatAdapter(db, 0).CommitStats(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatAdapter_ChunkSizeCapped(t *testing.T) {
	adapter := NewStatAdapter(nil, 1_000_000)
	require.LessOrEqual(t, adapter.chunkSize*len(statTablesByScope[work.ScopePlayer].columns()), maxBindParams)
	require.Equal(t, DefaultChunkSize, NewStatAdapter(nil, 0).chunkSize)
}

func TestStatTable_UpsertStatement(t *testing.T) {
	stmt := statTablesByScope[work.ScopeTeam].upsertStatement(2)
	n := len(statTablesByScope[work.ScopeTeam].columns())

	require.Contains(t, stmt, "INSERT INTO team_stats (team_api_id, link_key, dimensions, played,")
	require.Contains(t, stmt, "ON CONFLICT (team_api_id, link_key) DO UPDATE SET dimensions = EXCLUDED.dimensions, played = EXCLUDED.played")
	require.Contains(t, stmt, "kills = EXCLUDED.kills")
	require.Contains(t, stmt, "computed_at = EXCLUDED.computed_at")
	require.Contains(t, stmt, "$"+strconv.Itoa(2*n)+")")
	require.NotContains(t, stmt, "$"+strconv.Itoa(2*n+1))

	global := statTablesByScope[work.ScopeGlobal].upsertStatement(1)
	require.Contains(t, global, "ON CONFLICT (link_key) DO UPDATE SET")
}

func TestStatTable_RowArgs(t *testing.T) {
	r := testRecord(work.ScopePlayer, "p-9", 3)
	args, err := statTablesByScope[work.ScopePlayer].rowArgs(r)
	require.NoError(t, err)
	require.Len(t, args, len(statTablesByScope[work.ScopePlayer].columns()))
	require.Equal(t, "p-9", args[0])
	require.Equal(t, "hero_id=3", args[1])
	require.JSONEq(t, `{"hero_id":3}`, string(args[2].([]byte)))

	r.Values = r.Values[:3]
	_, err = statTablesByScope[work.ScopePlayer].rowArgs(r)
	require.Error(t, err)
}

func TestStatAdapter_QueryStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := append([]string{"player_api_id"}, valueColumns...)
	row := []driver.Value{"p-1", []byte(`{"hero_id":3,"game_mode_id":1}`), int64(2), int64(600), int64(1)}
	for range stats.Metrics {
		row = append(row, "1")
	}
	row = append(row, "0.5", "0.2", "2", "6", "60", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery(regexp.QuoteMeta("FROM player_stats WHERE dimensions @> $1 AND player_api_id = $2 ORDER BY link_key ASC LIMIT $3")).
		WithArgs([]byte(`{"hero_id":3}`), "p-1", 50).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(row...))

	recs, err := NewStatAdapter(db, 0).QueryStats(context.Background(), storage.StatQuery{
		Scope:    work.ScopePlayer,
		EntityID: "p-1",
		Link:     map[string]int64{"hero_id": 3},
		Limit:    50,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "p-1", recs[0].EntityID)
	require.Equal(t, "game_mode_id=1,hero_id=3", recs[0].LinkKey.String())
	require.Equal(t, "0.5", recs[0].WinRate.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatAdapter_QueryStatsRequiresEntity(t *testing.T) {
	_, err := NewStatAdapter(nil, 0).QueryStats(context.Background(), storage.StatQuery{Scope: work.ScopeTeam})
	require.ErrorContains(t, err, "requires an entity id")
}

func TestDimensionAdapter_LoadDimensions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"dimension", "kind", "id", "name", "scope", "start_value", "end_value", "window_size", "recent_matches", "predicate"}
	mock.ExpectQuery(regexp.QuoteMeta(queryLoadDimensions)).WillReturnRows(sqlmock.NewRows(cols).
		AddRow("hero", "", int64(0), "all", nil, nil, nil, nil, nil, nil).
		AddRow("hero", "", int64(3), "Taka", nil, nil, nil, nil, nil, nil).
		AddRow("series", "", int64(1), "recent", "global", nil, nil, "7d", nil, nil).
		AddRow("filter", "", int64(2), "ranked", nil, nil, nil, nil, nil, []byte(`{"game_mode_id":[1,2]}`)))

	dims, err := NewDimensionAdapter(db).LoadDimensions(context.Background())
	require.NoError(t, err)
	require.Len(t, dims, 3)
	require.Len(t, dims[0].Values, 2)
	require.Equal(t, work.ScopeGlobal, dims[1].Values[0].Scope)
	require.Equal(t, "7d", dims[1].Values[0].Window)
	require.Equal(t, []any{float64(1), float64(2)}, dims[2].Values[0].Predicate["game_mode_id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDimensionAdapter_LoadDimensionsRejectsUnknownKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cols := []string{"dimension", "kind", "id", "name", "scope", "start_value", "end_value", "window_size", "recent_matches", "predicate"}
	mock.ExpectQuery(regexp.QuoteMeta(queryLoadDimensions)).WillReturnRows(sqlmock.NewRows(cols).
		AddRow("weather", "", int64(1), "rain", nil, nil, nil, nil, nil, nil))

	_, err = NewDimensionAdapter(db).LoadDimensions(context.Background())
	require.True(t, cerrors.IsConfiguration(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
