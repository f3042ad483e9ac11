package postgres

import (
	"database/sql/driver"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestBuildWhere(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	filter := dimension.Filter{
		{Field: dimension.FieldHeroID, Op: dimension.OpEq, Values: []any{int64(3)}},
		{Field: dimension.FieldGameModeID, Op: dimension.OpIn, Values: []any{1, 2}},
		{Field: dimension.FieldCreatedAt, Op: dimension.OpGte, Values: []any{start}},
		{Field: dimension.FieldCreatedAt, Op: dimension.OpWithin, Values: []any{48 * time.Hour}},
		{Field: dimension.FieldSkillTier, Op: dimension.OpLte, Values: []any{int64(20)}},
		{Field: dimension.FieldCreatedAt, Op: dimension.OpRecent, Values: []any{100}},
	}

	where, args, err := buildWhere(filter, now)
	require.NoError(t, err)
	require.Equal(t, "\n\t\tWHERE participant.hero_id = $1"+
		"\n\t\t  AND match.game_mode_id = ANY($2)"+
		"\n\t\t  AND match.created_at >= $3"+
		"\n\t\t  AND match.created_at >= $4"+
		"\n\t\t  AND participant.skill_tier <= $5"+
		"\n\t\t  AND match.api_id IN (SELECT api_id FROM match ORDER BY created_at DESC LIMIT $6)", where)

	require.Len(t, args, 6)
	require.Equal(t, int64(3), args[0])
	require.Equal(t, pq.Array([]any{1, 2}), args[1])
	require.Equal(t, start, args[2])
	require.Equal(t, now.Add(-48*time.Hour), args[3])
	require.Equal(t, 100, args[5])
}

func TestBuildWhere_Empty(t *testing.T) {
	where, args, err := buildWhere(nil, time.Now())
	require.NoError(t, err)
	require.Empty(t, where)
	require.Empty(t, args)
}

func TestBuildWhere_Errors(t *testing.T) {
	cases := []dimension.Filter{
		{{Field: "mood", Op: dimension.OpEq, Values: []any{1}}},
		{{Field: dimension.FieldHeroID, Op: dimension.OpEq}},
		{{Field: dimension.FieldHeroID, Op: dimension.OpEq, Values: []any{1, 2}}},
		{{Field: dimension.FieldHeroID, Op: "like", Values: []any{1}}},
		{{Field: dimension.FieldCreatedAt, Op: dimension.OpWithin, Values: []any{"7d"}}},
	}
	for _, f := range cases {
		_, _, err := buildWhere(f, time.Now())
		require.Error(t, err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	transient := []error{
		&pq.Error{Code: "08006"},
		&pq.Error{Code: "53300"},
		&pq.Error{Code: "57P01"},
		&pq.Error{Code: "40001"},
		&pq.Error{Code: "40P01"},
		timeoutErr{},
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
		driver.ErrBadConn,
	}
	for _, err := range transient {
		require.True(t, isTransient(err), "%v should be transient", err)
	}

	permanent := []error{
		&pq.Error{Code: "42601"}, // syntax error
		&pq.Error{Code: "42P01"}, // undefined table
		&pq.Error{Code: "23505"}, // unique violation
		errors.New("boom"),
		nil,
	}
	for _, err := range permanent {
		require.False(t, isTransient(err), "%v should be permanent", err)
	}

	wrapped := aggregationError("count", &pq.Error{Code: "08003"})
	require.True(t, cerrors.IsTransient(wrapped))
	require.False(t, cerrors.IsTransient(aggregationError("count", &pq.Error{Code: "42703"})))
}
