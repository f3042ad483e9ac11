package projection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	v1 "github.com/aevon-lab/cruncher/internal/api/v1"
	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/storage"
	"github.com/aevon-lab/cruncher/internal/core/work"
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid stats query")

// Service implements the stats read path over the committed stat tables.
type Service struct {
	store storage.StatStore
}

// NewService creates a new projection service.
func NewService(store storage.StatStore) *Service {
	if store == nil {
		panic("projection: stat store must not be nil")
	}
	return &Service{store: store}
}

// QueryStats returns the stored rows of one scope and entity whose link key
// contains every requested dimension value.
func (s *Service) QueryStats(ctx context.Context, req StatsQueryRequest) (*v1.StatsResponse, error) {
	q, err := normalizeAndValidate(req)
	if err != nil {
		return nil, err
	}

	records, err := s.store.QueryStats(ctx, storage.StatQuery{
		Scope:    q.scope,
		EntityID: q.entityID,
		Link:     q.link,
		Limit:    q.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}

	rows := make([]v1.StatRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, v1.NewStatRow(r))
	}
	return &v1.StatsResponse{
		Scope:    string(q.scope),
		EntityID: q.entityID,
		Count:    len(rows),
		Rows:     rows,
	}, nil
}

func normalizeAndValidate(req StatsQueryRequest) (normalizedQuery, error) {
	scope, err := work.ParseScope(req.Scope)
	if err != nil {
		return normalizedQuery{}, invalidQueryf("%v", err)
	}

	entityID := strings.TrimSpace(req.EntityID)
	switch {
	case scope == work.ScopeGlobal && entityID != "":
		return normalizedQuery{}, invalidQueryf("global stats take no entity id")
	case scope != work.ScopeGlobal && entityID == "":
		return normalizedQuery{}, invalidQueryf("entity id is required for %s scope", scope)
	}

	for col := range req.Link {
		if !strings.HasSuffix(col, dimension.LinkSuffix) || col == dimension.LinkSuffix {
			return normalizedQuery{}, invalidQueryf("invalid link column %q", col)
		}
	}

	limit := req.Limit
	switch {
	case limit == 0:
		limit = defaultLimit
	case limit < 0 || limit > maxLimit:
		return normalizedQuery{}, invalidQueryf("limit must be between 1 and %d", maxLimit)
	}

	return normalizedQuery{scope: scope, entityID: entityID, link: req.Link, limit: limit}, nil
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
