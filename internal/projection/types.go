package projection

import "github.com/aevon-lab/cruncher/internal/core/work"

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// StatsQueryRequest represents the parameters of a stats lookup.
type StatsQueryRequest struct {
	Scope    string
	EntityID string
	Link     map[string]int64 // e.g. "hero_id": 3
	Limit    int              // default: 100
}

type normalizedQuery struct {
	scope    work.Scope
	entityID string
	link     map[string]int64
	limit    int
}
