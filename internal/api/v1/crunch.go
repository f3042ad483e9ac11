package v1

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aevon-lab/cruncher/internal/core/work"
)

// CrunchRequest asks the worker to recompute the stats of one entity, of
// every global bucket, or of the global buckets tagged with Dimensions.
type CrunchRequest struct {
	// Scope is one of "player", "team" or "global".
	Scope string `json:"scope"`

	// ID is the player or team api id. Optional for global scope.
	ID string `json:"id,omitempty"`

	// Dimensions restricts a global recompute, e.g. {"hero": 3}.
	Dimensions map[string]int64 `json:"dimensions,omitempty"`

	// Notify is an extra topic announced once the stats are committed.
	Notify string `json:"notify,omitempty"`
}

// Message renders the request as a queue message: the scope becomes the
// message type, the body is the id or a dimension descriptor.
func (r *CrunchRequest) Message() (work.Scope, []byte, error) {
	scope, err := work.ParseScope(r.Scope)
	if err != nil {
		return "", nil, err
	}

	id := strings.TrimSpace(r.ID)
	switch {
	case len(r.Dimensions) > 0:
		if scope != work.ScopeGlobal {
			return "", nil, fmt.Errorf("dimensions are only allowed for global scope")
		}
		if id != "" {
			return "", nil, fmt.Errorf("id and dimensions are mutually exclusive")
		}
		body, err := json.Marshal(struct {
			Dimensions map[string]int64 `json:"dimensions"`
		}{r.Dimensions})
		if err != nil {
			return "", nil, err
		}
		return scope, body, nil
	case id != "":
		return scope, []byte(id), nil
	case scope == work.ScopeGlobal:
		return scope, []byte(string(work.ScopeGlobal)), nil
	}
	return "", nil, fmt.Errorf("id is required for %s scope", scope)
}

// CrunchResponse acknowledges an enqueued request.
type CrunchResponse struct {
	Status string `json:"status"`
	Scope  string `json:"scope"`
	ID     string `json:"id,omitempty"`
}

// FlushResponse reports a manual flush.
type FlushResponse struct {
	Status     string `json:"status"`
	Partitions int    `json:"partitions_flushed"`
}
