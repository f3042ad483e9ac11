package work

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Scope selects which statistic family a work item recomputes.
type Scope string

const (
	ScopePlayer Scope = "player"
	ScopeGlobal Scope = "global"
	ScopeTeam   Scope = "team"
)

// Scopes lists every scope in crunch order.
var Scopes = []Scope{ScopeGlobal, ScopeTeam, ScopePlayer}

// ParseScope maps an AMQP type property onto a Scope.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopePlayer:
		return ScopePlayer, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeTeam:
		return ScopeTeam, nil
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Descriptor restricts a global recompute to the buckets tagged with the
// given dimension values. Keys are dimension names, values are value ids.
type Descriptor map[string]int64

// Key returns a canonical representation, e.g. "game_mode=1,hero=3".
func (d Descriptor) Key() string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatInt(d[name], 10))
	}
	return sb.String()
}

// Item is one unit of requested work. Immutable once parsed.
type Item struct {
	// ID is the player api id, the team id, or an opaque token for global items.
	ID    string
	Scope Scope

	// NotifyTopic is an extra routing key published once the item's batch commits.
	NotifyTopic string

	// Descriptor is set for dimension-driven global triggers.
	Descriptor Descriptor
}

// Message couples a broker delivery with its parsed work item.
// The raw body and headers are kept so the delivery can be dead-lettered verbatim.
type Message struct {
	DeliveryTag uint64
	Body        []byte
	Type        string
	Headers     map[string]interface{}
	Item        Item
}
