package work

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// Trigger records why a batch was flushed.
type Trigger string

const (
	TriggerThreshold Trigger = "threshold"
	TriggerTimer     Trigger = "timer"
	TriggerShutdown  Trigger = "shutdown"
	TriggerManual    Trigger = "manual"
)

// Batch is the unit of crunching and of acknowledgement. Identifiers are
// deduplicated per scope; Messages keeps every delivery for ack/nack.
// A Batch is owned by one goroutine at a time and is not safe for concurrent use.
type Batch struct {
	ID        string
	Trigger   Trigger
	CreatedAt time.Time

	Players mapset.Set[string]
	Teams   mapset.Set[string]

	// Globals holds plain global triggers, each one recomputes every bucket.
	Globals mapset.Set[string]

	// Descriptors holds dimension-driven global triggers keyed by Descriptor.Key.
	Descriptors map[string]Descriptor

	Messages []Message
}

func NewBatch() *Batch {
	return &Batch{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Players:     mapset.NewThreadUnsafeSet[string](),
		Teams:       mapset.NewThreadUnsafeSet[string](),
		Globals:     mapset.NewThreadUnsafeSet[string](),
		Descriptors: make(map[string]Descriptor),
	}
}

// Add records a message and dedups its identifier into the scope's set.
func (b *Batch) Add(msg Message) {
	b.Messages = append(b.Messages, msg)

	item := msg.Item
	switch item.Scope {
	case ScopePlayer:
		b.Players.Add(item.ID)
	case ScopeTeam:
		b.Teams.Add(item.ID)
	case ScopeGlobal:
		if item.Descriptor != nil {
			b.Descriptors[item.Descriptor.Key()] = item.Descriptor
		} else {
			b.Globals.Add(item.ID)
		}
	}
}

// Split returns a batch rebuilt from the messages keep accepts, with the
// same id and trigger, and the messages it rejected.
func (b *Batch) Split(keep func(Message) bool) (*Batch, []Message) {
	kept := NewBatch()
	kept.ID, kept.Trigger, kept.CreatedAt = b.ID, b.Trigger, b.CreatedAt

	var dropped []Message
	for _, m := range b.Messages {
		if keep(m) {
			kept.Add(m)
		} else {
			dropped = append(dropped, m)
		}
	}
	return kept, dropped
}

// Len is the number of messages held, duplicates included.
func (b *Batch) Len() int { return len(b.Messages) }

func (b *Batch) Empty() bool { return len(b.Messages) == 0 }

// FullGlobal reports whether any plain global trigger was received.
func (b *Batch) FullGlobal() bool { return b.Globals.Cardinality() > 0 }

// HasGlobal reports whether the batch requires any global recompute.
func (b *Batch) HasGlobal() bool { return b.FullGlobal() || len(b.Descriptors) > 0 }

// PlayerIDs returns the deduplicated player ids in sorted order.
func (b *Batch) PlayerIDs() []string { return sortedSlice(b.Players) }

// TeamIDs returns the deduplicated team ids in sorted order.
func (b *Batch) TeamIDs() []string { return sortedSlice(b.Teams) }

// DescriptorList returns the batch's descriptors ordered by key.
func (b *Batch) DescriptorList() []Descriptor {
	keys := make([]string, 0, len(b.Descriptors))
	for k := range b.Descriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Descriptor, 0, len(keys))
	for _, k := range keys {
		out = append(out, b.Descriptors[k])
	}
	return out
}

// NotifyTopics returns the distinct header-supplied topics of the batch.
func (b *Batch) NotifyTopics() []string {
	topics := mapset.NewThreadUnsafeSet[string]()
	for _, m := range b.Messages {
		if m.Item.NotifyTopic != "" {
			topics.Add(m.Item.NotifyTopic)
		}
	}
	return sortedSlice(topics)
}

func sortedSlice(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
