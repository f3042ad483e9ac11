package batch

import (
	"fmt"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/partition"
	"github.com/aevon-lab/cruncher/internal/core/work"
)

// Group routes messages onto partitioned controllers so that all work for
// one entity is owned by a single controller. Global work always lands on
// partition 0, keeping global recomputes deduplicated.
type Group struct {
	controllers []*Controller
	threshold   int
}

// Window is the number of unacknowledged messages the broker must be allowed
// to hold for a group of partitions controllers with the given threshold.
// Any smaller prefetch can stall every partition below its threshold, leaving
// only the load timer to flush.
func Window(threshold, partitions int) int {
	if partitions < 1 {
		partitions = 1
	}
	return threshold * partitions
}

func NewGroup(partitions, threshold int, timeout time.Duration, handler Handler) *Group {
	if partitions < 1 {
		partitions = 1
	}
	g := &Group{controllers: make([]*Controller, partitions), threshold: threshold}
	for i := range g.controllers {
		g.controllers[i] = New(fmt.Sprintf("partition-%d", i), threshold, timeout, handler)
	}
	return g
}

// PartitionOf returns the controller index that owns item.
func (g *Group) PartitionOf(item work.Item) int {
	if item.Scope == work.ScopeGlobal {
		return 0
	}
	return partition.For(string(item.Scope)+":"+item.ID, len(g.controllers))
}

func (g *Group) Add(msg work.Message) error {
	return g.controllers[g.PartitionOf(msg.Item)].Add(msg)
}

// Flush flushes every partition and returns how many had pending work.
func (g *Group) Flush(trigger work.Trigger) int {
	n := 0
	for _, c := range g.controllers {
		if c.Flush(trigger) {
			n++
		}
	}
	return n
}

func (g *Group) Pending() int {
	n := 0
	for _, c := range g.controllers {
		n += c.Pending()
	}
	return n
}

// Close closes every partition, flushing what remains.
func (g *Group) Close() {
	for _, c := range g.controllers {
		c.Close()
	}
}

func (g *Group) Len() int { return len(g.controllers) }

// Window reports the prefetch this group needs, see Window.
func (g *Group) Window() int { return Window(g.threshold, len(g.controllers)) }
