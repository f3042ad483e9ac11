package dimension

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/work"
	"golang.org/x/sync/singleflight"
)

// Cube holds the precomputed buckets of every scope. Readers get an immutable
// snapshot; Refresh swaps in a new one only when the dimension set changed.
type Cube struct {
	source Source
	state  atomic.Pointer[cubeState]
	group  singleflight.Group
}

type cubeState struct {
	fingerprint string
	dimensions  int
	buckets     map[work.Scope][]Bucket
	builtAt     time.Time
}

func NewCube(source Source) *Cube {
	return &Cube{source: source}
}

// Refresh reloads the dimension set and rebuilds the buckets if its
// fingerprint changed. Concurrent callers share one load. On error the
// previous snapshot stays in place.
func (c *Cube) Refresh(ctx context.Context) (bool, error) {
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Cube) refresh(ctx context.Context) (bool, error) {
	dims, err := c.source.LoadDimensions(ctx)
	if err != nil {
		return false, fmt.Errorf("loading dimensions: %w", err)
	}

	fp, err := Fingerprint(dims)
	if err != nil {
		return false, err
	}
	if cur := c.state.Load(); cur != nil && cur.fingerprint == fp {
		return false, nil
	}

	next := &cubeState{
		fingerprint: fp,
		dimensions:  len(dims),
		buckets:     make(map[work.Scope][]Bucket, len(work.Scopes)),
		builtAt:     time.Now().UTC(),
	}
	for _, scope := range work.Scopes {
		buckets, err := BuildBuckets(dims, scope)
		if err != nil {
			return false, err
		}
		next.buckets[scope] = buckets
	}
	c.state.Store(next)

	slog.Info("[Cube] Buckets rebuilt",
		"dimensions", next.dimensions,
		"global", len(next.buckets[work.ScopeGlobal]),
		"team", len(next.buckets[work.ScopeTeam]),
		"player", len(next.buckets[work.ScopePlayer]),
		"fingerprint", fp[:12])
	return true, nil
}

// Buckets returns the bucket list of scope. The slice is shared and must not be modified.
func (c *Cube) Buckets(scope work.Scope) []Bucket {
	s := c.state.Load()
	if s == nil {
		return nil
	}
	return s.buckets[scope]
}

// Ready reports whether a snapshot has been built.
func (c *Cube) Ready() bool { return c.state.Load() != nil }

// Fingerprint returns the fingerprint of the current snapshot, or "" before the first build.
func (c *Cube) Fingerprint() string {
	if s := c.state.Load(); s != nil {
		return s.fingerprint
	}
	return ""
}

// Fingerprint hashes a dimension set. Map keys are encoded in sorted order,
// so equal sets always hash equally.
func Fingerprint(dims []Dimension) (string, error) {
	data, err := json.Marshal(dims)
	if err != nil {
		return "", fmt.Errorf("encoding dimensions: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
