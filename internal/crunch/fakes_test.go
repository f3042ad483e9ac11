package crunch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	"github.com/aevon-lab/cruncher/internal/core/stats"
	"github.com/aevon-lab/cruncher/internal/core/storage"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

// fakeFacts answers every query from count and totals, recording each filter.
type fakeFacts struct {
	mu         sync.Mutex
	counts     []dimension.Filter
	aggregates []dimension.Filter

	count     func(f dimension.Filter) (int64, error)
	aggregate func(f dimension.Filter) (stats.Totals, error)
}

var _ storage.FactStore = (*fakeFacts)(nil)

func (f *fakeFacts) Count(_ context.Context, filter dimension.Filter) (int64, error) {
	f.mu.Lock()
	f.counts = append(f.counts, filter)
	f.mu.Unlock()
	if f.count == nil {
		return 10, nil
	}
	return f.count(filter)
}

func (f *fakeFacts) Aggregate(_ context.Context, filter dimension.Filter) (stats.Totals, error) {
	f.mu.Lock()
	f.aggregates = append(f.aggregates, filter)
	f.mu.Unlock()
	if f.aggregate == nil {
		return totals(10, 600, 5), nil
	}
	return f.aggregate(filter)
}

func (f *fakeFacts) aggregateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.aggregates)
}

func totals(played, seconds, wins int64) stats.Totals {
	values := make([]decimal.Decimal, len(stats.Metrics))
	for i := range values {
		values[i] = decimal.NewFromInt(played)
	}
	return stats.Totals{Played: played, TimeSpent: seconds, Wins: wins, Values: values}
}

// condValue returns the single value of the first condition on field.
func condValue(f dimension.Filter, field dimension.Field) (any, bool) {
	for _, c := range f {
		if c.Field == field && len(c.Values) == 1 {
			return c.Values[0], true
		}
	}
	return nil, false
}

type fakeStatStore struct {
	mu      sync.Mutex
	commits [][]*stats.Record
	err     error
}

var _ storage.StatStore = (*fakeStatStore)(nil)

func (s *fakeStatStore) CommitStats(_ context.Context, records []*stats.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.commits = append(s.commits, records)
	return nil
}

func (s *fakeStatStore) QueryStats(context.Context, storage.StatQuery) ([]*stats.Record, error) {
	return nil, nil
}

type fakeDisposer struct {
	mu           sync.Mutex
	acked        []uint64
	requeued     []uint64
	deadLettered []work.Message

	ackErr  error
	deadErr error
}

func (d *fakeDisposer) Ack(msg work.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ackErr != nil {
		return d.ackErr
	}
	d.acked = append(d.acked, msg.DeliveryTag)
	return nil
}

func (d *fakeDisposer) Requeue(msg work.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requeued = append(d.requeued, msg.DeliveryTag)
	return nil
}

func (d *fakeDisposer) DeadLetter(_ context.Context, msg work.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deadErr != nil {
		return d.deadErr
	}
	d.deadLettered = append(d.deadLettered, msg)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, topic string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.topics = append(n.topics, topic)
	return n.err
}

// staticBuckets serves fixed bucket lists.
type staticBuckets struct {
	ready   bool
	buckets map[work.Scope][]dimension.Bucket
}

func (s *staticBuckets) Ready() bool { return s.ready }

func (s *staticBuckets) Buckets(scope work.Scope) []dimension.Bucket { return s.buckets[scope] }

// heroModeBuckets builds hero {1,2} x game_mode {1,2} for every scope.
func heroModeBuckets(t *testing.T) *staticBuckets {
	t.Helper()
	dims := []dimension.Dimension{
		{Name: "hero", Values: []dimension.Value{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}},
		{Name: "game_mode", Values: []dimension.Value{{ID: 1, Name: "X"}, {ID: 2, Name: "Y"}}},
	}
	s := &staticBuckets{ready: true, buckets: map[work.Scope][]dimension.Bucket{}}
	for _, scope := range work.Scopes {
		b, err := dimension.BuildBuckets(dims, scope)
		require.NoError(t, err)
		s.buckets[scope] = b
	}
	return s
}

func message(tag uint64, scope work.Scope, id string) work.Message {
	return work.Message{
		DeliveryTag: tag,
		Body:        []byte(id),
		Type:        string(scope),
		Headers:     map[string]interface{}{"attempt": int32(1)},
		Item:        work.Item{ID: id, Scope: scope},
	}
}

func batchOf(msgs ...work.Message) *work.Batch {
	b := work.NewBatch()
	b.Trigger = work.TriggerManual
	for _, m := range msgs {
		b.Add(m)
	}
	return b
}

type harness struct {
	facts    *fakeFacts
	store    *fakeStatStore
	disposer *fakeDisposer
	notifier *fakeNotifier
	pipeline *Pipeline
}

func newHarness(t *testing.T, buckets BucketSource, opts Options) *harness {
	t.Helper()
	h := &harness{
		facts:    &fakeFacts{},
		store:    &fakeStatStore{},
		disposer: &fakeDisposer{},
		notifier: &fakeNotifier{},
	}
	agg := NewAggregator(h.facts)
	agg.now = func() time.Time { return fixedNow }
	h.pipeline = NewPipeline(buckets, agg, h.store, h.disposer, h.notifier, opts)
	h.pipeline.sleep = func(time.Duration) {}
	return h
}

var errBoom = errors.New("boom")
