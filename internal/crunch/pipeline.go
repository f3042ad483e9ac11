package crunch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/dimension"
	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/aevon-lab/cruncher/internal/core/stats"
	"github.com/aevon-lab/cruncher/internal/core/storage"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/aevon-lab/cruncher/internal/logctx"
	"github.com/aevon-lab/cruncher/internal/metrics"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// GlobalTopic is the routing key published after any global recompute.
const GlobalTopic = "global"

var errCubeNotReady = errors.New("dimension buckets not built yet")

// Disposition is the fate of every message of one batch.
type Disposition string

const (
	DispositionCommit     Disposition = "commit"
	DispositionDeadLetter Disposition = "dead_letter"
	DispositionRequeue    Disposition = "requeue"
)

// BucketSource provides the precomputed buckets of a scope.
type BucketSource interface {
	Ready() bool
	Buckets(scope work.Scope) []dimension.Bucket
}

// Disposer settles deliveries on the broker.
type Disposer interface {
	Ack(msg work.Message) error
	Requeue(msg work.Message) error
	// DeadLetter republishes the message to the failed queue and acks the original.
	DeadLetter(ctx context.Context, msg work.Message) error
}

// Notifier publishes "stats updated" markers.
type Notifier interface {
	Notify(ctx context.Context, topic string) error
}

type Options struct {
	// Concurrency bounds the aggregation queries in flight for one batch.
	Concurrency int
	// SlowMode delays the acknowledgement of a committed batch.
	SlowMode time.Duration
}

// Result summarizes one processed batch.
type Result struct {
	BatchID      string
	Disposition  Disposition
	Tasks        int
	Records      int
	Acked        int
	DeadLettered int
	Requeued     int
	Err          error
}

// Pipeline crunches flushed batches: aggregate every affected bucket, commit
// the records in one transaction, then settle every message the same way.
type Pipeline struct {
	buckets  BucketSource
	agg      *Aggregator
	store    storage.StatStore
	disposer Disposer
	notifier Notifier
	opts     Options
	sleep    func(time.Duration)
}

func NewPipeline(buckets BucketSource, agg *Aggregator, store storage.StatStore, disposer Disposer, notifier Notifier, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Pipeline{
		buckets:  buckets,
		agg:      agg,
		store:    store,
		disposer: disposer,
		notifier: notifier,
		opts:     opts,
		sleep:    time.Sleep,
	}
}

// Process runs one batch to completion. Cancellation of ctx does not abort
// an in-flight batch; database timeouts surface as query errors instead.
// Safe for concurrent use by several controllers.
func (p *Pipeline) Process(ctx context.Context, b *work.Batch) Result {
	ctx = logctx.WithBatch(context.WithoutCancel(ctx), b.ID, string(b.Trigger))
	logger := logctx.FromContext(ctx)
	start := time.Now()

	logger.Info("[Pipeline] Crunching batch",
		"messages", b.Len(),
		"players", b.Players.Cardinality(),
		"teams", b.Teams.Cardinality(),
		"global", b.FullGlobal(),
		"descriptors", len(b.Descriptors),
	)

	res := Result{BatchID: b.ID}
	if kept := p.screen(ctx, b, &res); kept.Empty() && !b.Empty() {
		res.Disposition = DispositionDeadLetter
	} else {
		p.run(ctx, kept, &res)
	}

	metrics.CrunchDuration.WithLabelValues(string(res.Disposition)).Observe(time.Since(start).Seconds())
	logger.Info("[Pipeline] Batch settled",
		"disposition", res.Disposition,
		"tasks", res.Tasks,
		"records", res.Records,
		"acked", res.Acked,
		"dead_lettered", res.DeadLettered,
		"requeued", res.Requeued,
		"duration", time.Since(start),
	)
	return res
}

// run crunches, commits and settles the messages that survived screening.
func (p *Pipeline) run(ctx context.Context, b *work.Batch, res *Result) {
	records, tasks, err := p.crunch(ctx, b)
	res.Tasks = tasks
	if err == nil {
		err = p.store.CommitStats(ctx, records)
	}

	if err != nil {
		res.Err = err
		p.fail(ctx, b, res)
		return
	}

	res.Records = len(records)
	countCommitted(records)
	if p.opts.SlowMode > 0 {
		logctx.FromContext(ctx).Info("[Pipeline] Slowmode active, sleeping", "wait", p.opts.SlowMode)
		p.sleep(p.opts.SlowMode)
	}
	p.commit(ctx, b, res)
	p.notify(ctx, b)
}

// screen dead-letters descriptor messages that select no global bucket. They
// name a dimension or value id the cube does not know, and no retry can fix
// that. The rest of the batch is returned for crunching.
func (p *Pipeline) screen(ctx context.Context, b *work.Batch, res *Result) *work.Batch {
	if len(b.Descriptors) == 0 || !p.buckets.Ready() {
		return b
	}

	all := p.buckets.Buckets(work.ScopeGlobal)
	kept, unmatched := b.Split(func(m work.Message) bool {
		d := m.Item.Descriptor
		if d == nil {
			return true
		}
		for _, bk := range all {
			if bk.Matches(d) {
				return true
			}
		}
		return false
	})
	if len(unmatched) == 0 {
		return b
	}

	logger := logctx.FromContext(ctx)
	for _, m := range unmatched {
		logger.Warn("[Pipeline] Descriptor matched no bucket, dead-lettering",
			"delivery_tag", m.DeliveryTag,
			"descriptor", m.Item.Descriptor.Key(),
		)
	}
	p.deadLetter(ctx, unmatched, res)
	return kept
}

// task is one bucket aggregation of one target.
type task struct {
	target  Target
	bucket  dimension.Bucket
	request int // index into the population slice
}

// plan expands the batch into targets and their bucket lists.
func (p *Pipeline) plan(b *work.Batch) ([]Target, []task) {
	var (
		targets []Target
		tasks   []task
	)
	add := func(t Target, buckets []dimension.Bucket) {
		if len(buckets) == 0 {
			return
		}
		req := len(targets)
		targets = append(targets, t)
		for _, bk := range buckets {
			tasks = append(tasks, task{target: t, bucket: bk, request: req})
		}
	}

	if b.HasGlobal() {
		add(Target{Scope: work.ScopeGlobal}, p.globalBuckets(b))
	}
	teamBuckets := p.buckets.Buckets(work.ScopeTeam)
	for _, id := range b.TeamIDs() {
		add(Target{Scope: work.ScopeTeam, EntityID: id}, teamBuckets)
	}
	playerBuckets := p.buckets.Buckets(work.ScopePlayer)
	for _, id := range b.PlayerIDs() {
		add(Target{Scope: work.ScopePlayer, EntityID: id}, playerBuckets)
	}
	return targets, tasks
}

// globalBuckets returns every global bucket for a plain global trigger,
// otherwise the union of the buckets matching any descriptor, each once.
func (p *Pipeline) globalBuckets(b *work.Batch) []dimension.Bucket {
	all := p.buckets.Buckets(work.ScopeGlobal)
	if b.FullGlobal() {
		return all
	}

	selected := make([]bool, len(all))
	for _, d := range b.DescriptorList() {
		for i, bk := range all {
			if bk.Matches(d) {
				selected[i] = true
			}
		}
	}

	var out []dimension.Bucket
	for i, ok := range selected {
		if ok {
			out = append(out, all[i])
		}
	}
	return out
}

// crunch aggregates every task with bounded concurrency. Records are returned
// in task order; buckets without data are dropped.
func (p *Pipeline) crunch(ctx context.Context, b *work.Batch) ([]*stats.Record, int, error) {
	if !p.buckets.Ready() {
		return nil, 0, &cerrors.AggregationError{Op: "buckets", Transient: true, Err: errCubeNotReady}
	}

	targets, tasks := p.plan(b)
	if len(tasks) == 0 {
		return nil, 0, nil
	}

	population := make([]int64, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, t := range targets {
		g.Go(func() error {
			n, err := p.agg.Population(gctx, t)
			population[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(tasks), err
	}

	results := make([]*stats.Record, len(tasks))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, tk := range tasks {
		g.Go(func() error {
			rec, err := p.agg.Aggregate(gctx, tk.bucket, tk.target, population[tk.request])
			results[i] = rec
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(tasks), err
	}

	records := make([]*stats.Record, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, r)
		}
	}
	logctx.FromContext(ctx).Debug("[Pipeline] Aggregated",
		"targets", len(targets),
		"tasks", len(tasks),
		"records", len(records),
	)
	return records, len(tasks), nil
}

func (p *Pipeline) commit(ctx context.Context, b *work.Batch, res *Result) {
	res.Disposition = DispositionCommit
	logger := logctx.FromContext(ctx)
	var acked, requeued int
	for _, msg := range b.Messages {
		if err := p.disposer.Ack(msg); err != nil {
			// Unacked deliveries come back once the channel closes.
			logger.Error("[Pipeline] Ack failed", "delivery_tag", msg.DeliveryTag, "error", err)
			requeued++
			continue
		}
		acked++
	}
	res.Acked += acked
	res.Requeued += requeued
	metrics.MessagesDisposed.WithLabelValues(string(DispositionCommit)).Add(float64(acked))
	metrics.MessagesDisposed.WithLabelValues(string(DispositionRequeue)).Add(float64(requeued))
}

// fail settles the batch after a crunch or commit error. Transient errors
// requeue every message; anything else dead-letters them. A message whose
// dead-letter publish fails is requeued instead.
func (p *Pipeline) fail(ctx context.Context, b *work.Batch, res *Result) {
	logger := logctx.FromContext(ctx)

	if cerrors.IsTransient(res.Err) {
		res.Disposition = DispositionRequeue
		logger.Warn("[Pipeline] Transient failure, requeueing batch", "error", res.Err)
		for _, msg := range b.Messages {
			if err := p.disposer.Requeue(msg); err != nil {
				logger.Error("[Pipeline] Requeue failed", "delivery_tag", msg.DeliveryTag, "error", err)
			}
		}
		res.Requeued += len(b.Messages)
		metrics.MessagesDisposed.WithLabelValues(string(DispositionRequeue)).Add(float64(len(b.Messages)))
		return
	}

	res.Disposition = DispositionDeadLetter
	logger.Error("[Pipeline] Batch failed, dead-lettering", "error", res.Err)
	p.deadLetter(ctx, b.Messages, res)
}

// deadLetter forwards msgs to the failed queue. A message whose dead-letter
// publish fails is requeued instead.
func (p *Pipeline) deadLetter(ctx context.Context, msgs []work.Message, res *Result) {
	logger := logctx.FromContext(ctx)
	var dead, requeued int
	for _, msg := range msgs {
		if err := p.disposer.DeadLetter(ctx, msg); err != nil {
			logger.Error("[Pipeline] Dead-letter failed, requeueing", "delivery_tag", msg.DeliveryTag, "error", err)
			if err := p.disposer.Requeue(msg); err != nil {
				logger.Error("[Pipeline] Requeue failed", "delivery_tag", msg.DeliveryTag, "error", err)
			}
			requeued++
			continue
		}
		dead++
	}
	res.DeadLettered += dead
	res.Requeued += requeued
	metrics.MessagesDisposed.WithLabelValues(string(DispositionDeadLetter)).Add(float64(dead))
	metrics.MessagesDisposed.WithLabelValues(string(DispositionRequeue)).Add(float64(requeued))
}

// Topics returns the routing keys announced after b commits.
func Topics(b *work.Batch) []string {
	topics := mapset.NewThreadUnsafeSet[string]()
	if b.HasGlobal() {
		topics.Add(GlobalTopic)
	}
	for _, id := range b.TeamIDs() {
		topics.Add("team." + id)
	}
	for _, id := range b.PlayerIDs() {
		topics.Add("player." + id)
	}
	for _, t := range b.NotifyTopics() {
		topics.Add(t)
	}
	return sortedTopics(topics)
}

func (p *Pipeline) notify(ctx context.Context, b *work.Batch) {
	if p.notifier == nil {
		return
	}
	logger := logctx.FromContext(ctx)
	for _, topic := range Topics(b) {
		if err := p.notifier.Notify(ctx, topic); err != nil {
			metrics.NotificationsFailed.Inc()
			logger.Warn("[Pipeline] Notification failed", "topic", topic, "error", err)
		}
	}
}

func countCommitted(records []*stats.Record) {
	perScope := map[work.Scope]int{}
	for _, r := range records {
		perScope[r.Scope]++
	}
	for scope, n := range perScope {
		metrics.RecordsCommitted.WithLabelValues(string(scope)).Add(float64(n))
	}
}

func sortedTopics(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
