package batch

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/aevon-lab/cruncher/internal/metrics"
)

// ErrClosed is returned by Add once the controller has been closed.
var ErrClosed = errors.New("batch controller closed")

// Handler receives every flushed batch. Calls are serialized per controller.
type Handler func(b *work.Batch)

// Controller accumulates work messages into a batch and flushes it when the
// size threshold is reached or the load timeout expires, whichever is first.
//
// Snapshot-and-clear happens under mu, so a timer firing concurrently with a
// threshold flush can never hand out overlapping message sets. Flushed
// batches are processed by a single worker goroutine: at most one flush is
// in flight while the next batch keeps accumulating.
type Controller struct {
	name      string
	threshold int
	timeout   time.Duration
	handler   Handler

	mu      sync.Mutex
	current *work.Batch
	timer   *time.Timer
	gen     uint64 // bumped on every detach, invalidates a timer that already fired
	closed  bool

	queue   chan *work.Batch
	sending sync.WaitGroup
	done    chan struct{}
}

// New starts a controller. threshold < 1 is treated as 1.
func New(name string, threshold int, timeout time.Duration, handler Handler) *Controller {
	if threshold < 1 {
		threshold = 1
	}
	c := &Controller{
		name:      name,
		threshold: threshold,
		timeout:   timeout,
		handler:   handler,
		queue:     make(chan *work.Batch),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

// Add buffers msg. The batch is flushed from the caller's goroutine when it
// reaches the threshold, which blocks while a previous flush is still running.
func (c *Controller) Add(msg work.Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.current == nil {
		c.current = work.NewBatch()
	}
	c.current.Add(msg)

	if c.current.Len() >= c.threshold {
		b := c.detachLocked(work.TriggerThreshold)
		c.mu.Unlock()
		c.dispatch(b)
		return nil
	}

	if c.timer == nil {
		gen := c.gen
		c.timer = time.AfterFunc(c.timeout, func() { c.expire(gen) })
	}
	c.mu.Unlock()
	return nil
}

// Flush hands the current batch to the handler. It reports false when
// there was nothing to flush.
func (c *Controller) Flush(trigger work.Trigger) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	b := c.detachLocked(trigger)
	c.mu.Unlock()

	c.dispatch(b)
	return b != nil
}

// Pending returns the number of buffered messages not yet flushed.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.Len()
}

// Close flushes the remaining messages and waits until every flushed batch
// has been handled. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	b := c.detachLocked(work.TriggerShutdown)
	c.closed = true
	c.mu.Unlock()

	c.dispatch(b)
	c.sending.Wait()
	close(c.queue)
	<-c.done
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	b := c.detachLocked(work.TriggerTimer)
	c.mu.Unlock()

	c.dispatch(b)
}

// detachLocked snapshots and clears the current batch. Caller holds mu.
func (c *Controller) detachLocked(trigger work.Trigger) *work.Batch {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++

	b := c.current
	c.current = nil
	if b == nil || b.Empty() {
		return nil
	}
	b.Trigger = trigger
	c.sending.Add(1)
	return b
}

func (c *Controller) dispatch(b *work.Batch) {
	if b == nil {
		return
	}
	defer c.sending.Done()

	slog.Debug("[Batch] Flushing",
		"controller", c.name,
		"batch_id", b.ID,
		"trigger", b.Trigger,
		"messages", b.Len(),
	)
	metrics.BatchesFlushed.WithLabelValues(string(b.Trigger)).Inc()
	metrics.BatchMessages.Observe(float64(b.Len()))

	c.queue <- b
}

func (c *Controller) run() {
	defer close(c.done)
	for b := range c.queue {
		c.handler(b)
	}
}
