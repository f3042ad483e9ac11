package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aevon-lab/cruncher/internal/core/backoff"
	cerrors "github.com/aevon-lab/cruncher/internal/core/errors"
	"github.com/aevon-lab/cruncher/internal/core/work"
	"github.com/aevon-lab/cruncher/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// UpdateMarker is the body of every stats notification. Consumers derive the
// meaning from the routing key alone.
const UpdateMarker = "stats_update"

// ErrDeliveriesClosed is returned by Consume when the broker closed the delivery stream.
var ErrDeliveriesClosed = errors.New("delivery channel closed by broker")

// Channel is the subset of *amqp.Channel used by the broker.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	Reject(tag uint64, requeue bool) error
	Close() error
}

type Options struct {
	URI             string
	Queue           string
	NotifyExchange  string
	ConsumerTag     string
	Prefetch        int
	MaxMessageBytes int
	ReconnectDelay  time.Duration
	Heartbeat       time.Duration
}

// DeadLetterQueue is the queue failed messages are forwarded to.
func (o Options) DeadLetterQueue() string { return o.Queue + "_failed" }

// Broker is the RabbitMQ side of the worker: it consumes work messages,
// settles them and publishes dead letters and notifications.
type Broker struct {
	conn *amqp.Connection
	ch   Channel
	opts Options
}

// Connect dials the broker, retrying with a fixed delay until ctx is done,
// then declares the work and dead-letter queues.
func Connect(ctx context.Context, opts Options) (*Broker, error) {
	var conn *amqp.Connection
	err := backoff.Retry(ctx, "rabbitmq", opts.ReconnectDelay, func() error {
		c, err := amqp.DialConfig(opts.URI, amqp.Config{Heartbeat: opts.Heartbeat})
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, &cerrors.ConnectivityError{Target: "rabbitmq", Err: fmt.Errorf("open channel: %w", err)}
	}

	b := NewBroker(ch, opts)
	b.conn = conn
	if err := b.Setup(); err != nil {
		b.Close()
		return nil, err
	}

	slog.Info("[Broker] Connected",
		"queue", opts.Queue,
		"dead_letter", opts.DeadLetterQueue(),
		"prefetch", opts.Prefetch,
	)
	return b, nil
}

// NewBroker wraps an open channel. Setup must run before Consume.
func NewBroker(ch Channel, opts Options) *Broker {
	if opts.ConsumerTag == "" {
		opts.ConsumerTag = "cruncher"
	}
	return &Broker{ch: ch, opts: opts}
}

// Setup applies the prefetch limit and declares the durable queues. The
// prefetch bounds the unacknowledged messages held by the worker.
func (b *Broker) Setup() error {
	if err := b.ch.Qos(b.opts.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	for _, name := range []string{b.opts.Queue, b.opts.DeadLetterQueue()} {
		if _, err := b.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	// amq.* exchanges are predeclared by the broker and cannot be redeclared.
	if ex := b.opts.NotifyExchange; ex != "" && !strings.HasPrefix(ex, "amq.") {
		if err := b.ch.ExchangeDeclare(ex, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	return nil
}

// Consume delivers every well-formed message to handle until ctx is done.
// Malformed deliveries are rejected without requeue. A handle error requeues
// the delivery.
func (b *Broker) Consume(ctx context.Context, handle func(work.Message) error) error {
	deliveries, err := b.ch.Consume(b.opts.Queue, b.opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.opts.Queue, err)
	}
	slog.Info("[Broker] Consuming", "queue", b.opts.Queue, "consumer", b.opts.ConsumerTag)

	for {
		select {
		case <-ctx.Done():
			if err := b.ch.Cancel(b.opts.ConsumerTag, false); err != nil {
				slog.Warn("[Broker] Cancel consumer failed", "error", err)
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			b.deliver(d, handle)
		}
	}
}

func (b *Broker) deliver(d amqp.Delivery, handle func(work.Message) error) {
	msg, err := work.ParseMessage(d.DeliveryTag, d.Body, d.Type, d.Headers, b.opts.MaxMessageBytes)
	if err != nil {
		metrics.MessagesMalformed.Inc()
		slog.Warn("[Broker] Rejecting malformed message",
			"delivery_tag", d.DeliveryTag,
			"type", d.Type,
			"size", len(d.Body),
			"error", err,
		)
		if err := b.ch.Reject(d.DeliveryTag, false); err != nil {
			slog.Error("[Broker] Reject failed", "delivery_tag", d.DeliveryTag, "error", err)
		}
		return
	}

	metrics.MessagesReceived.WithLabelValues(string(msg.Item.Scope)).Inc()
	if err := handle(msg); err != nil {
		slog.Warn("[Broker] Message not accepted, requeueing", "delivery_tag", d.DeliveryTag, "error", err)
		if err := b.Requeue(msg); err != nil {
			slog.Error("[Broker] Requeue failed", "delivery_tag", d.DeliveryTag, "error", err)
		}
	}
}

func (b *Broker) Ack(msg work.Message) error {
	return b.ch.Ack(msg.DeliveryTag, false)
}

func (b *Broker) Requeue(msg work.Message) error {
	return b.ch.Nack(msg.DeliveryTag, false, true)
}

// DeadLetter republishes the original body, headers and type to the
// dead-letter queue as a persistent message, then acks the original.
func (b *Broker) DeadLetter(ctx context.Context, msg work.Message) error {
	err := b.ch.PublishWithContext(ctx, "", b.opts.DeadLetterQueue(), false, false, amqp.Publishing{
		Headers:      amqp.Table(msg.Headers),
		Type:         msg.Type,
		Body:         msg.Body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.opts.DeadLetterQueue(), err)
	}
	return b.Ack(msg)
}

// Notify publishes the update marker with topic as routing key.
func (b *Broker) Notify(ctx context.Context, topic string) error {
	return b.ch.PublishWithContext(ctx, b.opts.NotifyExchange, topic, false, false, amqp.Publishing{
		ContentType: "text/plain",
		Body:        []byte(UpdateMarker),
	})
}

// Enqueue publishes a work message to the work queue.
func (b *Broker) Enqueue(ctx context.Context, scope work.Scope, body []byte, notify string) error {
	var headers amqp.Table
	if notify != "" {
		headers = amqp.Table{work.NotifyHeader: notify}
	}
	err := b.ch.PublishWithContext(ctx, "", b.opts.Queue, false, false, amqp.Publishing{
		Headers:      headers,
		Type:         string(scope),
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", b.opts.Queue, err)
	}
	return nil
}

// Close closes the channel and the connection. Unacknowledged deliveries
// are redelivered by the broker.
func (b *Broker) Close() error {
	var errs []error
	if b.ch != nil {
		errs = append(errs, b.ch.Close())
	}
	if b.conn != nil {
		errs = append(errs, b.conn.Close())
	}
	slog.Info("[Broker] Closed")
	return errors.Join(errs...)
}
