package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/config"
	"github.com/motortwin/motortwin/server/internal/store"
)

// Ingester is the part of Pipeline the consumer needs.
type Ingester interface {
	Ingest(ctx context.Context, r types.Reading) (types.Reading, error)
}

// Consumer reads JSON readings from an AMQP queue and ingests them one at a
// time.
type Consumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	ingester Ingester
}

// Dial connects to the broker at cfg.URL(), declares the topic exchange and a
// durable queue bound to cfg.RoutingKey, and sets prefetch to 1.
func Dial(cfg config.QueueConfig, ing Ingester) (*Consumer, error) {
	url := cfg.URL()
	if url == "" {
		return nil, fmt.Errorf("ingest: amqp url is empty (env %s)", cfg.URLEnv)
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("ingest: amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ingest: amqp channel: %w", err)
	}

	c := &Consumer{conn: conn, channel: ch, queue: cfg.Queue, ingester: ing}
	if err := c.declare(cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) declare(cfg config.QueueConfig) error {
	if err := c.channel.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("ingest: declare exchange %q: %w", cfg.Exchange, err)
	}
	if _, err := c.channel.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("ingest: declare queue %q: %w", cfg.Queue, err)
	}
	if err := c.channel.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("ingest: bind queue %q: %w", cfg.Queue, err)
	}
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("ingest: qos: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("ingest: consume %q: %w", c.queue, err)
	}
	slog.Info("ingest: consuming", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("ingest: amqp delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks stored readings, drops malformed ones and requeues the rest.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	r, err := DecodeReading(d.Body)
	if err == nil {
		r, err = c.ingester.Ingest(ctx, r)
	}
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			slog.Warn("ingest: ack failed", "id", r.ID, "err", ackErr)
		}
	case errors.Is(err, ErrInvalidReading), errors.Is(err, store.ErrConflict):
		slog.Warn("ingest: dropping message", "err", err)
		d.Nack(false, false) //nolint:errcheck
	default:
		slog.Error("ingest: requeueing message", "err", err)
		d.Nack(false, true) //nolint:errcheck
	}
}

// Close releases the channel and connection.
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
