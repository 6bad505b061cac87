package shipper

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/motortwin/motortwin/agent/internal/config"
	"github.com/motortwin/motortwin/pkg/types"
)

// amqpSender publishes readings to the server's ingest exchange.
type amqpSender struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

func dialAMQP(_ context.Context, cfg config.AgentConfig) (Sender, error) {
	url := cfg.AMQP.URL()
	if url == "" {
		return nil, fmt.Errorf("shipper: %s is empty", cfg.AMQP.URLEnv)
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.AMQP.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %q: %w", cfg.AMQP.Exchange, err)
	}
	return &amqpSender{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.AMQP.Exchange,
		routingKey: cfg.AMQP.RoutingKey,
	}, nil
}

func (s *amqpSender) Send(ctx context.Context, r types.Reading) error {
	body, err := json.Marshal(r)
	if err != nil {
		return &permanentError{err: fmt.Errorf("encode reading: %w", err)}
	}
	return s.channel.PublishWithContext(ctx,
		s.exchange,
		s.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    r.ID,
			Body:         body,
		},
	)
}

func (s *amqpSender) Close() error {
	s.channel.Close()
	return s.conn.Close()
}
