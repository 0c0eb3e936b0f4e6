package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/config"
	"github.com/tiza/library-service/internal/models"
)

var ErrUnknownRoutingKey = errors.New("unknown routing key")

type Handler interface {
	HandleDataChanged(ctx context.Context, event models.DataChangedEvent) error
	HandleLendingOverdue(ctx context.Context, event models.LendingOverdueEvent) error
}

type Consumer interface {
	// Consume blocks, delivering messages to handler until ctx is done or the
	// broker closes the channel.
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

type rabbitMQConsumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queue       string
	consumerTag string
	routes      config.RabbitMQConfig
	logger      zerolog.Logger
}

// NewRabbitMQConsumer binds a queue to both event routing keys. An empty
// queue name gives every consumer its own exclusive, auto-deleted queue.
func NewRabbitMQConsumer(cfg config.RabbitMQConfig, logger zerolog.Logger) (Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := declareExchange(ch, cfg.Exchange); err != nil {
		return fail(err)
	}

	private := cfg.QueueName == ""
	queue, err := ch.QueueDeclare(
		cfg.QueueName, // name
		!private,      // durable
		private,       // delete when unused
		private,       // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}

	for _, key := range []string{cfg.ChangedRoutingKey, cfg.OverdueRoutingKey} {
		if err := ch.QueueBind(queue.Name, key, cfg.Exchange, false, nil); err != nil {
			return fail(fmt.Errorf("failed to bind queue: %w", err))
		}
	}

	logger.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", queue.Name).
		Msg("RabbitMQ consumer connected")

	return &rabbitMQConsumer{
		conn:        conn,
		channel:     ch,
		queue:       queue.Name,
		consumerTag: "library-" + uuid.NewString(),
		routes:      cfg,
		logger:      logger,
	}, nil
}

func (c *rabbitMQConsumer) Consume(ctx context.Context, handler Handler) error {
	if err := c.channel.Qos(10, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.queue,       // queue
		c.consumerTag, // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queue).
		Str("consumer_tag", c.consumerTag).
		Msg("RabbitMQ consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Stopping RabbitMQ consumer")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq message channel closed")
			}

			if err := dispatch(ctx, c.routes, msg.RoutingKey, msg.Body, handler); err != nil {
				c.logger.Error().Err(err).
					Str("routing_key", msg.RoutingKey).
					Msg("Failed to handle message")
				msg.Nack(false, false)
				continue
			}
			msg.Ack(false)
		}
	}
}

func dispatch(ctx context.Context, routes config.RabbitMQConfig, routingKey string, body []byte, handler Handler) error {
	switch routingKey {
	case routes.ChangedRoutingKey:
		var event models.DataChangedEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to unmarshal data changed event: %w", err)
		}
		return handler.HandleDataChanged(ctx, event)

	case routes.OverdueRoutingKey:
		var event models.LendingOverdueEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to unmarshal lending overdue event: %w", err)
		}
		return handler.HandleLendingOverdue(ctx, event)

	default:
		return fmt.Errorf("%w: %s", ErrUnknownRoutingKey, routingKey)
	}
}

func (c *rabbitMQConsumer) Close() error {
	if err := c.channel.Cancel(c.consumerTag, false); err != nil {
		c.logger.Error().Err(err).Msg("Failed to cancel RabbitMQ consumer")
	}
	if err := c.channel.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
	}

	c.logger.Info().Msg("RabbitMQ consumer closed")
	return nil
}
