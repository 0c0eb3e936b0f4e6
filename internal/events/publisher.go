// Package events carries library change notifications over RabbitMQ.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/tiza/library-service/internal/config"
	"github.com/tiza/library-service/internal/models"
	"github.com/tiza/library-service/internal/worker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const publishTimeout = 5 * time.Second

type Publisher interface {
	PublishDataChanged(ctx context.Context, event *models.DataChangedEvent) error
	PublishLendingOverdue(ctx context.Context, event *models.LendingOverdueEvent) error
	Close() error
}

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type rabbitMQPublisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	channel  channel
	exchange string
	routes   config.RabbitMQConfig
	logger   zerolog.Logger
}

func NewRabbitMQPublisher(cfg config.RabbitMQConfig, logger zerolog.Logger) (Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareExchange(ch, cfg.Exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info().
		Str("exchange", cfg.Exchange).
		Msg("Connected to RabbitMQ")

	p := newPublisher(ch, cfg, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, cfg config.RabbitMQConfig, logger zerolog.Logger) *rabbitMQPublisher {
	return &rabbitMQPublisher{
		channel:  ch,
		exchange: cfg.Exchange,
		routes:   cfg,
		logger:   logger,
	}
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

func (p *rabbitMQPublisher) PublishDataChanged(ctx context.Context, event *models.DataChangedEvent) error {
	if err := p.publish(ctx, p.routes.ChangedRoutingKey, event); err != nil {
		return err
	}

	p.logger.Debug().
		Str("command", event.Command).
		Strs("invalidates", event.Invalidates).
		Msg("Data changed event published")
	return nil
}

func (p *rabbitMQPublisher) PublishLendingOverdue(ctx context.Context, event *models.LendingOverdueEvent) error {
	if err := p.publish(ctx, p.routes.OverdueRoutingKey, event); err != nil {
		return err
	}

	p.logger.Info().
		Str("lending_id", event.LendingID).
		Int64("days_overdue", event.DaysOverdue).
		Msg("Lending overdue event published")
	return nil
}

func (p *rabbitMQPublisher) publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (p *rabbitMQPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ channel")
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Error().Err(err).Msg("Failed to close RabbitMQ connection")
		}
	}

	return nil
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that drops every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishDataChanged(context.Context, *models.DataChangedEvent) error {
	return nil
}

func (nopPublisher) PublishLendingOverdue(context.Context, *models.LendingOverdueEvent) error {
	return nil
}

func (nopPublisher) Close() error { return nil }

// asyncPublisher hands every publication to a worker pool so callers never
// wait on the broker. Failures are logged and otherwise ignored.
type asyncPublisher struct {
	next   Publisher
	pool   *worker.WorkerPool
	logger zerolog.Logger
}

func NewAsyncPublisher(next Publisher, pool *worker.WorkerPool, logger zerolog.Logger) Publisher {
	return &asyncPublisher{
		next:   next,
		pool:   pool,
		logger: logger,
	}
}

func (p *asyncPublisher) PublishDataChanged(_ context.Context, event *models.DataChangedEvent) error {
	submitted := p.pool.Submit(func(ctx context.Context) {
		if err := p.next.PublishDataChanged(ctx, event); err != nil {
			p.logger.Error().Err(err).Str("command", event.Command).Msg("Failed to publish data changed event")
		}
	})
	if !submitted {
		p.logger.Warn().Str("command", event.Command).Msg("Data changed event dropped")
	}
	return nil
}

func (p *asyncPublisher) PublishLendingOverdue(_ context.Context, event *models.LendingOverdueEvent) error {
	submitted := p.pool.Submit(func(ctx context.Context) {
		if err := p.next.PublishLendingOverdue(ctx, event); err != nil {
			p.logger.Error().Err(err).Str("lending_id", event.LendingID).Msg("Failed to publish lending overdue event")
		}
	})
	if !submitted {
		p.logger.Warn().Str("lending_id", event.LendingID).Msg("Lending overdue event dropped")
	}
	return nil
}

func (p *asyncPublisher) Close() error {
	return p.next.Close()
}
