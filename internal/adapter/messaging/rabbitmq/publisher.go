// Package rabbitmq publishes committed ledger events to a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"sodminer-wallet/config"
	"sodminer-wallet/internal/core/domain"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// channel is the subset of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher implements ports.EventPublisher over a RabbitMQ topic exchange.
// Events are routed by their type, e.g. "wallet.deposited".
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  channel
	reopen   func() (channel, error)
	exchange string
	log      zerolog.Logger
}

// NewPublisher dials RabbitMQ and declares the exchange.
func NewPublisher(cfg config.RabbitMQConfig, log zerolog.Logger) (*Publisher, error) {
	cleanURL, err := sanitizeAMQPURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(cfg.DialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	reopen := func() (channel, error) { return conn.Channel() }
	ch, err := reopen()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	p := newPublisher(ch, reopen, cfg.Exchange, log)
	p.conn = conn
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}

	log.Info().Str("exchange", cfg.Exchange).Msg("RabbitMQ publisher ready")
	return p, nil
}

func newPublisher(ch channel, reopen func() (channel, error), exchange string, log zerolog.Logger) *Publisher {
	return &Publisher{
		channel:  ch,
		reopen:   reopen,
		exchange: exchange,
		log:      log.With().Str("component", "rabbitmq_publisher").Logger(),
	}
}

func (p *Publisher) declare() error {
	if err := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	return nil
}

// Publish sends event to the exchange. A failed publish reopens the channel
// and retries once.
func (p *Publisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn().Err(err).Str("routing_key", string(event.Type)).Msg("publish failed, reopening channel")
	if p.reopen == nil {
		return fmt.Errorf("publish ledger event: %w", err)
	}
	ch, chErr := p.reopen()
	if chErr != nil {
		return fmt.Errorf("reopen rabbitmq channel: %w", errors.Join(err, chErr))
	}
	_ = p.channel.Close()
	p.channel = ch
	if err := p.declare(); err != nil {
		return err
	}
	if err := p.channel.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("publish ledger event: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// NopPublisher drops events. It stands in when RabbitMQ is not configured or
// unreachable at startup.
type NopPublisher struct {
	log zerolog.Logger
}

// NewNopPublisher creates a NopPublisher.
func NewNopPublisher(log zerolog.Logger) *NopPublisher {
	return &NopPublisher{log: log.With().Str("component", "rabbitmq_publisher").Str("mode", "fallback").Logger()}
}

func (p *NopPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	p.log.Debug().Str("routing_key", string(event.Type)).Str("event_id", event.ID.String()).Msg("publish skipped")
	return nil
}

func (p *NopPublisher) Close() error { return nil }

// sanitizeAMQPURL trims quotes and stray prefixes that env files tend to
// leave around the URL, then checks the scheme.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse amqp url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// publishTimeout bounds a single publish when the caller's context has no deadline.
const publishTimeout = 5 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, publishTimeout)
}
