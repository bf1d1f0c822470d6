package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/config"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
	"github.com/iliyamo/seat-booking-simulator/internal/queue"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// RabbitMQPublisher publishes JSON messages to the default exchange with
// the queue name as routing key.  It holds one connection and channel,
// reopening both if the broker drops them.  Messages are persistent.
type RabbitMQPublisher struct {
	cfg     config.AMQPConfig
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	closed bool
}

// NewRabbitMQPublisher dials the broker and declares both queues.  A
// positive timeout bounds the TCP connect and AMQP handshake as well as
// every publish.
func NewRabbitMQPublisher(cfg config.AMQPConfig, timeout time.Duration, log zerolog.Logger) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{cfg: cfg, timeout: timeout, log: log}
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// dial connects within the deadline of ctx, if it has one.
func (p *RabbitMQPublisher) dial(ctx context.Context) (*amqp.Connection, error) {
	cfg := amqp.Config{Locale: "en_US"}
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, context.DeadlineExceeded
		}
		cfg.Dial = amqp.DefaultDial(left)
	}
	return amqp.DialConfig(p.cfg.URL, cfg)
}

func (p *RabbitMQPublisher) connectLocked(ctx context.Context) error {
	conn, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	// Idempotent; durable so messages survive broker restarts.
	for _, q := range []string{p.cfg.SeatUpdatesQueue, p.cfg.APIStatusQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("rabbitmq: declare %s: %w", q, err)
		}
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *RabbitMQPublisher) PublishSeatEvent(ctx context.Context, ev model.SeatEvent) error {
	return p.publish(ctx, p.cfg.SeatUpdatesQueue, queue.NewSeatUpdateMessage(ev))
}

func (p *RabbitMQPublisher) PublishBreakerEvent(ctx context.Context, ev model.BreakerEvent) error {
	return p.publish(ctx, p.cfg.APIStatusQueue, queue.NewApiStatusMessage(ev))
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := queue.Encode(msg)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal: %w", err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if p.ch == nil || p.ch.IsClosed() || p.conn.IsClosed() {
		// The caller may have waited on mu past its deadline.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rabbitmq: reconnect: %w", err)
		}
		p.log.Warn().Msg("rabbitmq: channel lost, reconnecting")
		p.dropLocked()
		if err := p.connectLocked(ctx); err != nil {
			return err
		}
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, "", routingKey, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish to %s: %w", routingKey, err)
	}
	return nil
}

func (p *RabbitMQPublisher) dropLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close closes the channel and connection.  Further publishes fail with
// ErrPublisherClosed.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.dropLocked()
	return nil
}
