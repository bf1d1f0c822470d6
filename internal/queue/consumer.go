package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// MaxDrain bounds how many messages one Drain call may return.
const MaxDrain = 100

// ErrUnknownQueue is returned for queues the drainer was not told about.
var ErrUnknownQueue = errors.New("unknown queue")

// Message is one drained delivery.  Body is the raw JSON payload.
type Message struct {
	Queue     string          `json:"queue"`
	Body      json.RawMessage `json:"body"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// Drainer pulls messages off a fixed set of RabbitMQ queues with
// basic.get, acknowledging each one.  The broker connection is opened on
// first use and reopened after it drops.
type Drainer struct {
	url    string
	queues map[string]struct{}
	log    zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

// NewDrainer returns a drainer for the listed queues.
func NewDrainer(url string, log zerolog.Logger, queues ...string) *Drainer {
	set := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		set[q] = struct{}{}
	}
	return &Drainer{url: url, queues: set, log: log}
}

// Drain reads up to max messages from queue and returns them in delivery
// order.  max is clamped to [1, MaxDrain].  An empty queue yields an empty
// slice.
func (d *Drainer) Drain(ctx context.Context, queue string, max int) ([]Message, error) {
	if _, ok := d.queues[queue]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, queue)
	}
	if max < 1 {
		max = 1
	}
	if max > MaxDrain {
		max = MaxDrain
	}

	ch, err := d.channel()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	out := make([]Message, 0, max)
	for len(out) < max {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		dv, ok, err := ch.Get(queue, false)
		if err != nil {
			return out, fmt.Errorf("queue get: %w", err)
		}
		if !ok {
			break
		}
		if !json.Valid(dv.Body) {
			d.log.Warn().Str("queue", queue).Int("bytes", len(dv.Body)).Msg("dropping non-JSON message")
			_ = dv.Nack(false, false) // reject, do not requeue
			continue
		}
		if err := dv.Ack(false); err != nil {
			return out, fmt.Errorf("ack: %w", err)
		}
		out = append(out, Message{Queue: queue, Body: json.RawMessage(dv.Body), Timestamp: dv.Timestamp})
	}
	return out, nil
}

// Close releases the broker connection.
func (d *Drainer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *Drainer) channel() (*amqp.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil || d.conn.IsClosed() {
		conn, err := amqp.Dial(d.url)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		d.conn = conn
	}
	ch, err := d.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	return ch, nil
}
