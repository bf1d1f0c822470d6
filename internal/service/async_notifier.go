package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
	"github.com/iliyamo/seat-booking-simulator/internal/metrics"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

var (
	// ErrBufferFull is returned when an event is dropped because the
	// dispatch buffer has no room.
	ErrBufferFull = errors.New("notifier buffer full")
	// ErrNotifierClosed is returned for events offered after Close.
	ErrNotifierClosed = errors.New("notifier closed")
)

const (
	kindSeat    = "seat"
	kindBreaker = "breaker"
)

type envelope struct {
	kind    string
	seat    model.SeatEvent
	breaker model.BreakerEvent
}

// AsyncNotifier decouples workers from the transport.  Events go into a
// bounded buffer drained by a single goroutine, so they reach the
// publisher in the order they were accepted.  Offering an event never
// blocks: when the buffer is full the event is dropped and counted.
type AsyncNotifier struct {
	pub     booking.Notifier
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	events chan envelope
	done   chan struct{}
	once   sync.Once
}

var _ booking.Notifier = (*AsyncNotifier)(nil)

// NewAsyncNotifier starts the dispatch goroutine.  Each publish call gets
// its own timeout, detached from the caller's context.
func NewAsyncNotifier(pub booking.Notifier, buffer int, timeout time.Duration, log zerolog.Logger) *AsyncNotifier {
	if buffer < 1 {
		buffer = 1
	}
	n := &AsyncNotifier{
		pub:     pub,
		timeout: timeout,
		log:     log,
		events:  make(chan envelope, buffer),
		done:    make(chan struct{}),
	}
	go n.dispatch()
	return n
}

func (n *AsyncNotifier) PublishSeatEvent(_ context.Context, ev model.SeatEvent) error {
	return n.offer(envelope{kind: kindSeat, seat: ev})
}

func (n *AsyncNotifier) PublishBreakerEvent(_ context.Context, ev model.BreakerEvent) error {
	return n.offer(envelope{kind: kindBreaker, breaker: ev})
}

func (n *AsyncNotifier) offer(e envelope) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNotifierClosed
	}
	select {
	case n.events <- e:
		return nil
	default:
		metrics.NotifierDropped.WithLabelValues(e.kind).Inc()
		return ErrBufferFull
	}
}

func (n *AsyncNotifier) dispatch() {
	defer close(n.done)
	for e := range n.events {
		ctx, cancel := context.Background(), context.CancelFunc(func() {})
		if n.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, n.timeout)
		}
		var err error
		switch e.kind {
		case kindSeat:
			err = n.pub.PublishSeatEvent(ctx, e.seat)
		case kindBreaker:
			err = n.pub.PublishBreakerEvent(ctx, e.breaker)
		}
		cancel()
		if err != nil {
			metrics.PublishErrors.Inc()
			n.log.Warn().Err(err).Str("kind", e.kind).Msg("event delivery failed")
		}
	}
}

// Close stops accepting events, delivers everything already buffered and
// returns once the dispatch goroutine has exited.  It is safe to call more
// than once.
func (n *AsyncNotifier) Close() error {
	n.once.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.events)
		n.mu.Unlock()
	})
	<-n.done
	return nil
}
