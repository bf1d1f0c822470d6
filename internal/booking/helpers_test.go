package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// recordingNotifier keeps every event in arrival order.
type recordingNotifier struct {
	mu       sync.Mutex
	seats    []model.SeatEvent
	breakers []model.BreakerEvent
	closed   bool
	late     int // events received after markClosed

	failSeats bool
	panicOn   int // panic on the n-th seat event (1-based), 0 disables
}

func (n *recordingNotifier) PublishSeatEvent(_ context.Context, ev model.SeatEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.late++
	}
	n.seats = append(n.seats, ev)
	if n.panicOn > 0 && len(n.seats) == n.panicOn {
		panic("notifier exploded")
	}
	if n.failSeats {
		return errors.New("broker unavailable")
	}
	return nil
}

func (n *recordingNotifier) PublishBreakerEvent(_ context.Context, ev model.BreakerEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		n.late++
	}
	n.breakers = append(n.breakers, ev)
	return nil
}

func (n *recordingNotifier) markClosed() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

func (n *recordingNotifier) seatEvents() []model.SeatEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.SeatEvent(nil), n.seats...)
}

func (n *recordingNotifier) breakerEvents() []model.BreakerEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.BreakerEvent(nil), n.breakers...)
}

// seatHistory groups seat events by seat, preserving per-seat order.
func seatHistory(events []model.SeatEvent) map[[2]int][]model.SeatStatus {
	h := make(map[[2]int][]model.SeatStatus)
	for _, ev := range events {
		k := [2]int{ev.Row, ev.Number}
		h[k] = append(h[k], ev.Status)
	}
	return h
}

// fastConfig removes think time so tests run in milliseconds.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.MinDelay = 0
	cfg.MaxDelay = 0
	cfg.BreakerCooldown = 5 * time.Millisecond
	return cfg
}

// countingClock is a fake clock that also counts the timers created on it.
type countingClock struct {
	*clockwork.FakeClock
	timers atomic.Int64
}

func newCountingClock() *countingClock {
	return &countingClock{FakeClock: clockwork.NewFakeClockAt(time.Unix(0, 0))}
}

func (c *countingClock) NewTimer(d time.Duration) clockwork.Timer {
	c.timers.Add(1)
	return c.FakeClock.NewTimer(d)
}

func (c *countingClock) created() int { return int(c.timers.Load()) }

// requireWaiters blocks until at least n timers are pending on c.
func requireWaiters(t *testing.T, c *countingClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.BlockUntilContext(ctx, n), "waiting for %d pending timers", n)
}

// requireNoWaiters checks that no timer is pending on c.
func requireNoWaiters(t *testing.T, c *countingClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, c.BlockUntilContext(ctx, 1), context.DeadlineExceeded)
}
