package booking

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// Breaker pauses new bookings once the share of reserved seats reaches a
// threshold, then resumes them after a fixed cooldown.
//
//	Closed --(reserved/total >= threshold)--> Open --(cooldown)--> Closed
//
// The tripped and armed flags are read and written only inside the
// inventory critical section, next to the counts they are derived from.
// A trip disarms the breaker; it re-arms when a later evaluation sees the
// ratio below the threshold, so a breaker trips at most once per
// contiguous stretch of high pressure.
type Breaker struct {
	inv       *Inventory
	gate      *Gate
	notifier  Notifier
	clock     clockwork.Clock
	hooks     *Hooks
	log       zerolog.Logger
	threshold float64
	cooldown  time.Duration

	// guarded by inv
	tripped bool
	armed   bool

	mu      sync.Mutex
	stopped bool
	release chan struct{} // closed to end the current cooldown early
	trips   int
	wg      sync.WaitGroup
}

func newBreaker(inv *Inventory, gate *Gate, notifier Notifier, clk clockwork.Clock, hooks *Hooks, log zerolog.Logger, threshold float64, cooldown time.Duration) *Breaker {
	return &Breaker{
		inv:       inv,
		gate:      gate,
		notifier:  notifier,
		clock:     clk,
		hooks:     hooks,
		log:       log,
		threshold: threshold,
		cooldown:  cooldown,
		armed:     true,
	}
}

// Evaluate checks the reservation ratio and trips the breaker when
// needed.  It reports whether this call tripped it.
func (b *Breaker) Evaluate(ctx context.Context) bool {
	var (
		trip   bool
		counts model.SeatCounts
	)
	b.inv.WithLock(func(v *View) {
		counts = v.Counts()
		if float64(counts.Reserved)/float64(v.Len()) < b.threshold {
			b.armed = true
			return
		}
		if b.tripped || !b.armed {
			return
		}
		b.tripped = true
		b.armed = false
		trip = true
	})
	if trip {
		b.open(ctx, counts)
	}
	return trip
}

func (b *Breaker) open(ctx context.Context, counts model.SeatCounts) {
	ctx = context.WithoutCancel(ctx)

	b.mu.Lock()
	b.trips++
	release := make(chan struct{})
	if b.stopped {
		close(release)
	} else {
		b.release = release
	}
	timer := b.clock.NewTimer(b.cooldown)
	b.wg.Add(1)
	b.mu.Unlock()

	b.log.Warn().
		Int("reserved", counts.Reserved).
		Int("total", b.inv.Len()).
		Dur("cooldown", b.cooldown).
		Msg("circuit breaker triggered: pausing bookings due to high reservation rate")
	b.hooks.breakerTrip()
	b.publish(ctx, model.BreakerDown)
	b.gate.Close()

	go func() {
		defer b.wg.Done()
		select {
		case <-timer.Chan():
		case <-release:
			timer.Stop()
		}
		b.close(ctx)
	}()
}

func (b *Breaker) close(ctx context.Context) {
	b.mu.Lock()
	b.release = nil
	b.mu.Unlock()

	b.publish(ctx, model.BreakerUp)
	b.gate.Open()
	b.inv.WithLock(func(*View) { b.tripped = false })
	b.hooks.breakerRelease()
	b.log.Info().Msg("circuit breaker released: processing resumes")
}

func (b *Breaker) publish(ctx context.Context, state model.BreakerState) {
	if err := b.notifier.PublishBreakerEvent(ctx, model.BreakerEvent{State: state}); err != nil {
		b.hooks.publishError(err)
		b.log.Warn().Err(err).Stringer("state", state).Msg("publish breaker event failed")
	}
}

// Stop ends a pending cooldown immediately, so its Up event is published
// before Stop returns, and makes any later trip release at once.
func (b *Breaker) Stop() {
	b.mu.Lock()
	b.stopped = true
	if b.release != nil {
		close(b.release)
		b.release = nil
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// State reports Down while the breaker is open.
func (b *Breaker) State() (s model.BreakerState) {
	s = model.BreakerUp
	b.inv.WithLock(func(*View) {
		if b.tripped {
			s = model.BreakerDown
		}
	})
	return s
}

// Trips returns how many times the breaker has opened.
func (b *Breaker) Trips() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}
