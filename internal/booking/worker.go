package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// run carries the shared state of one simulation.  Everything a worker
// touches besides its own locals lives here.
type run struct {
	cfg      Config
	movie    string
	inv      *Inventory
	alloc    *Allocator
	gate     *Gate
	breaker  *Breaker
	notifier Notifier
	clock    clockwork.Clock
	rng      Random
	hooks    *Hooks
	log      zerolog.Logger
}

// book is one customer's attempt: think, pass the gate, hold a seat,
// resolve it and let the breaker look at the new counts.
func (r *run) book(ctx context.Context, id int) (outcome Outcome, err error) {
	if err := r.pause(ctx); err != nil {
		return OutcomeCancelled, err
	}
	if err := r.gate.Wait(ctx); err != nil {
		return OutcomeCancelled, err
	}

	defer func() {
		if p := recover(); p != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("%w: worker %d: panic: %v", ErrWorkerFailed, id, p)
		}
	}()

	// Events of a seat already held must still go out after cancellation.
	pubCtx := context.WithoutCancel(ctx)

	idx, held, err := r.inv.Claim(r.alloc.Next())
	if errors.Is(err, ErrNoSeatAvailable) {
		r.log.Debug().Int("worker", id).Msg("no seat available")
		return OutcomeNoSeat, nil
	}
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: worker %d: hold: %w", ErrWorkerFailed, id, err)
	}
	r.hooks.seatTransition(held.Status)
	r.log.Debug().Int("worker", id).Str("seat", held.Label()).Msg("seat held")
	r.notify(pubCtx, held)

	final := decide(r.rng, r.cfg.ReserveProbability)
	resolved, err := r.inv.Resolve(idx, final)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: worker %d: resolve: %w", ErrWorkerFailed, id, err)
	}
	r.hooks.seatTransition(resolved.Status)
	r.log.Debug().Int("worker", id).Str("seat", resolved.Label()).Stringer("status", resolved.Status).Msg("seat resolved")
	r.notify(pubCtx, resolved)

	r.breaker.Evaluate(pubCtx)

	if resolved.Status == model.SeatReserved {
		return OutcomeReserved, nil
	}
	return OutcomeReleased, nil
}

// pause sleeps a random duration in [MinDelay, MaxDelay].
func (r *run) pause(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := r.cfg.MinDelay
	if span := r.cfg.MaxDelay - r.cfg.MinDelay; span > 0 {
		d += time.Duration(r.rng.Int64N(int64(span) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := r.clock.NewTimer(d)
	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		t.Stop()
		return ctx.Err()
	}
}

func (r *run) notify(ctx context.Context, seat model.Seat) {
	if err := r.notifier.PublishSeatEvent(ctx, model.NewSeatEvent(seat, r.movie)); err != nil {
		r.hooks.publishError(err)
		r.log.Warn().Err(err).Str("seat", seat.Label()).Stringer("status", seat.Status).Msg("publish seat event failed")
	}
}

// decide draws the resolution of a held seat: Reserved with probability
// p, Available otherwise.
func decide(rng Random, p float64) model.SeatStatus {
	if rng.Float64() < p {
		return model.SeatReserved
	}
	return model.SeatAvailable
}
