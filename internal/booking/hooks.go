package booking

import "github.com/iliyamo/seat-booking-simulator/internal/model"

// Outcome is how a single booking attempt ended.
type Outcome uint8

const (
	OutcomeReserved  Outcome = iota // seat held, then reserved
	OutcomeReleased                 // seat held, then released back
	OutcomeNoSeat                   // nothing left to hold
	OutcomeFailed                   // aborted on an unexpected error
	OutcomeCancelled                // run cancelled before a seat was picked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReserved:
		return "reserved"
	case OutcomeReleased:
		return "released"
	case OutcomeNoSeat:
		return "no_seat"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Hooks holds optional callbacks fired by the engine, typically wired to
// metrics.  Nil fields are skipped.  A Hooks value must not be mutated
// once handed to a Scheduler.
type Hooks struct {
	OnSeatTransition    func(status model.SeatStatus)
	OnBreakerTrip       func()
	OnBreakerRelease    func()
	OnWorkerDone        func(outcome Outcome)
	OnPublishError      func(err error)
	OnAllocatorFallback func() // shuffled order exhausted, scanning instead
}

func (h *Hooks) seatTransition(status model.SeatStatus) {
	if h != nil && h.OnSeatTransition != nil {
		h.OnSeatTransition(status)
	}
}

func (h *Hooks) breakerTrip() {
	if h != nil && h.OnBreakerTrip != nil {
		h.OnBreakerTrip()
	}
}

func (h *Hooks) breakerRelease() {
	if h != nil && h.OnBreakerRelease != nil {
		h.OnBreakerRelease()
	}
}

func (h *Hooks) workerDone(o Outcome) {
	if h != nil && h.OnWorkerDone != nil {
		h.OnWorkerDone(o)
	}
}

func (h *Hooks) publishError(err error) {
	if h != nil && h.OnPublishError != nil {
		h.OnPublishError(err)
	}
}

func (h *Hooks) allocatorFallback() {
	if h != nil && h.OnAllocatorFallback != nil {
		h.OnAllocatorFallback()
	}
}
