package booking

import (
	"fmt"
	"math"
	"sync"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// NoSeat is the index returned when no seat is available.
const NoSeat = -1

// Inventory owns the seat map of one run.  All reads that must be
// consistent with concurrent mutation, and every mutation, go through
// WithLock; the seat slice itself is never handed out.
type Inventory struct {
	mu    sync.Mutex
	seats []model.Seat
}

// NewInventory lays out rows × seatsPerRow seats in row-major order, all
// Available.
func NewInventory(rows, seatsPerRow int) (*Inventory, error) {
	if rows <= 0 || seatsPerRow <= 0 || seatsPerRow > math.MaxInt/rows {
		return nil, fmt.Errorf("%w: rows=%d seatsPerRow=%d", ErrInvalidRequest, rows, seatsPerRow)
	}
	seats := make([]model.Seat, 0, rows*seatsPerRow)
	for row := 1; row <= rows; row++ {
		for number := 1; number <= seatsPerRow; number++ {
			seats = append(seats, model.Seat{Row: row, Number: number, Status: model.SeatAvailable})
		}
	}
	return &Inventory{seats: seats}, nil
}

// Len returns the number of seats.  The size never changes after
// construction, so no lock is taken.
func (inv *Inventory) Len() int { return len(inv.seats) }

// WithLock runs fn inside the inventory critical section.  The view is
// only valid for the duration of fn and must not be retained.  fn must
// not block.
func (inv *Inventory) WithLock(fn func(v *View)) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	v := &View{seats: inv.seats}
	fn(v)
	v.seats = nil
}

// View exposes the seat map to a WithLock callback.
type View struct {
	seats []model.Seat
}

// Len returns the number of seats.
func (v *View) Len() int { return len(v.seats) }

// Seat returns the seat stored at idx.
func (v *View) Seat(idx int) model.Seat { return v.seats[idx] }

// Available reports whether idx addresses a seat that is still Available.
// Out-of-range indices, including NoSeat, report false.
func (v *View) Available(idx int) bool {
	return idx >= 0 && idx < len(v.seats) && v.seats[idx].Status == model.SeatAvailable
}

// Set moves the seat at idx to status and returns the new value.
func (v *View) Set(idx int, status model.SeatStatus) (model.Seat, error) {
	if idx < 0 || idx >= len(v.seats) {
		return model.Seat{}, fmt.Errorf("%w: seat index %d out of range", ErrInvalidTransition, idx)
	}
	cur := v.seats[idx]
	if !cur.Status.CanTransition(status) {
		return cur, fmt.Errorf("%w: seat %s %s -> %s", ErrInvalidTransition, cur.Label(), cur.Status, status)
	}
	next := cur.WithStatus(status)
	v.seats[idx] = next
	return next, nil
}

// FirstAvailable scans in row-major order and returns the index of the
// first Available seat, or NoSeat.
func (v *View) FirstAvailable() int {
	for i, s := range v.seats {
		if s.Status == model.SeatAvailable {
			return i
		}
	}
	return NoSeat
}

// Counts tallies the seats per status.
func (v *View) Counts() model.SeatCounts {
	var c model.SeatCounts
	for _, s := range v.seats {
		c.Add(s.Status)
	}
	return c
}

// Counts returns a consistent per-status snapshot.
func (inv *Inventory) Counts() (c model.SeatCounts) {
	inv.WithLock(func(v *View) { c = v.Counts() })
	return c
}

// FirstAvailable returns the first Available index at the time of the
// call.  The answer may be stale as soon as the lock is released.
func (inv *Inventory) FirstAvailable() (idx int) {
	inv.WithLock(func(v *View) { idx = v.FirstAvailable() })
	return idx
}

// Snapshot copies the seat map.
func (inv *Inventory) Snapshot() []model.Seat {
	var out []model.Seat
	inv.WithLock(func(v *View) {
		out = make([]model.Seat, len(v.seats))
		copy(out, v.seats)
	})
	return out
}

// Claim holds the seat at candidate if it is still Available.  Otherwise
// it re-draws with the first-available scan inside the same critical
// section, so a lost race never fails the attempt while seats remain.
// It returns ErrNoSeatAvailable when every seat is taken.
func (inv *Inventory) Claim(candidate int) (idx int, seat model.Seat, err error) {
	inv.WithLock(func(v *View) {
		idx = candidate
		if !v.Available(idx) {
			idx = v.FirstAvailable()
		}
		if idx == NoSeat {
			err = ErrNoSeatAvailable
			return
		}
		seat, err = v.Set(idx, model.SeatHeld)
	})
	return idx, seat, err
}

// Resolve moves a held seat to its final status.
func (inv *Inventory) Resolve(idx int, status model.SeatStatus) (seat model.Seat, err error) {
	inv.WithLock(func(v *View) { seat, err = v.Set(idx, status) })
	return seat, err
}
