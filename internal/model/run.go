package model

import "time"

// RunRequest describes one simulation.  The venue is Rows × SeatsPerRow
// seats and NumberOfBookings customers attempt to book one seat each.
type RunRequest struct {
	Rows             int    `json:"rows"`
	SeatsPerRow      int    `json:"seatsPerRow"`
	NumberOfBookings int    `json:"numberOfBookings"`
	Movie            string `json:"movie"`
}

// Capacity returns the total number of seats in the venue.  It is only
// meaningful for requests that passed booking.ValidateRequest, which
// rejects dimensions whose product overflows int.
func (r RunRequest) Capacity() int { return r.Rows * r.SeatsPerRow }

// SeatCounts holds the number of seats in each status.
type SeatCounts struct {
	Available int `json:"available"`
	Held      int `json:"held"`
	Reserved  int `json:"reserved"`
}

// Total returns the sum over all statuses.
func (c SeatCounts) Total() int { return c.Available + c.Held + c.Reserved }

// Add increments the counter for status.
func (c *SeatCounts) Add(status SeatStatus) {
	switch status {
	case SeatAvailable:
		c.Available++
	case SeatHeld:
		c.Held++
	case SeatReserved:
		c.Reserved++
	}
}

// RunResult is the final report of a simulation.
//
// Fields:
//  RunID        – identifier assigned when the run was accepted.
//  Movie        – label copied from the request.
//  Total        – venue capacity.
//  Counts       – final seat counts per status.
//  Attempts     – workers that were dispatched.
//  Holds        – workers that managed to hold a seat.
//  NoSeat       – workers that found every seat taken.
//  Failures     – workers that aborted on an unexpected error.
//  Cancelled    – workers stopped by cancellation before selecting a seat.
//  BreakerTrips – number of times the circuit breaker opened.
type RunResult struct {
	RunID        string     `json:"run_id"`
	Movie        string     `json:"movie"`
	Total        int        `json:"total"`
	Counts       SeatCounts `json:"counts"`
	Attempts     int        `json:"attempts"`
	Holds        int        `json:"holds"`
	NoSeat       int        `json:"no_seat"`
	Failures     int        `json:"failures"`
	Cancelled    int        `json:"cancelled"`
	BreakerTrips int        `json:"breaker_trips"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   time.Time  `json:"finished_at"`
}

// RunStatus tracks a simulation accepted through the API.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// RunRecord is what gets stored and returned when a client polls a run.
// Result is nil while the run is still in progress.
type RunRecord struct {
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	Request   RunRequest `json:"request"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
