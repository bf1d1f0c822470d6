package model

import "fmt"

// SeatEvent is emitted every time a seat changes status during a run.
// Movie is the opaque label of the run and has no effect on allocation.
type SeatEvent struct {
	Row    int        `json:"row"`
	Number int        `json:"number"`
	Status SeatStatus `json:"status"`
	Movie  string     `json:"movie"`
}

// NewSeatEvent builds the event describing seat's current status.
func NewSeatEvent(seat Seat, movie string) SeatEvent {
	return SeatEvent{Row: seat.Row, Number: seat.Number, Status: seat.Status, Movie: movie}
}

// BreakerState is the externally visible state of the booking API as
// driven by the circuit breaker.
type BreakerState uint8

const (
	BreakerUp   BreakerState = iota // bookings flow normally
	BreakerDown                     // bookings are paused
)

func (s BreakerState) String() string {
	switch s {
	case BreakerUp:
		return "Up"
	case BreakerDown:
		return "Down"
	}
	return fmt.Sprintf("BreakerState(%d)", uint8(s))
}

// MarshalText encodes the state as "Up" or "Down".
func (s BreakerState) MarshalText() ([]byte, error) {
	if s > BreakerDown {
		return nil, fmt.Errorf("invalid breaker state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts "Up" or "Down".
func (s *BreakerState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Up":
		*s = BreakerUp
	case "Down":
		*s = BreakerDown
	default:
		return fmt.Errorf("unknown breaker state %q", string(b))
	}
	return nil
}

// BreakerEvent is emitted when the circuit breaker trips (Down) and when
// it releases after the cooldown (Up).
type BreakerEvent struct {
	State BreakerState `json:"state"`
}
