package model

import "fmt"

// SeatStatus is the booking state of a single seat.  A seat moves from
// Available to Held when a customer picks it, and from Held to either
// Reserved (paid) or back to Available (abandoned).  Reserved is terminal.
type SeatStatus uint8

const (
	SeatAvailable SeatStatus = iota // free and selectable
	SeatHeld                        // picked but not yet paid
	SeatReserved                    // paid and fully reserved
)

var seatStatusNames = [...]string{"Available", "Held", "Reserved"}

// String returns the status name as it appears on the wire.
func (s SeatStatus) String() string {
	if int(s) < len(seatStatusNames) {
		return seatStatusNames[s]
	}
	return fmt.Sprintf("SeatStatus(%d)", uint8(s))
}

// MarshalText encodes the status by name so JSON payloads read
// {"status":"Held"} instead of a bare integer.
func (s SeatStatus) MarshalText() ([]byte, error) {
	if int(s) >= len(seatStatusNames) {
		return nil, fmt.Errorf("invalid seat status %d", uint8(s))
	}
	return []byte(seatStatusNames[s]), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *SeatStatus) UnmarshalText(b []byte) error {
	v, err := ParseSeatStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeatStatus maps a status name back to its value.
func ParseSeatStatus(name string) (SeatStatus, error) {
	for i, n := range seatStatusNames {
		if n == name {
			return SeatStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown seat status %q", name)
}

// CanTransition reports whether a seat may move from s to next.  The only
// legal moves are Available→Held, Held→Reserved and Held→Available.
func (s SeatStatus) CanTransition(next SeatStatus) bool {
	switch s {
	case SeatAvailable:
		return next == SeatHeld
	case SeatHeld:
		return next == SeatReserved || next == SeatAvailable
	}
	return false
}

// Seat describes one seat of the venue.  Seats are identified by their
// row and number, both 1-based.  Seat is a value type: changing a seat's
// status means storing a new value at its index in the inventory.
//
// Fields:
//  Row    – row of the seat, starting at 1.
//  Number – position within the row, starting at 1.
//  Status – current booking state.
type Seat struct {
	Row    int
	Number int
	Status SeatStatus
}

// WithStatus returns a copy of the seat carrying the given status.
func (s Seat) WithStatus(status SeatStatus) Seat {
	s.Status = status
	return s
}

// Label renders the seat as "row-number", e.g. "3-12".
func (s Seat) Label() string { return fmt.Sprintf("%d-%d", s.Row, s.Number) }
