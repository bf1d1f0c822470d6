package booking

import "errors"

// ErrInvalidRequest is returned by Run when the venue dimensions or the
// number of bookings make no sense.  Handlers translate it into 400.
var ErrInvalidRequest = errors.New("invalid run request")

// ErrInvalidConfig is returned when simulation settings are out of range.
var ErrInvalidConfig = errors.New("invalid simulation config")

// ErrNoSeatAvailable signals that every seat is held or reserved.  It is a
// normal terminal condition for a worker, not a failure.
var ErrNoSeatAvailable = errors.New("no seat available")

// ErrInvalidTransition is returned when a status change would break the
// Available→Held→{Reserved, Available} state machine.
var ErrInvalidTransition = errors.New("invalid seat transition")

// ErrWorkerFailed wraps any unexpected error or panic inside a worker.
var ErrWorkerFailed = errors.New("booking worker failed")
