package booking

import (
	"context"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// Notifier receives the events of a run.  Implementations must not block
// the caller indefinitely; delivery and retries are their concern.  The
// core never retries a failed publish.
type Notifier interface {
	PublishSeatEvent(ctx context.Context, ev model.SeatEvent) error
	PublishBreakerEvent(ctx context.Context, ev model.BreakerEvent) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) PublishSeatEvent(context.Context, model.SeatEvent) error       { return nil }
func (NopNotifier) PublishBreakerEvent(context.Context, model.BreakerEvent) error { return nil }
