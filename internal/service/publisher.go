// Package service runs simulations on behalf of the HTTP API and the CLI
// and delivers their events to the configured transport.
package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
	"github.com/iliyamo/seat-booking-simulator/internal/queue"
)

// Publisher is a transport for run events.  A Publisher is shared by all
// runs and closed once at shutdown.
type Publisher interface {
	booking.Notifier
	Close() error
}

// LogPublisher writes every event as a structured log line.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) PublishSeatEvent(_ context.Context, ev model.SeatEvent) error {
	p.log.Info().
		Str("queue", queue.SeatUpdatesQueue).
		Int("row", ev.Row).
		Int("number", ev.Number).
		Stringer("status", ev.Status).
		Str("movie", ev.Movie).
		Msg("seat update")
	return nil
}

func (p *LogPublisher) PublishBreakerEvent(_ context.Context, ev model.BreakerEvent) error {
	p.log.Info().
		Str("queue", queue.APIStatusQueue).
		Stringer("status", ev.State).
		Msg("api status")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
