package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
	"github.com/iliyamo/seat-booking-simulator/internal/config"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// recordingPublisher keeps events in delivery order.  When block is set,
// every publish waits for it to be closed after signalling entered.
type recordingPublisher struct {
	mu       sync.Mutex
	seats    []model.SeatEvent
	breakers []model.BreakerEvent
	fail     bool

	entered chan struct{}
	block   chan struct{}
}

func (p *recordingPublisher) wait() {
	if p.entered != nil {
		select {
		case p.entered <- struct{}{}:
		default:
		}
	}
	if p.block != nil {
		<-p.block
	}
}

func (p *recordingPublisher) PublishSeatEvent(_ context.Context, ev model.SeatEvent) error {
	p.wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seats = append(p.seats, ev)
	if p.fail {
		return errors.New("transport down")
	}
	return nil
}

func (p *recordingPublisher) PublishBreakerEvent(_ context.Context, ev model.BreakerEvent) error {
	p.wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakers = append(p.breakers, ev)
	return nil
}

func (p *recordingPublisher) seatEvents() []model.SeatEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.SeatEvent(nil), p.seats...)
}

func (p *recordingPublisher) breakerEvents() []model.BreakerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.BreakerEvent(nil), p.breakers...)
}

func fastSimulationConfig() config.SimulationConfig {
	engine := booking.DefaultConfig()
	engine.BatchSize = 5
	engine.BreakerCooldown = 5 * time.Millisecond
	engine.MinDelay = 0
	engine.MaxDelay = 0
	return config.SimulationConfig{
		Engine:         engine,
		PublishTimeout: time.Second,
		NotifyBuffer:   1024,
		MaxSeats:       1000,
		MaxBookings:    1000,
	}
}
