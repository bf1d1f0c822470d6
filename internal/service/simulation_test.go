package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
	"github.com/iliyamo/seat-booking-simulator/internal/repository"
)

func newTestService(t *testing.T, pub booking.Notifier, mutate func(*SimulationService)) (*SimulationService, *repository.MemoryRunRepo) {
	t.Helper()
	store := repository.NewMemoryRunRepo(0)
	svc := NewSimulationService(store, pub, fastSimulationConfig(), zerolog.Nop(),
		WithEngineOptions(booking.WithRandom(booking.NewRandom(7))))
	if mutate != nil {
		mutate(svc)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc, store
}

func waitForStatus(t *testing.T, svc *SimulationService, id string) model.RunRecord {
	t.Helper()
	var rec model.RunRecord
	require.Eventually(t, func() bool {
		var err error
		rec, err = svc.Get(context.Background(), id)
		return err == nil && rec.Status != model.RunRunning
	}, 5*time.Second, 5*time.Millisecond)
	return rec
}

func TestStartCompletesRun(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, pub, nil)
	req := model.RunRequest{Rows: 2, SeatsPerRow: 5, NumberOfBookings: 10, Movie: "Arrival"}

	rec, err := svc.Start(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.RunRunning, rec.Status)
	assert.Len(t, rec.ID, 36)

	done := waitForStatus(t, svc, rec.ID)
	assert.Equal(t, model.RunCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, rec.ID, done.Result.RunID)
	assert.Equal(t, 10, done.Result.Total)
	assert.Equal(t, 10, done.Result.Counts.Total())
	assert.Zero(t, done.Result.Counts.Held)
	assert.Equal(t, 10, done.Result.Attempts)
	assert.Empty(t, done.Error)

	// The per-run notifier is drained before the record is final.
	assert.Len(t, pub.seatEvents(), 2*done.Result.Holds)
	for _, ev := range pub.seatEvents() {
		assert.Equal(t, "Arrival", ev.Movie)
	}
}

func TestRunIsSynchronous(t *testing.T) {
	pub := &recordingPublisher{}
	svc, store := newTestService(t, pub, func(s *SimulationService) {
		s.cfg.Engine.ReserveProbability = 1
	})

	rec, err := svc.Run(context.Background(), model.RunRequest{Rows: 1, SeatsPerRow: 4, NumberOfBookings: 4})
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, rec.Status)
	assert.Equal(t, 4, rec.Result.Counts.Reserved)
	assert.Equal(t, 1, rec.Result.BreakerTrips)

	stored, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, stored)

	states := []model.BreakerState{}
	for _, ev := range pub.breakerEvents() {
		states = append(states, ev.State)
	}
	assert.Equal(t, []model.BreakerState{model.BreakerDown, model.BreakerUp}, states)
}

func TestStartValidates(t *testing.T) {
	svc, store := newTestService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.Start(ctx, model.RunRequest{Rows: 0, SeatsPerRow: 5, NumberOfBookings: 1})
	require.ErrorIs(t, err, booking.ErrInvalidRequest)

	_, err = svc.Start(ctx, model.RunRequest{Rows: 100, SeatsPerRow: 100, NumberOfBookings: 1})
	require.ErrorIs(t, err, booking.ErrInvalidRequest, "venue above MaxSeats")

	// Rows*SeatsPerRow wraps negative here and must not slip under MaxSeats.
	_, err = svc.Start(ctx, model.RunRequest{Rows: math.MaxInt/4 + 1, SeatsPerRow: 4, NumberOfBookings: 1})
	require.ErrorIs(t, err, booking.ErrInvalidRequest, "capacity overflow")
	require.ErrorIs(t, svc.validate(model.RunRequest{Rows: math.MaxInt/2 + 1, SeatsPerRow: 2}), booking.ErrInvalidRequest)

	_, err = svc.Start(ctx, model.RunRequest{Rows: 1, SeatsPerRow: 1, NumberOfBookings: 5000})
	require.ErrorIs(t, err, booking.ErrInvalidRequest, "bookings above MaxBookings")

	assert.Equal(t, 0, store.Len())
}

func TestShutdownCancelsRuns(t *testing.T) {
	svc, _ := newTestService(t, nil, func(s *SimulationService) {
		s.cfg.Engine.MinDelay = time.Hour
		s.cfg.Engine.MaxDelay = time.Hour
	})
	rec, err := svc.Start(context.Background(), model.RunRequest{Rows: 3, SeatsPerRow: 3, NumberOfBookings: 9})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	got, err := svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunCancelled, got.Status)
	assert.NotEmpty(t, got.Error)
	require.NotNil(t, got.Result)
	assert.Equal(t, 9, got.Result.Counts.Available)

	_, err = svc.Start(context.Background(), model.RunRequest{Rows: 1, SeatsPerRow: 1, NumberOfBookings: 1})
	require.ErrorIs(t, err, ErrShuttingDown)
}

func TestRunCancelledByCaller(t *testing.T) {
	svc, _ := newTestService(t, nil, func(s *SimulationService) {
		s.cfg.Engine.MinDelay = time.Hour
		s.cfg.Engine.MaxDelay = time.Hour
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	rec, err := svc.Run(ctx, model.RunRequest{Rows: 1, SeatsPerRow: 2, NumberOfBookings: 2})
	require.NoError(t, err)
	assert.Equal(t, model.RunCancelled, rec.Status)
	assert.Equal(t, 2, rec.Result.Cancelled)
}

func TestGetUnknownRun(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrRunNotFound)
}
