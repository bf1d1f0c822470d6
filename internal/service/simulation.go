package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
	"github.com/iliyamo/seat-booking-simulator/internal/config"
	"github.com/iliyamo/seat-booking-simulator/internal/metrics"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
	"github.com/iliyamo/seat-booking-simulator/internal/repository"
)

// ErrShuttingDown is returned by Start once Shutdown has begun.
var ErrShuttingDown = errors.New("simulation service is shutting down")

// storeTimeout bounds the final record update of a run.
const storeTimeout = 5 * time.Second

// SimulationService accepts simulation requests, runs each one on its own
// scheduler and records the outcome in a RunStore.
type SimulationService struct {
	store repository.RunStore
	pub   booking.Notifier
	cfg   config.SimulationConfig
	log   zerolog.Logger
	opts  []booking.Option
	now   func() time.Time

	ctx    context.Context // parent of every background run
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// ServiceOption customises a SimulationService.
type ServiceOption func(*SimulationService)

// WithEngineOptions appends scheduler options to every run, e.g. a fake
// clock in tests.
func WithEngineOptions(opts ...booking.Option) ServiceOption {
	return func(s *SimulationService) { s.opts = append(s.opts, opts...) }
}

// NewSimulationService returns a service that publishes through pub.  A
// nil pub discards events.
func NewSimulationService(store repository.RunStore, pub booking.Notifier, cfg config.SimulationConfig, log zerolog.Logger, opts ...ServiceOption) *SimulationService {
	if pub == nil {
		pub = booking.NopNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SimulationService{
		store:  store,
		pub:    pub,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start validates req, stores a running record and executes the
// simulation in the background.  The returned record carries the new ID.
func (s *SimulationService) Start(ctx context.Context, req model.RunRequest) (model.RunRecord, error) {
	rec, sched, err := s.prepare(ctx, req)
	if err != nil {
		return model.RunRecord{}, err
	}
	go func() {
		defer s.wg.Done()
		s.execute(s.ctx, rec, sched)
	}()
	return rec, nil
}

// Run executes a simulation synchronously and returns the final record.
// Cancelling ctx stops the run early; the record is still stored.
func (s *SimulationService) Run(ctx context.Context, req model.RunRequest) (model.RunRecord, error) {
	rec, sched, err := s.prepare(ctx, req)
	if err != nil {
		return model.RunRecord{}, err
	}
	defer s.wg.Done()
	return s.execute(ctx, rec, sched), nil
}

// Get returns the stored record for id.
func (s *SimulationService) Get(ctx context.Context, id string) (model.RunRecord, error) {
	return s.store.Get(ctx, id)
}

// Shutdown cancels every background run and waits for them to store
// their final records, or for ctx to expire.
func (s *SimulationService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SimulationService) validate(req model.RunRequest) error {
	if err := booking.ValidateRequest(req); err != nil {
		return err
	}
	if s.cfg.MaxSeats > 0 && req.Capacity() > s.cfg.MaxSeats {
		return fmt.Errorf("%w: venue of %d seats exceeds the limit of %d", booking.ErrInvalidRequest, req.Capacity(), s.cfg.MaxSeats)
	}
	if s.cfg.MaxBookings > 0 && req.NumberOfBookings > s.cfg.MaxBookings {
		return fmt.Errorf("%w: %d bookings exceeds the limit of %d", booking.ErrInvalidRequest, req.NumberOfBookings, s.cfg.MaxBookings)
	}
	return nil
}

// prepare registers a run with the wait group; on success the caller
// owns one wg.Done.
func (s *SimulationService) prepare(ctx context.Context, req model.RunRequest) (model.RunRecord, *booking.Scheduler, error) {
	if err := s.validate(req); err != nil {
		return model.RunRecord{}, nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return model.RunRecord{}, nil, ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	id := uuid.NewString()
	runLog := s.log.With().Str("run_id", id).Logger()

	async := NewAsyncNotifier(s.pub, s.cfg.NotifyBuffer, s.cfg.PublishTimeout, runLog.With().Str("component", "notifier").Logger())
	opts := append([]booking.Option{
		booking.WithLogger(runLog),
		booking.WithHooks(metrics.Hooks()),
		booking.WithTeardown(func() { _ = async.Close() }),
	}, s.opts...)
	sched, err := booking.NewScheduler(s.cfg.Engine, async, opts...)
	if err != nil {
		_ = async.Close()
		s.wg.Done()
		return model.RunRecord{}, nil, err
	}

	now := s.now().UTC()
	rec := model.RunRecord{
		ID:        id,
		Status:    model.RunRunning,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		_ = async.Close()
		s.wg.Done()
		return model.RunRecord{}, nil, fmt.Errorf("store run: %w", err)
	}
	return rec, sched, nil
}

func (s *SimulationService) execute(ctx context.Context, rec model.RunRecord, sched *booking.Scheduler) model.RunRecord {
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()
	started := time.Now()

	res, err := sched.Run(ctx, rec.Request)
	res.RunID = rec.ID
	rec.Result = &res
	switch {
	case err == nil:
		rec.Status = model.RunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rec.Status = model.RunCancelled
		rec.Error = err.Error()
	default:
		rec.Status = model.RunFailed
		rec.Error = err.Error()
	}
	rec.UpdatedAt = s.now().UTC()

	metrics.Runs.WithLabelValues(string(rec.Status)).Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())

	storeCtx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := s.store.Update(storeCtx, rec); err != nil {
		s.log.Error().Err(err).Str("run_id", rec.ID).Msg("store final run record failed")
	}
	s.log.Info().
		Str("run_id", rec.ID).
		Str("status", string(rec.Status)).
		Int("reserved", res.Counts.Reserved).
		Int("breaker_trips", res.BreakerTrips).
		Msg("run recorded")
	return rec
}
