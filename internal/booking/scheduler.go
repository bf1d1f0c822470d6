package booking

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// Config holds the tunables of a simulation.  DefaultConfig returns the
// values the simulator was designed around.
type Config struct {
	BatchSize          int           // workers per wave
	BreakerThreshold   float64       // reserved/total ratio that trips the breaker
	BreakerCooldown    time.Duration // how long bookings stay paused
	MinDelay           time.Duration // shortest customer think time
	MaxDelay           time.Duration // longest customer think time
	ReserveProbability float64       // chance a held seat ends up reserved
}

// DefaultConfig returns batches of 10, a 50% threshold, a 5s cooldown,
// 1–5s think time and 75% reservations.
func DefaultConfig() Config {
	return Config{
		BatchSize:          10,
		BreakerThreshold:   0.5,
		BreakerCooldown:    5 * time.Second,
		MinDelay:           time.Second,
		MaxDelay:           5 * time.Second,
		ReserveProbability: 0.75,
	}
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidConfig, c.BatchSize)
	case c.BreakerThreshold <= 0 || c.BreakerThreshold > 1:
		return fmt.Errorf("%w: breaker threshold must be in (0, 1], got %g", ErrInvalidConfig, c.BreakerThreshold)
	case c.BreakerCooldown < 0:
		return fmt.Errorf("%w: breaker cooldown must not be negative", ErrInvalidConfig)
	case c.MinDelay < 0 || c.MaxDelay < c.MinDelay:
		return fmt.Errorf("%w: delay range [%s, %s] is invalid", ErrInvalidConfig, c.MinDelay, c.MaxDelay)
	case c.ReserveProbability < 0 || c.ReserveProbability > 1:
		return fmt.Errorf("%w: reserve probability must be in [0, 1], got %g", ErrInvalidConfig, c.ReserveProbability)
	}
	return nil
}

// ValidateRequest checks the venue dimensions and booking count.
func ValidateRequest(req model.RunRequest) error {
	switch {
	case req.Rows < 1:
		return fmt.Errorf("%w: rows must be at least 1, got %d", ErrInvalidRequest, req.Rows)
	case req.SeatsPerRow < 1:
		return fmt.Errorf("%w: seatsPerRow must be at least 1, got %d", ErrInvalidRequest, req.SeatsPerRow)
	case req.SeatsPerRow > math.MaxInt/req.Rows:
		return fmt.Errorf("%w: venue of %d x %d seats is too large", ErrInvalidRequest, req.Rows, req.SeatsPerRow)
	case req.NumberOfBookings < 0:
		return fmt.Errorf("%w: numberOfBookings must not be negative, got %d", ErrInvalidRequest, req.NumberOfBookings)
	}
	return nil
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the real clock, mostly for tests.
func WithClock(c clockwork.Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithRandom replaces the randomly seeded source.
func WithRandom(r Random) Option { return func(s *Scheduler) { s.rng = r } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(s *Scheduler) { s.log = l } }

// WithHooks registers engine callbacks.
func WithHooks(h *Hooks) Option { return func(s *Scheduler) { s.hooks = h } }

// WithTeardown registers fn to run once at the end of every Run, after
// the last wave and breaker cooldown, when no more events will be
// published.
func WithTeardown(fn func()) Option { return func(s *Scheduler) { s.teardown = fn } }

// Scheduler runs simulations: it seeds a fresh inventory per run and
// releases booking workers in fixed-size waves, waiting for each wave to
// finish before starting the next.
type Scheduler struct {
	cfg      Config
	notifier Notifier
	clock    clockwork.Clock
	rng      Random
	hooks    *Hooks
	log      zerolog.Logger
	teardown func()
}

// NewScheduler validates cfg and returns a Scheduler publishing to
// notifier.  A nil notifier discards events.
func NewScheduler(cfg Config, notifier Notifier, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	s := &Scheduler{
		cfg:      cfg,
		notifier: notifier,
		clock:    clockwork.NewRealClock(),
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		s.rng = newRandomSeeded()
	}
	return s, nil
}

// tally counts worker outcomes across concurrent workers.
type tally struct {
	mu     sync.Mutex
	counts [OutcomeCancelled + 1]int
}

func (t *tally) add(o Outcome) {
	t.mu.Lock()
	t.counts[o]++
	t.mu.Unlock()
}

func (t *tally) get(o Outcome) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[o]
}

// Run executes one simulation and returns its final counts.  Worker
// failures never abort the run.  If ctx is cancelled, waves not yet
// started are skipped and the partial result is returned with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, req model.RunRequest) (model.RunResult, error) {
	if err := ValidateRequest(req); err != nil {
		return model.RunResult{}, err
	}
	inv, err := NewInventory(req.Rows, req.SeatsPerRow)
	if err != nil {
		return model.RunResult{}, err
	}
	gate := NewGate()
	alloc := NewAllocator(inv, s.rng)
	alloc.hooks = s.hooks
	r := &run{
		cfg:      s.cfg,
		movie:    req.Movie,
		inv:      inv,
		alloc:    alloc,
		gate:     gate,
		notifier: s.notifier,
		clock:    s.clock,
		rng:      s.rng,
		hooks:    s.hooks,
		log:      s.log.With().Str("component", "worker").Logger(),
	}
	r.breaker = newBreaker(inv, gate, s.notifier, s.clock, s.hooks,
		s.log.With().Str("component", "breaker").Logger(),
		s.cfg.BreakerThreshold, s.cfg.BreakerCooldown)

	res := model.RunResult{
		Movie:     req.Movie,
		Total:     inv.Len(),
		StartedAt: s.clock.Now().UTC(),
	}
	s.log.Info().
		Int("rows", req.Rows).
		Int("seats_per_row", req.SeatsPerRow).
		Int("bookings", req.NumberOfBookings).
		Str("movie", req.Movie).
		Msg("simulation started")

	var (
		t      tally
		runErr error
		waves  int
	)
	for start := 0; start < req.NumberOfBookings; start += s.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		end := min(start+s.cfg.BatchSize, req.NumberOfBookings)
		var g errgroup.Group
		for id := start; id < end; id++ {
			g.Go(func() error {
				outcome, err := r.book(ctx, id)
				t.add(outcome)
				s.hooks.workerDone(outcome)
				if outcome != OutcomeFailed {
					return nil
				}
				s.log.Error().Err(err).Int("worker", id).Msg("booking attempt aborted")
				return err
			})
		}
		// A plain Group never cancels siblings; Wait reports the first failure.
		waveErr := g.Wait()
		res.Attempts += end - start
		waves++
		if waveErr != nil {
			s.log.Warn().Err(waveErr).Int("wave", waves).Msg("wave finished with failed attempts")
			continue
		}
		s.log.Debug().Int("wave", waves).Int("dispatched", res.Attempts).Msg("wave complete")
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	r.breaker.Stop()

	res.Counts = inv.Counts()
	res.Holds = t.get(OutcomeReserved) + t.get(OutcomeReleased)
	res.NoSeat = t.get(OutcomeNoSeat)
	res.Failures = t.get(OutcomeFailed)
	res.Cancelled = t.get(OutcomeCancelled)
	res.BreakerTrips = r.breaker.Trips()
	res.FinishedAt = s.clock.Now().UTC()

	if s.teardown != nil {
		s.teardown()
	}

	s.log.Info().
		Int("available", res.Counts.Available).
		Int("held", res.Counts.Held).
		Int("reserved", res.Counts.Reserved).
		Int("no_seat", res.NoSeat).
		Int("failures", res.Failures).
		Int("breaker_trips", res.BreakerTrips).
		Int("allocator_fallbacks", alloc.Fallbacks()).
		Msg("simulation finished")
	return res, runErr
}
