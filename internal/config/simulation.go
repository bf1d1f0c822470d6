package config

import (
	"time"

	"github.com/iliyamo/seat-booking-simulator/internal/booking"
)

// SimulationConfig bundles the engine tunables with the settings of the
// notifier that sits in front of the transport.
type SimulationConfig struct {
	Engine         booking.Config
	PublishTimeout time.Duration // upper bound for one publish call
	NotifyBuffer   int           // events queued per run before dropping
	MaxSeats       int           // largest venue accepted over HTTP
	MaxBookings    int           // largest booking count accepted over HTTP
}

// LoadSimulationConfig reads SIM_* variables on top of the engine
// defaults and validates the result.
func LoadSimulationConfig() (SimulationConfig, error) {
	def := booking.DefaultConfig()
	cfg := SimulationConfig{Engine: def}

	var err error
	if cfg.Engine.BatchSize, err = strictInt("SIM_BATCH_SIZE", def.BatchSize); err != nil {
		return cfg, err
	}
	if cfg.Engine.BreakerThreshold, err = strictFloat("SIM_BREAKER_THRESHOLD", def.BreakerThreshold); err != nil {
		return cfg, err
	}
	if cfg.Engine.BreakerCooldown, err = strictDur("SIM_BREAKER_COOLDOWN", def.BreakerCooldown); err != nil {
		return cfg, err
	}
	if cfg.Engine.MinDelay, err = strictDur("SIM_MIN_DELAY", def.MinDelay); err != nil {
		return cfg, err
	}
	if cfg.Engine.MaxDelay, err = strictDur("SIM_MAX_DELAY", def.MaxDelay); err != nil {
		return cfg, err
	}
	if cfg.Engine.ReserveProbability, err = strictFloat("SIM_RESERVE_PROBABILITY", def.ReserveProbability); err != nil {
		return cfg, err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return cfg, err
	}

	cfg.PublishTimeout = envDur("SIM_PUBLISH_TIMEOUT", 2*time.Second)
	cfg.NotifyBuffer = envInt("SIM_NOTIFY_BUFFER", 256)
	cfg.MaxSeats = envInt("SIM_MAX_SEATS", 10000)
	cfg.MaxBookings = envInt("SIM_MAX_BOOKINGS", 100000)
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.NotifyBuffer < 1 {
		cfg.NotifyBuffer = 1
	}
	return cfg, nil
}
