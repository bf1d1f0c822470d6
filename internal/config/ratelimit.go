package config

import "time"

// Keying strategies for the run limiter.
const (
	KeyByClient      = "client"
	KeyByClientMovie = "client_movie"
)

// RateLimitConfig drives the Redis token bucket that admits new
// simulations.  A start costs one token plus one per BookingsPerToken
// bookings, capped at Capacity.
type RateLimitConfig struct {
	Enabled          bool
	Capacity         int // bucket size in tokens
	RefillTokens     int // tokens added every RefillInterval
	RefillInterval   time.Duration
	TTL              time.Duration // idle buckets expire after this
	BookingsPerToken int           // 0 charges every start a single token
	KeyStrategy      string        // KeyByClient or KeyByClientMovie
	Prefix           string
}

func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:          envBool("RATE_LIMIT_ENABLED", true),
		Capacity:         envInt("RATE_LIMIT_CAPACITY", 20),
		RefillTokens:     envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval:   envDur("RATE_LIMIT_REFILL_INTERVAL", 3*time.Second),
		TTL:              envDur("RATE_LIMIT_TTL", 10*time.Minute),
		BookingsPerToken: envInt("RATE_LIMIT_BOOKINGS_PER_TOKEN", 100),
		KeyStrategy:      envStr("RATE_LIMIT_KEY_STRATEGY", KeyByClient),
		Prefix:           envStr("RATE_LIMIT_PREFIX", "seatsim:rl"),
	}
	cfg.Capacity = max(cfg.Capacity, 1)
	cfg.RefillTokens = max(cfg.RefillTokens, 1)
	cfg.BookingsPerToken = max(cfg.BookingsPerToken, 0)
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.KeyStrategy != KeyByClientMovie {
		cfg.KeyStrategy = KeyByClient
	}
	// An idle bucket must survive until it has refilled from empty.
	steps := (cfg.Capacity + cfg.RefillTokens - 1) / cfg.RefillTokens
	cfg.TTL = max(cfg.TTL, time.Duration(steps)*cfg.RefillInterval)
	return cfg
}
