package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/config"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// admitScript is a token bucket charged a variable number of tokens per
// call.  Tokens come back RefillTokens at a time, once per whole interval.
//
//	KEYS: bucket
//	ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_ms, cost
//	reply: {admitted, tokens_left, retry_after_ms}
var admitScript = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl      = tonumber(ARGV[5])
local cost     = tonumber(ARGV[6])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local stamp  = tonumber(redis.call('HGET', KEYS[1], 'stamp'))
if not tokens or not stamp then
	tokens, stamp = capacity, now
end

local steps = math.floor(math.max(0, now - stamp) / interval)
if steps > 0 then
	tokens = math.min(capacity, tokens + steps * refill)
	stamp = stamp + steps * interval
end
if tokens >= capacity then
	stamp = now
end

local admitted, retry = 0, 0
if tokens >= cost then
	admitted = 1
	tokens = tokens - cost
else
	retry = math.ceil((cost - tokens) / refill) * interval - (now - stamp)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'stamp', stamp)
redis.call('PEXPIRE', KEYS[1], ttl)
return {admitted, tokens, retry}
`)

// maxPeekBytes bounds how much of a request body the limiter reads to
// price a run.
const maxPeekBytes = 64 << 10

// Admission is the bucket's verdict on one simulation start.
type Admission struct {
	Admitted   bool
	Cost       int
	Remaining  int64
	RetryAfter time.Duration
}

// RunLimiter meters simulation starts in a Redis token bucket shared by
// every server instance.  Bigger runs spawn more workers and cost more.
type RunLimiter struct {
	cfg config.RateLimitConfig
	rdb redis.Scripter
	log zerolog.Logger
	now func() time.Time
}

func NewRunLimiter(cfg config.RateLimitConfig, rdb redis.Scripter, log zerolog.Logger) *RunLimiter {
	return &RunLimiter{cfg: cfg, rdb: rdb, log: log, now: time.Now}
}

// Cost prices a run at one token plus one per BookingsPerToken bookings,
// never more than the bucket holds.
func (l *RunLimiter) Cost(req model.RunRequest) int {
	cost := 1
	if l.cfg.BookingsPerToken > 0 && req.NumberOfBookings > 0 {
		cost += req.NumberOfBookings / l.cfg.BookingsPerToken
	}
	return min(cost, l.cfg.Capacity)
}

// Key names the bucket a start is charged to.
func (l *RunLimiter) Key(c echo.Context, req model.RunRequest) string {
	client := c.RealIP()
	if client == "" {
		client = "unknown"
	}
	key := l.cfg.Prefix + ":client:" + client
	if l.cfg.KeyStrategy == config.KeyByClientMovie {
		movie := strings.ToLower(strings.TrimSpace(req.Movie))
		if movie == "" {
			movie = "-"
		}
		key += ":movie:" + movie
	}
	return key
}

// Admit charges cost tokens to the bucket at key.
func (l *RunLimiter) Admit(ctx context.Context, key string, cost int) (Admission, error) {
	vals, err := admitScript.Run(ctx, l.rdb, []string{key},
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		l.cfg.TTL.Milliseconds(),
		cost,
	).Int64Slice()
	if err != nil {
		return Admission{}, fmt.Errorf("ratelimit: %w", err)
	}
	if len(vals) != 3 {
		return Admission{}, fmt.Errorf("ratelimit: unexpected reply %v", vals)
	}
	return Admission{
		Admitted:   vals[0] == 1,
		Cost:       cost,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

// Middleware guards the endpoint that starts simulations.  A nil or
// disabled limiter admits everything, and Redis errors fail open.
func (l *RunLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if l == nil || !l.cfg.Enabled {
			return next
		}
		return func(c echo.Context) error {
			// An unreadable body is priced as the cheapest run; the
			// handler rejects it anyway.
			req, _ := peekRunRequest(c.Request())
			key := l.Key(c, req)

			a, err := l.Admit(c.Request().Context(), key, l.Cost(req))
			if err != nil {
				l.log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, admitting run")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(a.Remaining, 10))
			h.Set("X-RateLimit-Cost", strconv.Itoa(a.Cost))
			if a.Admitted {
				return next(c)
			}

			secs := retryAfterSeconds(a.RetryAfter)
			h.Set(echo.HeaderRetryAfter, strconv.Itoa(secs))
			l.log.Info().
				Str("key", key).
				Int("cost", a.Cost).
				Int64("remaining", a.Remaining).
				Dur("retry_after", a.RetryAfter).
				Msg("simulation start throttled")
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":       "too many simulations started, retry later",
				"retry_after": secs,
			})
		}
	}
}

// peekRunRequest decodes the run request without consuming the body.
func peekRunRequest(r *http.Request) (model.RunRequest, error) {
	var req model.RunRequest
	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	if err != nil {
		return req, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return model.RunRequest{}, err
	}
	return req, nil
}

// retryAfterSeconds rounds up and never tells a throttled client to retry
// immediately.
func retryAfterSeconds(d time.Duration) int {
	return max(int((d+time.Second-1)/time.Second), 1)
}
