package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking-simulator/internal/config"
	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// scriptedBucket answers every script call with a fixed reply and records
// the keys and arguments it was called with.
type scriptedBucket struct {
	mu    sync.Mutex
	reply []any
	err   error
	keys  []string
	args  [][]any
}

func (b *scriptedBucket) run(ctx context.Context, keys []string, args []any) *redis.Cmd {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, keys...)
	b.args = append(b.args, args)
	cmd := redis.NewCmd(ctx)
	if b.err != nil {
		cmd.SetErr(b.err)
	} else {
		cmd.SetVal(b.reply)
	}
	return cmd
}

func (b *scriptedBucket) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return b.run(ctx, keys, args)
}

func (b *scriptedBucket) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return b.run(ctx, keys, args)
}

func (b *scriptedBucket) EvalRO(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return b.run(ctx, keys, args)
}

func (b *scriptedBucket) EvalShaRO(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return b.run(ctx, keys, args)
}

func (b *scriptedBucket) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (b *scriptedBucket) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func testLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:          true,
		Capacity:         5,
		RefillTokens:     1,
		RefillInterval:   time.Second,
		TTL:              time.Minute,
		BookingsPerToken: 100,
		KeyStrategy:      config.KeyByClient,
		Prefix:           "rl",
	}
}

// echoRun is the handler behind the limiter; it echoes the movie it bound.
func echoRun(c echo.Context) error {
	var req model.RunRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "bad body")
	}
	return c.String(http.StatusAccepted, req.Movie)
}

func startRun(e *echo.Echo, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/simulations", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRunLimiterPassThrough(t *testing.T) {
	disabled := testLimitConfig()
	disabled.Enabled = false
	bucket := &scriptedBucket{reply: []any{int64(0), int64(0), int64(1000)}}

	for name, l := range map[string]*RunLimiter{
		"nil":      nil,
		"disabled": NewRunLimiter(disabled, bucket, zerolog.Nop()),
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.POST("/v1/simulations", echoRun, l.Middleware())
			for i := 0; i < 3; i++ {
				assert.Equal(t, http.StatusAccepted, startRun(e, `{"rows":1,"seatsPerRow":1}`).Code)
			}
		})
	}
	assert.Empty(t, bucket.keys)
}

func TestRunLimiterCost(t *testing.T) {
	l := NewRunLimiter(testLimitConfig(), &scriptedBucket{}, zerolog.Nop())
	cases := map[int]int{0: 1, 99: 1, 100: 2, 250: 3, 10_000: 5}
	for bookings, want := range cases {
		assert.Equal(t, want, l.Cost(model.RunRequest{NumberOfBookings: bookings}), "bookings=%d", bookings)
	}

	flat := testLimitConfig()
	flat.BookingsPerToken = 0
	assert.Equal(t, 1, NewRunLimiter(flat, &scriptedBucket{}, zerolog.Nop()).Cost(model.RunRequest{NumberOfBookings: 10_000}))
}

func TestRunLimiterKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/simulations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	run := model.RunRequest{Movie: "  Echoes of Tomorrow "}

	cfg := testLimitConfig()
	assert.Equal(t, "rl:client:10.0.0.9", NewRunLimiter(cfg, nil, zerolog.Nop()).Key(c, run))

	cfg.KeyStrategy = config.KeyByClientMovie
	l := NewRunLimiter(cfg, nil, zerolog.Nop())
	assert.Equal(t, "rl:client:10.0.0.9:movie:echoes of tomorrow", l.Key(c, run))
	assert.Equal(t, "rl:client:10.0.0.9:movie:-", l.Key(c, model.RunRequest{}))
}

func TestRunLimiterAdmitsAndKeepsBody(t *testing.T) {
	bucket := &scriptedBucket{reply: []any{int64(1), int64(2), int64(0)}}
	l := NewRunLimiter(testLimitConfig(), bucket, zerolog.Nop())
	l.now = func() time.Time { return time.UnixMilli(42_000) }
	e := echo.New()
	e.POST("/v1/simulations", echoRun, l.Middleware())

	rec := startRun(e, `{"rows":10,"seatsPerRow":10,"numberOfBookings":250,"movie":"Up"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "Up", rec.Body.String(), "handler still reads the full body")
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Cost"))

	require.Equal(t, []string{"rl:client:10.0.0.1"}, bucket.keys)
	require.Len(t, bucket.args, 1)
	assert.Equal(t, []any{int64(42_000), 5, 1, int64(1000), int64(60_000), 3}, bucket.args[0])
}

func TestRunLimiterThrottles(t *testing.T) {
	var logs bytes.Buffer
	bucket := &scriptedBucket{reply: []any{int64(0), int64(1), int64(2500)}}
	l := NewRunLimiter(testLimitConfig(), bucket, zerolog.New(&logs))
	e := echo.New()
	e.POST("/v1/simulations", echoRun, l.Middleware())

	rec := startRun(e, `{"rows":2,"seatsPerRow":2,"numberOfBookings":300}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get(echo.HeaderRetryAfter))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Cost"))
	assert.Contains(t, rec.Body.String(), `"retry_after":3`)
	assert.Contains(t, logs.String(), "simulation start throttled")
}

func TestRunLimiterFailsOpen(t *testing.T) {
	var logs bytes.Buffer
	bucket := &scriptedBucket{err: errors.New("connection refused")}
	l := NewRunLimiter(testLimitConfig(), bucket, zerolog.New(&logs))
	e := echo.New()
	e.POST("/v1/simulations", echoRun, l.Middleware())

	rec := startRun(e, `{"rows":1,"seatsPerRow":1,"movie":"Up"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, logs.String(), "rate limiter unavailable")
}

func TestRunLimiterUnreadableBodyPaysMinimum(t *testing.T) {
	bucket := &scriptedBucket{reply: []any{int64(1), int64(4), int64(0)}}
	l := NewRunLimiter(testLimitConfig(), bucket, zerolog.Nop())
	e := echo.New()
	e.POST("/v1/simulations", echoRun, l.Middleware())

	rec := startRun(e, `{"numberOfBookings":`)
	require.Equal(t, http.StatusBadRequest, rec.Code, "handler still rejects the body")
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Cost"))
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(time.Millisecond))
	assert.Equal(t, 3, retryAfterSeconds(2500*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(2*time.Second))
	assert.Equal(t, 1, retryAfterSeconds(-20*time.Millisecond))
}

func TestRunLimiterWithRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	cfg := testLimitConfig()
	cfg.Capacity = 3
	cfg.RefillInterval = time.Hour
	cfg.Prefix = "rl-test-" + uuid.NewString()
	l := NewRunLimiter(cfg, rdb, zerolog.Nop())
	key := cfg.Prefix + ":client:10.0.0.1"
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	a, err := l.Admit(ctx, key, 2)
	require.NoError(t, err)
	assert.True(t, a.Admitted)
	assert.EqualValues(t, 1, a.Remaining)

	a, err = l.Admit(ctx, key, 2)
	require.NoError(t, err)
	assert.False(t, a.Admitted, "one token left, two needed")
	assert.Greater(t, a.RetryAfter, 59*time.Minute)

	a, err = l.Admit(ctx, key, 1)
	require.NoError(t, err)
	assert.True(t, a.Admitted)
	assert.Zero(t, a.Remaining)

	ttl, err := rdb.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
