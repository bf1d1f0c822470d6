package config

// Redis backs three optional features: the rate limiter, the run record
// store and the stream notifier.  When the server cannot be reached at
// startup NewRedisClient returns nil and callers degrade gracefully.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig carries the connection options plus the key layout used by
// the stream notifier and the run store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	TLS          bool
	StreamPrefix string // streams are <prefix>:seatupdates and <prefix>:apistatus
	StreamMaxLen int64  // approximate cap per stream, 0 disables trimming
	RunKeyPrefix string
}

// LoadRedisConfig reads:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand, used when host/port are not both set
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when "true" or "1"
//	REDIS_STREAM_PREFIX, REDIS_STREAM_MAXLEN, REDIS_RUN_PREFIX
func LoadRedisConfig() RedisConfig {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	tlsEnv := os.Getenv("REDIS_TLS")
	return RedisConfig{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           dbNum,
		TLS:          strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
		StreamPrefix: envStr("REDIS_STREAM_PREFIX", "seatsim"),
		StreamMaxLen: int64(envInt("REDIS_STREAM_MAXLEN", 10000)),
		RunKeyPrefix: envStr("REDIS_RUN_PREFIX", "seatsim:run"),
	}
}

// NewRedisClient dials Redis using cfg.  The returned client is nil if the
// server does not answer a ping within two seconds.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
