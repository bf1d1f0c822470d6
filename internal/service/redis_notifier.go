package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
	"github.com/iliyamo/seat-booking-simulator/internal/queue"
)

// RedisStreamPublisher appends events to two Redis streams,
// <prefix>:seatupdates and <prefix>:apistatus, each entry carrying the
// JSON message in its "payload" field.
type RedisStreamPublisher struct {
	rdb          *redis.Client
	seatStream   string
	statusStream string
	maxLen       int64
}

// NewRedisStreamPublisher returns a publisher on rdb.  maxLen caps each
// stream approximately; zero leaves them unbounded.  The client is owned
// by the caller.
func NewRedisStreamPublisher(rdb *redis.Client, prefix string, maxLen int64) *RedisStreamPublisher {
	if prefix == "" {
		prefix = "seatsim"
	}
	return &RedisStreamPublisher{
		rdb:          rdb,
		seatStream:   prefix + ":" + queue.SeatUpdatesQueue,
		statusStream: prefix + ":" + queue.APIStatusQueue,
		maxLen:       maxLen,
	}
}

func (p *RedisStreamPublisher) PublishSeatEvent(ctx context.Context, ev model.SeatEvent) error {
	return p.add(ctx, p.seatStream, queue.NewSeatUpdateMessage(ev))
}

func (p *RedisStreamPublisher) PublishBreakerEvent(ctx context.Context, ev model.BreakerEvent) error {
	return p.add(ctx, p.statusStream, queue.NewApiStatusMessage(ev))
}

func (p *RedisStreamPublisher) add(ctx context.Context, stream string, msg any) error {
	body, err := queue.Encode(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"payload": string(body)},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

func (p *RedisStreamPublisher) Close() error { return nil }
