package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-booking-simulator/internal/model"
)

// RedisRunRepo stores each record as a JSON string under <prefix>:<id>
// with a TTL.  Updates keep the TTL set at creation.
type RedisRunRepo struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisRunRepo returns a store on rdb.  A ttl of zero disables expiry.
func NewRedisRunRepo(rdb *redis.Client, prefix string, ttl time.Duration) *RedisRunRepo {
	if prefix == "" {
		prefix = "seatsim:run"
	}
	return &RedisRunRepo{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisRunRepo) key(id string) string { return r.prefix + ":" + id }

func (r *RedisRunRepo) Create(ctx context.Context, rec model.RunRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	err = r.rdb.SetArgs(ctx, r.key(rec.ID), body, redis.SetArgs{Mode: "NX", TTL: r.ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrRunExists
	}
	return err
}

func (r *RedisRunRepo) Update(ctx context.Context, rec model.RunRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	err = r.rdb.SetArgs(ctx, r.key(rec.ID), body, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrRunNotFound
	}
	return err
}

func (r *RedisRunRepo) Get(ctx context.Context, id string) (model.RunRecord, error) {
	body, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return model.RunRecord{}, err
	}
	var rec model.RunRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return model.RunRecord{}, fmt.Errorf("decode run %s: %w", id, err)
	}
	return rec, nil
}
