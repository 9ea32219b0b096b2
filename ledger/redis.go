package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	entryField = "entry_date_time"
	// Sessions older than this are dropped by Redis.
	sessionTTL = 7 * 24 * time.Hour
)

// Redis keeps sessions in one hash per vehicle. Keys live under a namespace
// generated per process, so a restarted attendant starts with an empty ledger
// exactly like the in-memory backend.
type Redis struct {
	rds       *redis.Client
	namespace string
}

func NewRedis(rds *redis.Client) (*Redis, error) {
	instance, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ledger namespace: %w", err)
	}
	return &Redis{
		rds:       rds,
		namespace: "parking:" + instance.String(),
	}, nil
}

func (r *Redis) key(id VehicleID) string {
	return r.namespace + ":" + string(id)
}

func (r *Redis) RecordEntry(ctx context.Context, id VehicleID, entry time.Time) error {
	key := r.key(id)
	_, err := r.rds.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, entryField, entry.Format(time.RFC3339Nano))
		pipe.Expire(ctx, key, sessionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save parking session to Redis: %w", err)
	}
	return nil
}

// TakeExit reads and deletes the session inside one MULTI/EXEC, so no entry
// written by another client can land between the read and the delete.
func (r *Redis) TakeExit(ctx context.Context, id VehicleID) (time.Time, error) {
	key := r.key(id)
	var get *redis.StringCmd
	_, err := r.rds.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, key, entryField)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return time.Time{}, fmt.Errorf("failed to take parking session from Redis: %w", err)
	}

	raw, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch parking session from Redis: %w", err)
	}
	entry, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse session entry date time: %w", err)
	}
	return entry, nil
}
