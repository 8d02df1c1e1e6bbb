package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces ledger keys, e.g. dedup:reminder:42.
const redisKeyPrefix = "dedup:reminder:"

// RedisLedger remembers delivered reminder ids in Redis so several clients
// of the same user share one delivery record. Keys expire after the
// retention window.
type RedisLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLedger connects to addr and checks the connection.
func NewRedisLedger(ctx context.Context, addr string, db int, ttl time.Duration) (*RedisLedger, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", addr, err)
	}

	return &RedisLedger{rdb: rdb, ttl: ttl}, nil
}

// Claim returns true only for the first claim of id within the TTL.
func (l *RedisLedger) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, redisKeyPrefix+id, 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", id, err)
	}
	return ok, nil
}

// Reset deletes every ledger key.
func (l *RedisLedger) Reset(ctx context.Context) error {
	var keys []string
	iter := l.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s*: %w", redisKeyPrefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := l.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (l *RedisLedger) Close() error {
	return l.rdb.Close()
}
