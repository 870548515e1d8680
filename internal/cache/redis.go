package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "pfa:"

// RedisBackend shares entries between processes. Keys expire in redis a
// little after the logical TTL so stale entries do not pile up.
type RedisBackend struct {
	client *redis.Client
	grace  time.Duration
}

func NewRedis(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client, grace: time.Minute}
}

func NewRedisFromAddr(addr string) *RedisBackend {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr}))
}

func (b *RedisBackend) Get(ctx context.Context, key string) (*Entry, bool, error) {
	raw, err := b.client.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry: %w", err)
	}
	return &e, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	exp := time.Duration(0)
	if ttl > 0 {
		exp = ttl + b.grace
	}
	if err := b.client.Set(ctx, redisPrefix+key, raw, exp).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
