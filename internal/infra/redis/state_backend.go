package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateBackend stores attempt state in Redis. Writes and Touch restart the
// TTL, so sessions abandoned for longer than the TTL expire on their own.
type StateBackend struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewStateBackend(client *redis.Client, ttl time.Duration) *StateBackend {
	return &StateBackend{client: client, ttl: ttl, prefix: "quiz:"}
}

func (b *StateBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Get(ctx, b.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *StateBackend) Set(ctx context.Context, key string, value []byte) error {
	return b.client.Set(ctx, b.key(key), value, b.ttl).Err()
}

// Touch restarts the TTL of every key in one pipeline. Missing keys are skipped.
func (b *StateBackend) Touch(ctx context.Context, keys ...string) error {
	if len(keys) == 0 || b.ttl <= 0 {
		return nil
	}
	pipe := b.client.Pipeline()
	for _, key := range keys {
		pipe.Expire(ctx, b.key(key), b.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (b *StateBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = b.key(key)
	}
	return b.client.Del(ctx, full...).Err()
}

func (b *StateBackend) key(key string) string {
	return b.prefix + key
}
