package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// redisStore is the subset of pkg/redis.Client the Redis backend needs.
type redisStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	CacheKey(parts ...string) string
}

// Redis stores JSON values under the client's cache namespace.
type Redis struct {
	store redisStore
}

func NewRedis(store redisStore) (*Redis, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	return &Redis{store: store}, nil
}

func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, found, err := r.store.Get(ctx, r.store.CacheKey(key))
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	return r.store.Set(ctx, r.store.CacheKey(key), raw, ttl)
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	namespaced := make([]string, 0, len(keys))
	for _, key := range keys {
		namespaced = append(namespaced, r.store.CacheKey(key))
	}
	return r.store.Del(ctx, namespaced...)
}

func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	_, err := r.store.DeletePrefix(ctx, r.store.CacheKey(prefix))
	return err
}
