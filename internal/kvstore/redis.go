package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis stores keys under a namespace prefix so several deployments can share an instance.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedisWithURL connects using a redis:// URL.
func NewRedisWithURL(url, namespace string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	return NewRedis(redis.NewClient(opts), namespace), nil
}

func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.namespace+key, value, 0).Err(); err != nil {
		if strings.HasPrefix(err.Error(), "OOM") {
			return fmt.Errorf("redis set %s: %w", key, ErrStorageFull)
		}
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.namespace+key).Err(); err != nil {
		return fmt.Errorf("redis remove %s: %w", key, err)
	}

	return nil
}

func (r *Redis) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	iter := r.client.Scan(ctx, 0, r.namespace+prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()

		value, err := r.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			// Removed between SCAN and GET.
			continue
		}
		if err != nil {
			return fmt.Errorf("redis iterate get %s: %w", fullKey, err)
		}

		if err := fn(strings.TrimPrefix(fullKey, r.namespace), value); err != nil {
			return err
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis iterate %s: %w", prefix, err)
	}

	return nil
}
