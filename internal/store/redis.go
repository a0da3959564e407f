package store

import (
	"context"
	stderrors "errors"
	"time"

	"api-client/internal/common/errors"
	"api-client/internal/redis"
)

// DefaultRedisPrefix namespaces token keys in a shared Redis database
const DefaultRedisPrefix = "api-client:token:"

// RedisClient is the subset of redis.Client the store needs
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

var _ RedisClient = (*redis.Client)(nil)

// RedisStore keeps JSON values in Redis under prefix+key, without expiry.
// Tokens outlive their access token because the refresh token stays valid.
type RedisStore[T any] struct {
	client RedisClient
	prefix string
}

// NewRedisStore creates a Redis-backed store. An empty prefix selects DefaultRedisPrefix.
func NewRedisStore[T any](client RedisClient, prefix string) *RedisStore[T] {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore[T]{client: client, prefix: prefix}
}

func (s *RedisStore[T]) Get(ctx context.Context, key string) (*T, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.prefix+key)
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.ConnectionError("failed to get token", err)
	}
	if data == "" {
		return nil, nil
	}
	return unmarshal[T]([]byte(data))
}

func (s *RedisStore[T]) Store(ctx context.Context, key string, value *T) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, data, 0); err != nil {
		return errors.ConnectionError("failed to store token", err)
	}
	return nil
}

func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, s.prefix+key); err != nil {
		return errors.ConnectionError("failed to delete token", err)
	}
	return nil
}

func (s *RedisStore[T]) Clear(ctx context.Context) error {
	if _, err := s.client.DeletePrefix(ctx, s.prefix); err != nil {
		return errors.ConnectionError("failed to clear tokens", err)
	}
	return nil
}
