package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps values in process memory. Values never expire; the store
// holds JSON copies so callers cannot mutate what is stored.
type MemoryStore[T any] struct {
	cache *cache.Cache
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func (s *MemoryStore[T]) Get(ctx context.Context, key string) (*T, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, found := s.cache.Get(key)
	if !found {
		return nil, nil
	}
	return unmarshal[T](v.([]byte))
}

func (s *MemoryStore[T]) Store(ctx context.Context, key string, value *T) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := marshal(value)
	if err != nil {
		return err
	}
	s.cache.Set(key, data, cache.NoExpiration)
	return nil
}

func (s *MemoryStore[T]) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore[T]) Clear(ctx context.Context) error {
	s.cache.Flush()
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStore[T]) Len() int {
	return s.cache.ItemCount()
}
