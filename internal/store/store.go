// Package store persists credentials keyed by user id.
//
// Every backend implements DataStore. A missing key is not an error: Get
// returns (nil, nil) so callers can tell "no token yet" apart from a failing
// backend.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"api-client/internal/common/errors"
)

// DataStore is a key/value store for values of type T
type DataStore[T any] interface {
	// Get returns the value stored under key, or nil when there is none.
	Get(ctx context.Context, key string) (*T, error)
	// Store writes value under key, replacing any previous value.
	Store(ctx context.Context, key string, value *T) error
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by the store.
	Clear(ctx context.Context) error
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.ValidationError("store key cannot be empty")
	}
	return nil
}

func marshal[T any](value *T) ([]byte, error) {
	if value == nil {
		return nil, errors.ValidationError("cannot store a nil value")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.InternalError("failed to serialize value", err)
	}
	return data, nil
}

func unmarshal[T any](data []byte) (*T, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, errors.DeserializationError("failed to deserialize stored value", err)
	}
	return &value, nil
}
