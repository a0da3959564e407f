package store

import (
	"context"

	"api-client/internal/common/errors"
	"api-client/internal/crypto"
)

// EncryptedStore encrypts values before handing them to an underlying
// store of ciphertext strings.
type EncryptedStore[T any] struct {
	inner     DataStore[string]
	encryptor *crypto.ConfigEncryptor
}

// NewEncryptedStore wraps inner
func NewEncryptedStore[T any](inner DataStore[string], encryptor *crypto.ConfigEncryptor) *EncryptedStore[T] {
	return &EncryptedStore[T]{inner: inner, encryptor: encryptor}
}

func (s *EncryptedStore[T]) Get(ctx context.Context, key string) (*T, error) {
	ciphertext, err := s.inner.Get(ctx, key)
	if err != nil || ciphertext == nil {
		return nil, err
	}

	var value T
	if err := s.encryptor.DecryptJSON(*ciphertext, &value); err != nil {
		return nil, err
	}
	return &value, nil
}

func (s *EncryptedStore[T]) Store(ctx context.Context, key string, value *T) error {
	if value == nil {
		return errors.ValidationError("cannot store a nil value")
	}

	ciphertext, err := s.encryptor.EncryptJSON(value)
	if err != nil {
		return err
	}
	return s.inner.Store(ctx, key, &ciphertext)
}

func (s *EncryptedStore[T]) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *EncryptedStore[T]) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}

// Close closes the underlying store when it holds resources
func (s *EncryptedStore[T]) Close() error {
	return Close[string](s.inner)
}
