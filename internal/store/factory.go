package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"api-client/internal/common/errors"
	"api-client/internal/crypto"
)

// Type represents the store backend type
type Type string

const (
	TypeMemory   Type = "memory"
	TypeFile     Type = "file"
	TypeRedis    Type = "redis"
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
)

// Config holds store configuration
type Config struct {
	Type Type `json:"type" validate:"required,oneof=memory file redis sqlite postgres"`
	// Path is the directory of a file store
	Path string `json:"path,omitempty"`
	// DSN opens the database of an SQL store when DB is nil
	DSN       string      `json:"dsn,omitempty"`
	DB        *sql.DB     `json:"-"`
	TableName string      `json:"table_name,omitempty"`
	KeyPrefix string      `json:"key_prefix,omitempty"`
	Redis     RedisClient `json:"-"`
	// EncryptionKey enables AES-GCM encryption of stored values when set
	EncryptionKey string `json:"-"`
}

// DefaultConfig returns an in-memory store configuration
func DefaultConfig() Config {
	return Config{Type: TypeMemory}
}

// New creates a store based on configuration. Stores backed by a database the
// factory opened implement io.Closer.
func New[T any](ctx context.Context, config Config) (DataStore[T], error) {
	if config.EncryptionKey == "" {
		return newBackend[T](ctx, config)
	}

	encryptor, err := crypto.NewConfigEncryptor(config.EncryptionKey)
	if err != nil {
		return nil, err
	}
	inner, err := newBackend[string](ctx, config)
	if err != nil {
		return nil, err
	}
	return NewEncryptedStore[T](inner, encryptor), nil
}

func newBackend[T any](ctx context.Context, config Config) (DataStore[T], error) {
	switch config.Type {
	case TypeMemory, "":
		return NewMemoryStore[T](), nil

	case TypeFile:
		return NewFileStore[T](config.Path)

	case TypeRedis:
		if config.Redis == nil {
			return nil, errors.ConfigError("redis client required for redis store")
		}
		return NewRedisStore[T](config.Redis, config.KeyPrefix), nil

	case TypeSQLite, TypePostgres:
		return newSQLBackend[T](ctx, config)

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported store type: %s", config.Type))
	}
}

func newSQLBackend[T any](ctx context.Context, config Config) (DataStore[T], error) {
	dialect := DialectSQLite
	if config.Type == TypePostgres {
		dialect = DialectPostgres
	}

	db := config.DB
	owns := false
	if db == nil {
		var err error
		db, err = OpenDB(ctx, dialect, config.DSN)
		if err != nil {
			return nil, err
		}
		owns = true
	}

	s, err := NewSQLStore[T](db, dialect, config.TableName)
	if err != nil {
		if owns {
			db.Close()
		}
		return nil, err
	}
	s.ownsDB = owns

	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases resources held by a store, if it holds any
func Close[T any](s DataStore[T]) error {
	if closer, ok := s.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
