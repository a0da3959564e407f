package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"api-client/internal/common/errors"
)

const fileExtension = ".json"

// DefaultFileStoreDir returns $XDG_CONFIG_HOME/api-client/tokens, falling
// back to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultFileStoreDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "api-client", "tokens")
}

// FileStore writes one JSON file per key into a directory readable only by
// the current user.
type FileStore[T any] struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the directory if needed. An empty dir selects
// DefaultFileStoreDir.
func NewFileStore[T any](dir string) (*FileStore[T], error) {
	if dir == "" {
		dir = DefaultFileStoreDir()
	}
	if dir == "" {
		return nil, errors.ConfigError("could not determine token directory")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.InternalError("failed to create directory "+dir, err)
	}

	return &FileStore[T]{dir: dir}, nil
}

// Dir returns the directory holding the files
func (s *FileStore[T]) Dir() string {
	return s.dir
}

// path maps a key to a file name. Keys are hashed so user ids containing
// path separators cannot escape the directory.
func (s *FileStore[T]) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+fileExtension)
}

func (s *FileStore[T]) Get(ctx context.Context, key string) (*T, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.InternalError("failed to read token file", err)
	}
	return unmarshal[T](data)
}

func (s *FileStore[T]) Store(ctx context.Context, key string, value *T) error {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	// Write to a temp file and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return errors.InternalError("failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.InternalError("failed to set file mode", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.InternalError("failed to write token file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.InternalError("failed to write token file", err)
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return errors.InternalError("failed to write token file", err)
	}
	return nil
}

func (s *FileStore[T]) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return errors.InternalError("failed to delete token file", err)
	}
	return nil
}

func (s *FileStore[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.InternalError("failed to read token directory", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExtension) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return errors.InternalError("failed to delete token file", err)
		}
	}
	return nil
}
