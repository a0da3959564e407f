package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"api-client/internal/common/errors"
	"api-client/internal/crypto"
	"api-client/internal/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    *int64 `json:"expires_in,omitempty"`
}

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func newTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSQLStore[T any](t *testing.T) *SQLStore[T] {
	s, err := NewSQLStore[T](newTestDB(t), DialectSQLite, "")
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func testStores(t *testing.T) map[string]DataStore[testToken] {
	redisClient, _ := newTestRedis(t)

	fileStore, err := NewFileStore[testToken](t.TempDir())
	require.NoError(t, err)

	encryptor, err := crypto.NewConfigEncryptor("test-passphrase")
	require.NoError(t, err)

	return map[string]DataStore[testToken]{
		"memory":    NewMemoryStore[testToken](),
		"file":      fileStore,
		"redis":     NewRedisStore[testToken](redisClient, ""),
		"sqlite":    newTestSQLStore[testToken](t),
		"encrypted": NewEncryptedStore[testToken](NewMemoryStore[string](), encryptor),
	}
}

func TestDataStore_Contract(t *testing.T) {
	ctx := context.Background()
	expiresIn := int64(3600)

	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("missing key returns nil without error", func(t *testing.T) {
				got, err := s.Get(ctx, "nobody")
				require.NoError(t, err)
				assert.Nil(t, got)
			})

			t.Run("store then get", func(t *testing.T) {
				want := &testToken{AccessToken: "at", RefreshToken: "rt", ExpiresIn: &expiresIn}
				require.NoError(t, s.Store(ctx, "user-1", want))

				got, err := s.Get(ctx, "user-1")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, want, got)
			})

			t.Run("store overwrites", func(t *testing.T) {
				require.NoError(t, s.Store(ctx, "user-1", &testToken{AccessToken: "new"}))

				got, err := s.Get(ctx, "user-1")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, "new", got.AccessToken)
				assert.Empty(t, got.RefreshToken)
			})

			t.Run("delete", func(t *testing.T) {
				require.NoError(t, s.Store(ctx, "user-2", &testToken{AccessToken: "x"}))
				require.NoError(t, s.Delete(ctx, "user-2"))

				got, err := s.Get(ctx, "user-2")
				require.NoError(t, err)
				assert.Nil(t, got)

				assert.NoError(t, s.Delete(ctx, "user-2"), "deleting a missing key succeeds")
			})

			t.Run("clear", func(t *testing.T) {
				require.NoError(t, s.Store(ctx, "a", &testToken{AccessToken: "a"}))
				require.NoError(t, s.Store(ctx, "b", &testToken{AccessToken: "b"}))
				require.NoError(t, s.Clear(ctx))

				for _, key := range []string{"a", "b", "user-1"} {
					got, err := s.Get(ctx, key)
					require.NoError(t, err)
					assert.Nil(t, got, key)
				}
			})

			t.Run("empty key", func(t *testing.T) {
				_, err := s.Get(ctx, " ")
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
			})

			t.Run("nil value", func(t *testing.T) {
				err := s.Store(ctx, "user-3", nil)
				assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
			})
		})
	}
}

func TestMemoryStore_StoresCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[testToken]()

	token := &testToken{AccessToken: "original"}
	require.NoError(t, s.Store(ctx, "u", token))
	token.AccessToken = "mutated"

	got, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "original", got.AccessToken)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore[testToken]()
	assert.ErrorIs(t, s.Store(ctx, "u", &testToken{AccessToken: "x"}), context.Canceled)
	assert.Equal(t, 0, s.Len())
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("permissions", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "tokens")
		s, err := NewFileStore[testToken](dir)
		require.NoError(t, err)
		require.NoError(t, s.Store(ctx, "user", &testToken{AccessToken: "x"}))

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)

		fileInfo, err := entries[0].Info()
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), fileInfo.Mode().Perm())
	})

	t.Run("keys cannot escape the directory", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore[testToken](dir)
		require.NoError(t, err)
		require.NoError(t, s.Store(ctx, "../../etc/passwd", &testToken{AccessToken: "x"}))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))
	})

	t.Run("corrupt file", func(t *testing.T) {
		s, err := NewFileStore[testToken](t.TempDir())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(s.path("user"), []byte("{not json"), 0600))

		_, err = s.Get(ctx, "user")
		assert.True(t, errors.IsType(err, errors.ErrTypeDeserialization))
	})

	t.Run("filesystem failures are internal errors", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStore[testToken](dir)
		require.NoError(t, err)

		// A directory where the token file should be cannot be read or replaced.
		require.NoError(t, os.Mkdir(s.path("user"), 0700))

		_, err = s.Get(ctx, "user")
		assert.True(t, errors.IsType(err, errors.ErrTypeInternal), "got %v", err)

		err = s.Store(ctx, "user", &testToken{AccessToken: "x"})
		assert.True(t, errors.IsType(err, errors.ErrTypeInternal), "got %v", err)

		blocker := filepath.Join(dir, "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0600))
		_, err = NewFileStore[testToken](filepath.Join(blocker, "tokens"))
		assert.True(t, errors.IsType(err, errors.ErrTypeInternal), "got %v", err)
	})

	t.Run("default dir follows XDG_CONFIG_HOME", func(t *testing.T) {
		configHome := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", configHome)

		assert.Equal(t, filepath.Join(configHome, "api-client", "tokens"), DefaultFileStoreDir())

		s, err := NewFileStore[testToken]("")
		require.NoError(t, err)
		assert.Equal(t, DefaultFileStoreDir(), s.Dir())
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestRedis(t)

	s := NewRedisStore[testToken](client, "tokens:")
	require.NoError(t, s.Store(ctx, "user", &testToken{AccessToken: "x"}))

	t.Run("keys are prefixed and persistent", func(t *testing.T) {
		assert.True(t, mr.Exists("tokens:user"))
		assert.Equal(t, int64(0), int64(mr.TTL("tokens:user")))
	})

	t.Run("clear leaves foreign keys alone", func(t *testing.T) {
		require.NoError(t, mr.Set("other:key", "v"))
		require.NoError(t, s.Clear(ctx))

		assert.False(t, mr.Exists("tokens:user"))
		assert.True(t, mr.Exists("other:key"))
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr.SetError("boom")
		defer mr.SetError("")

		_, err := s.Get(ctx, "user")
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection), "got %v", err)
	})
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid table name", func(t *testing.T) {
		_, err := NewSQLStore[testToken](newTestDB(t), DialectSQLite, "tokens; DROP TABLE x")
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("unsupported dialect", func(t *testing.T) {
		_, err := NewSQLStore[testToken](newTestDB(t), Dialect("oracle"), "")
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("nil db", func(t *testing.T) {
		_, err := NewSQLStore[testToken](nil, DialectSQLite, "")
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("keys", func(t *testing.T) {
		s := newTestSQLStore[testToken](t)
		require.NoError(t, s.Store(ctx, "b", &testToken{AccessToken: "b"}))
		require.NoError(t, s.Store(ctx, "a", &testToken{AccessToken: "a"}))
		require.NoError(t, s.Store(ctx, "a", &testToken{AccessToken: "a2"}))

		keys, err := s.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, keys)
	})

	t.Run("schema is idempotent", func(t *testing.T) {
		s := newTestSQLStore[testToken](t)
		assert.NoError(t, s.EnsureSchema(ctx))
	})

	t.Run("closed database is a connection error", func(t *testing.T) {
		db := newTestDB(t)
		s, err := NewSQLStore[testToken](db, DialectSQLite, "")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		_, err = s.Get(ctx, "user")
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection), "got %v", err)
		assert.True(t, errors.IsType(s.EnsureSchema(ctx), errors.ErrTypeConnection))
	})

	t.Run("placeholders", func(t *testing.T) {
		assert.Equal(t, "?", DialectSQLite.placeholder(2))
		assert.Equal(t, "$2", DialectPostgres.placeholder(2))
	})
}

func TestEncryptedStore(t *testing.T) {
	ctx := context.Background()

	encryptor, err := crypto.NewConfigEncryptor("secret")
	require.NoError(t, err)

	inner := NewMemoryStore[string]()
	s := NewEncryptedStore[testToken](inner, encryptor)
	require.NoError(t, s.Store(ctx, "user", &testToken{AccessToken: "plain-access-token"}))

	raw, err := inner.Get(ctx, "user")
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.NotContains(t, *raw, "plain-access-token")

	t.Run("nil value", func(t *testing.T) {
		err := s.Store(ctx, "user", nil)
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation), "got %v", err)

		stored, err := s.Get(ctx, "user")
		require.NoError(t, err)
		assert.Equal(t, "plain-access-token", stored.AccessToken)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		other, err := crypto.NewConfigEncryptor("other")
		require.NoError(t, err)

		_, err = NewEncryptedStore[testToken](inner, other).Get(ctx, "user")
		assert.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("memory is the default", func(t *testing.T) {
		s, err := New[testToken](ctx, Config{})
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore[testToken]{}, s)
	})

	t.Run("file", func(t *testing.T) {
		s, err := New[testToken](ctx, Config{Type: TypeFile, Path: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &FileStore[testToken]{}, s)
	})

	t.Run("redis requires client", func(t *testing.T) {
		_, err := New[testToken](ctx, Config{Type: TypeRedis})
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("redis", func(t *testing.T) {
		client, _ := newTestRedis(t)
		s, err := New[testToken](ctx, Config{Type: TypeRedis, Redis: client})
		require.NoError(t, err)
		assert.IsType(t, &RedisStore[testToken]{}, s)
	})

	t.Run("sqlite from DSN", func(t *testing.T) {
		dsn := filepath.Join(t.TempDir(), "tokens.db")
		s, err := New[testToken](ctx, Config{Type: TypeSQLite, DSN: dsn})
		require.NoError(t, err)
		defer Close(s)

		require.NoError(t, s.Store(ctx, "user", &testToken{AccessToken: "x"}))
		got, err := s.Get(ctx, "user")
		require.NoError(t, err)
		assert.Equal(t, "x", got.AccessToken)
	})

	t.Run("sqlite requires DSN", func(t *testing.T) {
		_, err := New[testToken](ctx, Config{Type: TypeSQLite})
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("encrypted", func(t *testing.T) {
		s, err := New[testToken](ctx, Config{Type: TypeMemory, EncryptionKey: "k"})
		require.NoError(t, err)
		assert.IsType(t, &EncryptedStore[testToken]{}, s)
		assert.NoError(t, Close(s))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := New[testToken](ctx, Config{Type: "etcd"})
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})
}
