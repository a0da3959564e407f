package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"regexp"
	"time"

	"api-client/internal/common/errors"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects the SQL flavour and driver of an SQLStore
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultTableName is the table SQL stores use unless configured otherwise
const DefaultTableName = "oauth_tokens"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite3", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", errors.ConfigError(fmt.Sprintf("unsupported SQL dialect: %s", d))
	}
}

// placeholder returns the n-th (1-based) bind parameter
func (d Dialect) placeholder(n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// OpenDB opens and pings a database for the dialect
func OpenDB(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, errors.ConfigError("database DSN is required")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.ConnectionError("failed to open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to ping database", err)
	}
	return db, nil
}

// SQLStore keeps JSON values in a two-column table keyed by user id
type SQLStore[T any] struct {
	db      *sql.DB
	dialect Dialect
	table   string
	ownsDB  bool
}

// NewSQLStore wraps an open database. Call EnsureSchema before first use
// unless the table is managed elsewhere.
func NewSQLStore[T any](db *sql.DB, dialect Dialect, table string) (*SQLStore[T], error) {
	if db == nil {
		return nil, errors.ConfigError("database handle is required")
	}
	if _, err := dialect.driverName(); err != nil {
		return nil, err
	}
	if table == "" {
		table = DefaultTableName
	}
	if !tableNamePattern.MatchString(table) {
		return nil, errors.ConfigError(fmt.Sprintf("invalid table name: %q", table))
	}

	return &SQLStore[T]{db: db, dialect: dialect, table: table}, nil
}

// EnsureSchema creates the token table if it does not exist
func (s *SQLStore[T]) EnsureSchema(ctx context.Context) error {
	timestampType := "TIMESTAMP"
	if s.dialect == DialectPostgres {
		timestampType = "TIMESTAMPTZ"
	}

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		token_key TEXT PRIMARY KEY,
		token_value TEXT NOT NULL,
		updated_at %s NOT NULL
	)`, s.table, timestampType)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return errors.ConnectionError("failed to create table "+s.table, err)
	}
	return nil
}

func (s *SQLStore[T]) Get(ctx context.Context, key string) (*T, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT token_value FROM %s WHERE token_key = %s",
		s.table, s.dialect.placeholder(1))

	var data string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&data)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.ConnectionError("failed to get token", err)
	}
	return unmarshal[T]([]byte(data))
}

func (s *SQLStore[T]) Store(ctx context.Context, key string, value *T) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := marshal(value)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (token_key, token_value, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT (token_key) DO UPDATE SET token_value = excluded.token_value, updated_at = excluded.updated_at`,
		s.table, s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3))

	if _, err := s.db.ExecContext(ctx, query, key, string(data), time.Now().UTC()); err != nil {
		return errors.ConnectionError("failed to store token", err)
	}
	return nil
}

func (s *SQLStore[T]) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE token_key = %s", s.table, s.dialect.placeholder(1))
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return errors.ConnectionError("failed to delete token", err)
	}
	return nil
}

func (s *SQLStore[T]) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return errors.ConnectionError("failed to clear tokens", err)
	}
	return nil
}

// Close closes the database when the store opened it itself
func (s *SQLStore[T]) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

// Keys returns every stored key in ascending order
func (s *SQLStore[T]) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT token_key FROM %s ORDER BY token_key", s.table))
	if err != nil {
		return nil, errors.ConnectionError("failed to list tokens", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.ConnectionError("failed to scan token key", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
