package ps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nickyhof/orpheus/core"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "modernc.org/sqlite"
)

var ErrNotInitialized = errors.New("store not initialized")

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	sqlx.BindDriver("duckdb", sqlx.QUESTION)
}

// Config describes how to reach the backing store.
type Config struct {
	// Driver is one of "sqlite" (default), "duckdb" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is passed to the driver unchanged. For sqlite and duckdb an empty
	// DSN opens an in-memory database.
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	// Transactional wraps each engine operation in one store transaction.
	Transactional bool `yaml:"transactional"`
	// ConnectTimeout keeps retrying the first ping for this long.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// Store is a session on the relational backing store.
type Store struct {
	db            *sqlx.DB
	dialect       Dialect
	transactional bool
}

// IsInitialized returns true if the store holds an open connection pool
func (s *Store) IsInitialized() bool {
	return s != nil && s.db != nil
}

func (s *Store) ensureInitialized() error {
	if !s.IsInitialized() {
		return ErrNotInitialized
	}
	return nil
}

// Open begins a session: it opens the pool, verifies the store answers and
// creates the catalog tables.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dialect == SQLite && dsn == "" {
		dsn = ":memory:"
	}

	db, err := sqlx.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, &core.ConnectionError{Err: err}
	}

	switch {
	case dialect == SQLite:
		// a second connection to an in-memory database is a different database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	store := NewStore(db, dialect, cfg.Transactional)
	if cfg.ConnectTimeout > 0 {
		err = store.WaitUntilReady(ctx, nil, cfg.ConnectTimeout)
	} else {
		err = store.Ping(ctx)
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	if err := store.ensureCatalog(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an already opened handle. The catalog is not created.
func NewStore(db *sqlx.DB, dialect Dialect, transactional bool) *Store {
	return &Store{
		db:            db,
		dialect:       dialect,
		transactional: transactional,
	}
}

func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Transactional() bool {
	return s.transactional
}

// Conn returns an executor bound to the connection pool.
func (s *Store) Conn() *Conn {
	return &Conn{ex: s.db, dialect: s.dialect}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.ensureInitialized(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return &core.ConnectionError{Err: err}
	}
	return nil
}

func (s *Store) Close() error {
	if !s.IsInitialized() {
		return nil
	}
	return s.db.Close()
}

// ParseDialect maps a configured driver name to its dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", &core.BadParametersError{Reason: fmt.Sprintf("unsupported store driver %q", driver)}
	}
}
