package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

const defaultWriteAttempts = 3

// DB is the part of *sql.DB the store relies on.
type DB interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
	Close() error
}

type Config struct {
	Driver Dialect
	DSN    string
	// MaxWriteAttempts bounds AddNote retries. Zero means 3.
	MaxWriteAttempts int
}

type storeHooks struct {
	beginTx func(ctx context.Context, db DB) (*sql.Tx, error)
}

// Store persists notes and their categories. It is safe for concurrent use;
// every operation is its own unit of work and no connection is held between calls.
type Store struct {
	mu     sync.RWMutex
	db     DB
	cfg    Config
	open   func(ctx context.Context) (DB, error)
	reopen singleflight.Group
	log    *zap.Logger
	hooks  storeHooks
}

func Open(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	switch cfg.Driver {
	case DialectPostgres, DialectSQLite:
	default:
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("unsupported driver %q", cfg.Driver)}
	}
	if cfg.MaxWriteAttempts <= 0 {
		cfg.MaxWriteAttempts = defaultWriteAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{
		cfg: cfg,
		log: log,
		open: func(ctx context.Context) (DB, error) {
			return openDB(ctx, cfg)
		},
	}

	db, err := s.open(ctx)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	s.db = db
	return s, nil
}

func openDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if cfg.Driver == DialectSQLite {
		// one connection: keeps pragmas and :memory: databases stable
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if cfg.Driver == DialectSQLite {
		for _, p := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, p); err != nil {
				db.Close()
				return nil, fmt.Errorf("pragma %q: %w", p, err)
			}
		}
	}

	if err := migrate(ctx, db, cfg.Driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *Store) conn() DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func (s *Store) q(query string) string {
	return rebind(s.cfg.Driver, query)
}

// VerifyConnection runs a trivial read against the current connection.
func (s *Store) VerifyConnection(ctx context.Context) bool {
	var one int
	if err := s.conn().QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		s.log.Warn("connection probe failed", zap.Error(err))
		return false
	}
	return true
}

// Reconnect replaces the connection. Concurrent callers share a single attempt.
func (s *Store) Reconnect(ctx context.Context) error {
	_, err, shared := s.reopen.Do("reconnect", func() (any, error) {
		db, err := s.open(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		old := s.db
		s.db = db
		s.mu.Unlock()
		if old != nil {
			_ = old.Close()
		}
		return nil, nil
	})
	if err != nil {
		s.log.Error("reconnect failed", zap.Error(err))
		return &StoreError{Op: "reconnect", Err: err}
	}
	s.log.Info("store reconnected", zap.Bool("shared", shared))
	return nil
}

func (s *Store) Close() error {
	return s.conn().Close()
}

func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	db := s.conn()
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, db)
	}
	return db.BeginTx(ctx, nil)
}

// withTx commits when fn succeeds and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
