// Package postgres is the PostgreSQL storage backend. Reference embeddings live in a
// pgvector column; everything else is plain relational tables.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kozaktomas/smart-attendance/internal/config"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
	pingTimeout     = 10 * time.Second

	connMaxLifetime = time.Hour
	connMaxIdleTime = 10 * time.Minute
)

// Pool wraps the database/sql handle and annotates errors of the statements it runs.
type Pool struct {
	db *sql.DB
}

// NewPool opens a connection pool and waits until the server answers. A server that is
// still starting gets a few attempts with a growing pause in between.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	limitConns(db, cfg)

	if err := waitReady(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres not reachable after %d attempts: %w", connectAttempts, err)
	}
	return &Pool{db: db}, nil
}

func limitConns(db *sql.DB, cfg *config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)
}

func waitReady(ctx context.Context, db *sql.DB) error {
	pause := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil || attempt == connectAttempts {
			break
		}
		logger.Warn("database not ready, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
		pause *= 2
	}
	return err
}

// statement names a query by its leading keyword for error messages.
func statement(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "statement"
	}
	return strings.ToLower(fields[0])
}

func (p *Pool) Close() error {
	return p.db.Close()
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres %s: %w", statement(query), err)
	}
	return rows, nil
}

func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres %s: %w", statement(query), err)
	}
	return res, nil
}

// BeginTx starts a transaction. Callers must Rollback or Commit it.
func (p *Pool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("postgres begin: %w", err)
	}
	return tx, nil
}

// Open connects, applies pending migrations and returns the store.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres driver")
	}

	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err = pool.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	store := NewStore(pool)
	if cfg.ReferenceIndexPath != "" {
		store.SetReferenceIndexPath(cfg.ReferenceIndexPath)
	}
	return store, nil
}
