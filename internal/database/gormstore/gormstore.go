// Package gormstore implements database.Store with gorm for the embedded SQLite database
// and for MySQL.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

var log = slog.Default().With("component", "gormstore")

// Store is a gorm-backed database.Store.
type Store struct {
	db      *gorm.DB
	dialect string

	index     *database.ReferenceIndex
	indexPath string
	indexMu   sync.RWMutex
}

func newID() string {
	return uuid.NewString()
}

// gormLogger logs slow queries and errors, or every statement in debug mode. Lookups
// that find nothing are routine here and stay quiet.
func gormLogger(w logger.Writer, debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(w, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  true,
	})
}

// MySQLDSN normalizes a MySQL DSN so timestamps scan into time.Time.
func MySQLDSN(dsn string) (string, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg.FormatDSN(), nil
}

// Open connects to the configured dialect and migrates the schema.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	var (
		dialector gorm.Dialector
		dialect   string
	)

	switch cfg.Driver {
	case DriverMySQL:
		dsn, err := MySQLDSN(cfg.URL)
		if err != nil {
			return nil, err
		}
		dialector = mysql.Open(dsn)
		dialect = DriverMySQL
	case DriverSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			path = "attendance.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create SQLite directory: %w", err)
			}
		}
		dialector = sqlite.Open(path + "?_busy_timeout=5000")
		dialect = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger(stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags), cfg.Debug),
		TranslateError: true,
	})
	if err != nil {
		log.Error("failed to open database", "dialect", dialect, "error", err)
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic DB object: %w", err)
	}
	if dialect == DriverSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY inside transactions.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	store := &Store{db: db, dialect: dialect, indexPath: cfg.ReferenceIndexPath}
	if err := store.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	start := time.Now()
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to migrate %s schema: %w", s.dialect, err)
	}
	log.Debug("database migration completed", "dialect", s.dialect, "duration", time.Since(start))
	return nil
}

// Dialect returns "sqlite" or "mysql".
func (s *Store) Dialect() string {
	return s.dialect
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get generic DB object: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// RebuildReferenceIndex rebuilds the HNSW graph from every stored reference embedding.
func (s *Store) RebuildReferenceIndex(ctx context.Context) error {
	refs, err := s.ListReferenceEmbeddings(ctx, "")
	if err != nil {
		return fmt.Errorf("load reference embeddings: %w", err)
	}

	idx := database.NewReferenceIndex()
	idx.Build(refs)

	s.indexMu.Lock()
	if s.indexPath != "" {
		idx.SetPath(s.indexPath)
	}
	s.index = idx
	s.indexMu.Unlock()
	return nil
}

// ReferenceIndex returns the current graph, nil if not built.
func (s *Store) ReferenceIndex() *database.ReferenceIndex {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	return s.index
}

// SaveReferenceIndex saves the graph to disk if a path is configured.
func (s *Store) SaveReferenceIndex() error {
	idx := s.ReferenceIndex()
	if idx == nil {
		return nil
	}
	if err := idx.Save(); err != nil {
		return fmt.Errorf("save reference index: %w", err)
	}
	return nil
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

var (
	_ database.Store            = (*Store)(nil)
	_ database.ReferenceIndexer = (*Store)(nil)
)
