// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-triage-backend/internal/domain"
)

type openOptions struct {
	maxConns  int
	createDir bool
	tracing   bool
	quiet     bool
}

// Option tunes OpenSQLite.
type Option func(*openOptions)

// WithMaxConns caps the connection pool. The CLI uses 1 so that
// whole-collection rewrites of local state never interleave.
func WithMaxConns(n int) Option {
	return func(o *openOptions) {
		if n > 0 {
			o.maxConns = n
		}
	}
}

// WithCreateDir creates the parent directory (0700) when it is missing
// instead of failing.
func WithCreateDir() Option { return func(o *openOptions) { o.createDir = true } }

// WithoutTracing skips the OpenTelemetry plugin.
func WithoutTracing() Option { return func(o *openOptions) { o.tracing = false } }

// WithQuietLogger silences GORM's own logger.
func WithQuietLogger() Option { return func(o *openOptions) { o.quiet = true } }

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs, and
// installs the OpenTelemetry tracing plugin so queries show up as child spans
// of the calling service method.
func OpenSQLite(path string, opts ...Option) (*gorm.DB, error) {
	o := openOptions{maxConns: 10, tracing: true}
	for _, fn := range opts {
		fn(&o)
	}

	if dir := filepath.Dir(path); dir != "." {
		if o.createDir {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		} else if _, err := os.Stat(dir); err != nil {
			// sqlite reports a missing directory as "out of memory (14)" on some platforms.
			return nil, err
		}
	}

	cfg := &gorm.Config{}
	if o.quiet {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, err
	}
	if o.tracing {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, err
		}
	}

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("%s %w", p, err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(o.maxConns)
		sqlDB.SetMaxIdleConns(o.maxConns)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// AutoMigrate creates or updates every table the server and the client use.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.ChatSession{},
		&domain.Idempotency{},
		&domain.LocalState{},
	)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
