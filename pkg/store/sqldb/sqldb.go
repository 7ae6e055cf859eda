// Package sqldb opens pooled SQL connections for keyset repositories.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver

	"github.com/nimburion/keyset/pkg/observability/logger"
	"github.com/nimburion/keyset/pkg/repository"
)

// Config holds SQL connection configuration
type Config struct {
	// Driver is "postgres" or "mysql".
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// DB is a pooled connection that satisfies repository.SQLExecutor and knows
// its dialect.
type DB struct {
	db      *sql.DB
	dialect repository.Dialect
	logger  logger.Logger
	config  Config
}

var (
	_ repository.SQLExecutor  = (*DB)(nil)
	_ repository.ScanExecutor = (*DB)(nil)
)

// Open opens and pings a database.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if _, err := repository.ParseDialect(driver); err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := New(db, cfg, log)
	d.logger.Info("SQL connection established",
		"dialect", d.dialect.Name(),
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
	)
	return d, nil
}

// New wraps an already opened *sql.DB. The dialect is taken from the
// driver.
func New(db *sql.DB, cfg Config, log logger.Logger) *DB {
	if log == nil {
		log = logger.NewNop()
	}
	return &DB{
		db:      db,
		dialect: repository.DialectFor(db.Driver()),
		logger:  log,
		config:  cfg,
	}
}

// DB returns the underlying *sql.DB for direct access when needed
func (d *DB) DB() *sql.DB {
	return d.db
}

// Dialect returns the placeholder and quoting style of the connection.
func (d *DB) Dialect() repository.Dialect {
	return d.dialect
}

// RepositoryOptions returns the options binding a keyset repository to this
// connection.
func (d *DB) RepositoryOptions() []repository.KeysetOption {
	return []repository.KeysetOption{
		repository.WithDialect(d.dialect),
		repository.WithRepositoryLogger(d.logger),
	}
}

// QueryContext implements repository.SQLExecutor, applying the configured
// query timeout when ctx has no deadline. The timeout context is released
// when the timeout fires or ctx ends, whichever comes first; ScanContext
// releases it as soon as the rows are read.
func (d *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	queryCtx, cancel := d.withQueryTimeout(ctx)
	rows, err := d.db.QueryContext(queryCtx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	context.AfterFunc(ctx, cancel)
	return rows, nil
}

// ScanContext implements repository.ScanExecutor. It runs query under the
// query timeout, hands the rows to scan and closes them before returning.
func (d *DB) ScanContext(ctx context.Context, scan func(*sql.Rows) error, query string, args ...interface{}) error {
	queryCtx, cancel := d.withQueryTimeout(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(queryCtx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	if err := scan(rows); err != nil {
		return err
	}
	return rows.Close()
}

// HealthCheck verifies the database connection is healthy with a timeout
func (d *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.db.PingContext(ctx); err != nil {
		d.logger.Error("SQL health check failed", "error", err)
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close gracefully closes the database connection
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		d.logger.Error("failed to close SQL connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	d.logger.Info("SQL connection closed")
	return nil
}

func (d *DB) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.config.QueryTimeout)
}
