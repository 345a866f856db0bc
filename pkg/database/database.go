// Package database provides PostgreSQL and SQLite connection management with lifecycle coordination.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JaimeStill/lectern/pkg/lifecycle"
	"github.com/JaimeStill/lectern/pkg/repository"
)

// System manages database connections and lifecycle coordination.
type System interface {
	// Connection returns the database/sql handle shared by all repositories.
	Connection() *sql.DB
	// Dialect reports the SQL dialect of the configured driver.
	Dialect() repository.Dialect
	// Pool returns the native pgx pool, or ErrNoPool for sqlite.
	Pool() (*pgxpool.Pool, error)
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	pool        *pgxpool.Pool
	dialect     repository.Dialect
	logger      *slog.Logger
	connTimeout time.Duration
}

// New creates a database system with the given configuration.
// The pool is configured eagerly but no connection is verified until Start is called.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	d := &database{
		logger:      logger.With("system", "database", "driver", cfg.Driver),
		connTimeout: cfg.ConnTimeoutDuration(),
	}

	switch cfg.Driver {
	case DriverSQLite:
		db, err := sql.Open("sqlite", cfg.Dsn())
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(int(cfg.MaxConns))
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTimeDuration())
		d.conn = db
		d.dialect = repository.SQLite
	default:
		pc, err := pgxpool.ParseConfig(cfg.Dsn())
		if err != nil {
			return nil, fmt.Errorf("parse database config: %w", err)
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.ConnMaxLifetimeDuration()
		pc.MaxConnIdleTime = cfg.ConnMaxIdleTimeDuration()

		pool, err := pgxpool.NewWithConfig(context.Background(), pc)
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}
		d.pool = pool
		d.conn = stdlib.OpenDBFromPool(pool)
		d.dialect = repository.Postgres
	}

	return d, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Dialect() repository.Dialect {
	return d.dialect
}

func (d *database) Pool() (*pgxpool.Pool, error) {
	if d.pool == nil {
		return nil, ErrNoPool
	}
	return d.pool, nil
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")

	lc.OnStartup(func() {
		pingCtx, cancel := context.WithTimeout(lc.Context(), d.connTimeout)
		defer cancel()

		if err := d.conn.PingContext(pingCtx); err != nil {
			d.logger.Error("database ping failed", "error", err)
			return
		}

		d.logger.Info("database connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.logger.Info("closing database connection")

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
		}
		if d.pool != nil {
			d.pool.Close()
		}

		d.logger.Info("database connection closed")
	})

	return nil
}
