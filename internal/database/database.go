// Package database centralises sqlx connection helpers.  The driver is
// go-sql-driver/mysql, which also works with MariaDB and managed MySQL
// services that speak the same wire protocol.
//
// Public entry points:
//
//	Open(ctx, dsn, opts)             – control-plane and admin pools from a DSN.
//	OpenConfig(ctx, cfg, opts)       – tenant pools from a typed *mysql.Config.
//	ConnParams.Config / MigrationURL – the two renderings of one tenant target.
//
// Every helper Pings the database before returning so callers can fail fast
// during bootstrap, and so a tenant pool is never cached without a verified
// connection.  Callers must Close() the returned *sqlx.DB when no longer
// needed.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Options tunes one pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// DefaultOptions suits process-wide pools such as the control plane: 15
// open, 5 idle, 30-minute connection lifetime.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// TenantOptions is the per-tenant pool shape: 20 base connections plus 10
// overflow, recycled hourly.
func TenantOptions() Options {
	return Options{
		MaxOpenConns:    30,
		MaxIdleConns:    20,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// Open parses a go-sql-driver DSN and returns a verified pool.
func Open(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	return OpenConfig(ctx, cfg, opts)
}

// OpenConfig builds a connector from cfg so credentials never pass through
// string formatting, then applies opts and pings.
func OpenConfig(ctx context.Context, cfg *mysql.Config, opts Options) (*sqlx.DB, error) {
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sqlx.NewDb(sql.OpenDB(conn), "mysql")
	apply(db, opts)

	if err := ping(ctx, db, opts.PingTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func apply(db *sqlx.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
}

func ping(ctx context.Context, db *sqlx.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
