// Package db contains the PostgreSQL connection pool and the pgx backed
// implementations of the catalog, supplier record and change log stores.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/supplier-sync/internal/config"
)

const (
	defaultMaxOpenConns   = 10
	defaultConnectTimeout = 10 * time.Second
	defaultConnectRetry   = time.Minute
)

// PoolOption configures NewPool.
type PoolOption func(*poolOptions)

type poolOptions struct {
	maxElapsed time.Duration
}

// WithConnectRetry bounds how long NewPool keeps retrying the initial ping.
// Zero disables retries.
func WithConnectRetry(d time.Duration) PoolOption {
	return func(o *poolOptions) {
		o.maxElapsed = d
	}
}

// NewPool builds a pgx pool from cfg and waits until the database answers a
// ping, retrying with exponential backoff while the server is starting up.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	o := &poolOptions{maxElapsed: defaultConnectRetry}
	for _, opt := range opts {
		opt(o)
	}

	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	poolConfig.MaxConns = defaultMaxOpenConns
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if lifetime := cfg.GetConnMaxLifetime(); lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}
	poolConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	if err := ping(ctx, pool, o.maxElapsed); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connection pool created",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
		"max_conns", poolConfig.MaxConns)
	return pool, nil
}

func ping(ctx context.Context, pool *pgxpool.Pool, maxElapsed time.Duration) error {
	if maxElapsed <= 0 {
		return pool.Ping(ctx)
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			slog.Warn("Database not reachable yet, retrying", "error", err, "retry_in", next)
		}),
	)
	return err
}
