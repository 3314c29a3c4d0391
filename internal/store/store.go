// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

// Package store opens the PostgreSQL pool and manages the schema.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Options tune the connection pool.
type Options struct {
	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32
	// ConnectRetries is how many times the initial ping is retried.
	ConnectRetries uint64
	// ConnectBackoff is the first delay between ping attempts; it doubles.
	ConnectBackoff time.Duration
	Logger         *slog.Logger
}

// DefaultOptions returns pool options suitable for a service that may start
// before its database is ready.
func DefaultOptions() Options {
	return Options{
		ConnectRetries: 5,
		ConnectBackoff: 250 * time.Millisecond,
		Logger:         slog.Default(),
	}
}

// Open creates a connection pool and waits until the database answers a ping.
func Open(ctx context.Context, dsn string, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG_INVALID").With("operation", "parse dsn").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConnectBackoff <= 0 {
		opts.ConnectBackoff = DefaultOptions().ConnectBackoff
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(opts.ConnectRetries, retry.NewExponential(opts.ConnectBackoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			opts.Logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"host", cfg.ConnConfig.Host,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}
