// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

// Package postgres implements the account repositories on PostgreSQL.
//
// Errors returned here carry operation context but never an oops code, so
// the kind chosen by the account services is the one callers see.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tenantry/tenantry/internal/account"
)

// Pool is the subset of *pgxpool.Pool the repositories use. pgxmock's pool
// satisfies it as well.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier abstracts query execution for both the pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// conn picks the transaction stored in ctx by Transactor, or the pool.
func conn(ctx context.Context, pool Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(pgx.Tx)
	return ok
}

// writeError maps unique violations onto account.ErrDuplicate.
func writeError(err error, operation string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.With("operation", operation).
			With("constraint", pgErr.ConstraintName).
			Wrap(account.ErrDuplicate)
	}
	return oops.With("operation", operation).Wrap(err)
}

// retryable reports whether a transaction failed in a way that succeeds when
// simply run again.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseULID(s, field string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.With("operation", "parse "+field).With(field, s).Wrap(err)
	}
	return id, nil
}
