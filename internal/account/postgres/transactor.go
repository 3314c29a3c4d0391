// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Default retry settings for serialization failures and deadlocks.
const (
	DefaultTxRetries   = 3
	DefaultTxBaseDelay = 20 * time.Millisecond
)

// Transactor implements account.Transactor. It stores the active pgx.Tx in
// context so repository calls made with that context join the transaction.
// Transactions that fail with a serialization failure or deadlock are run
// again from the start.
type Transactor struct {
	pool      Pool
	retries   uint64
	baseDelay time.Duration
}

// NewTransactor creates a Transactor with the default retry settings.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool, retries: DefaultTxRetries, baseDelay: DefaultTxBaseDelay}
}

// WithRetries returns a copy of t using the given retry settings.
func (t *Transactor) WithRetries(retries uint64, baseDelay time.Duration) *Transactor {
	c := *t
	c.retries = retries
	c.baseDelay = baseDelay
	return &c
}

// InTransaction runs fn in a transaction, committing if fn returns nil.
// A call nested inside another InTransaction joins the outer transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}
	backoff := retry.WithMaxRetries(t.retries, retry.NewExponential(t.baseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := t.once(ctx, fn)
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (t *Transactor) once(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return oops.With("operation", "begin transaction").Wrap(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.With("operation", "commit transaction").Wrap(err)
	}
	return nil
}
