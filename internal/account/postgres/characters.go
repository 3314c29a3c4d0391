// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tenantry/tenantry/internal/account"
)

// CharacterRepository implements account.CharacterRepository using PostgreSQL.
type CharacterRepository struct {
	pool Pool
}

// NewCharacterRepository creates a new CharacterRepository.
func NewCharacterRepository(pool Pool) *CharacterRepository {
	return &CharacterRepository{pool: pool}
}

// GetByID retrieves a character.
func (r *CharacterRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Character, error) {
	var (
		c        account.Character
		tenantID int64
	)
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT tenant_id, name FROM characters WHERE id = $1
	`, id.String()).Scan(&tenantID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.With("operation", "get character").With("character_id", id.String()).Wrap(err)
	}
	c.ID = id
	c.TenantID = account.TenantID(tenantID)
	return &c, nil
}

// Verify interfaces are satisfied.
var (
	_ account.AccountRepository   = (*AccountRepository)(nil)
	_ account.TenantRepository    = (*TenantRepository)(nil)
	_ account.CharacterRepository = (*CharacterRepository)(nil)
	_ account.Transactor          = (*Transactor)(nil)
)
