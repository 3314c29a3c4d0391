// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tenantry/tenantry/internal/account"
)

const tenantColumns = `id, subdomain, owner_id, active, last_activated_at,
	       last_deactivated_at, created_at, deleted_at`

// TenantRepository implements account.TenantRepository using PostgreSQL.
type TenantRepository struct {
	pool Pool
}

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(pool Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

// Create stores a new tenant and assigns its ID.
func (r *TenantRepository) Create(ctx context.Context, t *account.Tenant) error {
	var id int64
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO tenants (subdomain, owner_id, active, last_activated_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, t.Subdomain, t.OwnerID.String(), t.Active, t.LastActivatedAt, t.CreatedAt).Scan(&id)
	if err != nil {
		return writeError(err, "insert tenant")
	}
	t.ID = account.TenantID(id)
	return nil
}

// GetByID retrieves a non-deleted tenant.
func (r *TenantRepository) GetByID(ctx context.Context, id account.TenantID) (*account.Tenant, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+tenantColumns+`
		FROM tenants
		WHERE id = $1 AND deleted_at IS NULL
	`, int64(id))
	t, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.With("operation", "get tenant").With("tenant_id", int64(id)).Wrap(err)
	}
	return t, nil
}

// ListIDsByOwner returns the IDs of an owner's non-deleted tenants in
// ascending order.
func (r *TenantRepository) ListIDsByOwner(ctx context.Context, ownerID ulid.ULID) ([]account.TenantID, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id FROM tenants
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, ownerID.String())
	if err != nil {
		return nil, oops.With("operation", "list tenants by owner").Wrap(err)
	}
	defer rows.Close()

	var ids []account.TenantID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, oops.With("operation", "scan tenant id").Wrap(err)
		}
		ids = append(ids, account.TenantID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate tenants").Wrap(err)
	}
	return ids, nil
}

// SetActive flips the active flag and stamps the matching timestamp.
func (r *TenantRepository) SetActive(ctx context.Context, id account.TenantID, active bool, at time.Time) (*account.Tenant, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE tenants SET
			active = $2::boolean,
			last_activated_at = CASE WHEN $2::boolean THEN $3::timestamptz ELSE last_activated_at END,
			last_deactivated_at = CASE WHEN $2::boolean THEN last_deactivated_at ELSE $3::timestamptz END
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+tenantColumns,
		int64(id), active, at)
	t, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.With("operation", "set tenant active").With("tenant_id", int64(id)).Wrap(err)
	}
	return t, nil
}

func scanTenant(row pgx.Row) (*account.Tenant, error) {
	var (
		t       account.Tenant
		id      int64
		ownerID string
	)
	if err := row.Scan(
		&id, &t.Subdomain, &ownerID, &t.Active, &t.LastActivatedAt,
		&t.LastDeactivatedAt, &t.CreatedAt, &t.DeletedAt,
	); err != nil {
		return nil, err
	}
	t.ID = account.TenantID(id)
	var err error
	if t.OwnerID, err = parseULID(ownerID, "owner_id"); err != nil {
		return nil, err
	}
	return &t, nil
}
