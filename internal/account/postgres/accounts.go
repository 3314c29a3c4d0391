// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tenantry/tenantry/internal/account"
)

const accountColumns = `a.id, a.role, a.username, a.password_hash, a.email, a.display_name,
	       a.invite_token, a.tenant_id, a.login_key, a.failed_attempts, a.locked_until,
	       a.created_at, a.updated_at, a.deleted_at,
	       ARRAY(SELECT ac.character_id FROM account_characters ac
	             WHERE ac.account_id = a.id ORDER BY ac.character_id) AS linked_characters`

// AccountRepository implements account.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool Pool
	tx   *Transactor
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool Pool) *AccountRepository {
	return &AccountRepository{pool: pool, tx: NewTransactor(pool)}
}

// Create stores a new account and its character links in one transaction.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	if len(a.LinkedCharacters) == 0 {
		return r.insert(ctx, a)
	}
	return r.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := r.insert(ctx, a); err != nil {
			return err
		}
		for _, charID := range a.LinkedCharacters {
			_, err := conn(ctx, r.pool).Exec(ctx, `
				INSERT INTO account_characters (account_id, character_id)
				VALUES ($1, $2)
			`, a.ID.String(), charID.String())
			if err != nil {
				return writeError(err, "link character")
			}
		}
		return nil
	})
}

func (r *AccountRepository) insert(ctx context.Context, a *account.Account) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO accounts (
			id, role, username, password_hash, email, display_name,
			invite_token, tenant_id, login_key, failed_attempts, locked_until,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID.String(),
		string(a.Role),
		nullIfEmpty(a.Username),
		nullIfEmpty(a.PasswordHash),
		a.Email,
		nullIfEmpty(a.DisplayName),
		a.InviteToken,
		tenantParam(a.TenantID),
		a.LoginKey,
		a.FailedAttempts,
		a.LockedUntil,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return writeError(err, "insert account")
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID, scope account.ReadScope) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1`
	if scope == account.ActiveOnly {
		query += ` AND a.deleted_at IS NULL`
	}
	return r.getOne(ctx, "get account by id", query, id.String())
}

// GetForUpdate retrieves an active account and locks its row.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	return r.getOne(ctx, "lock account",
		`SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1 AND a.deleted_at IS NULL FOR UPDATE`,
		id.String())
}

// GetByLoginKey retrieves an active account by composite identifier
// (case-insensitive).
func (r *AccountRepository) GetByLoginKey(ctx context.Context, key string) (*account.Account, error) {
	return r.getOne(ctx, "get account by login key",
		`SELECT `+accountColumns+` FROM accounts a WHERE LOWER(a.login_key) = LOWER($1) AND a.deleted_at IS NULL`,
		key)
}

// GetByInviteToken retrieves an active transient account by invite token.
func (r *AccountRepository) GetByInviteToken(ctx context.Context, token string) (*account.Account, error) {
	return r.getOne(ctx, "get account by invite token",
		`SELECT `+accountColumns+` FROM accounts a
		 WHERE a.invite_token = $1 AND a.role = 'transient' AND a.deleted_at IS NULL`,
		token)
}

func (r *AccountRepository) getOne(ctx context.Context, operation, query string, arg any) (*account.Account, error) {
	a, err := scanAccount(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.With("operation", operation).Wrap(err)
	}
	return a, nil
}

// Exists reports whether any account matches the probe. Role and tenant are
// applied as filters; username and email are combined per the match policy.
func (r *AccountRepository) Exists(ctx context.Context, probe account.Probe, policy account.MatchPolicy) (bool, error) {
	query, args, ok := existsQuery(probe, policy)
	if !ok {
		return false, nil
	}
	var exists bool
	if err := conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, oops.With("operation", "check account exists").Wrap(err)
	}
	return exists, nil
}

// existsQuery builds the EXISTS query for a probe. ok is false when the probe
// has no matched fields.
func existsQuery(probe account.Probe, policy account.MatchPolicy) (query string, args []any, ok bool) {
	var filters, matched []string
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	compare := func(column string, v string) string {
		if policy.CaseInsensitive {
			return "LOWER(" + column + ") = LOWER(" + arg(v) + ")"
		}
		return column + " = " + arg(v)
	}

	if probe.Role != "" {
		filters = append(filters, "role = "+arg(string(probe.Role)))
	}
	if probe.TenantID != nil {
		filters = append(filters, "tenant_id = "+arg(int64(*probe.TenantID)))
	}
	if !policy.IncludeDeleted {
		filters = append(filters, "deleted_at IS NULL")
	}
	if probe.Username != "" {
		matched = append(matched, compare("username", probe.Username))
	}
	if probe.Email != nil {
		matched = append(matched, compare("email", *probe.Email))
	}
	if len(matched) == 0 {
		return "", nil, false
	}

	join := " OR "
	if policy.Combine == account.MatchAll {
		join = " AND "
	}
	filters = append(filters, "("+strings.Join(matched, join)+")")
	return "SELECT EXISTS (SELECT 1 FROM accounts WHERE " + strings.Join(filters, " AND ") + ")", args, true
}

// Update overwrites role, credential, token and login key fields.
func (r *AccountRepository) Update(ctx context.Context, a *account.Account) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE accounts SET
			role = $2, username = $3, password_hash = $4, email = $5,
			display_name = $6, invite_token = $7, login_key = $8, updated_at = $9
		WHERE id = $1 AND deleted_at IS NULL
	`,
		a.ID.String(),
		string(a.Role),
		nullIfEmpty(a.Username),
		nullIfEmpty(a.PasswordHash),
		a.Email,
		nullIfEmpty(a.DisplayName),
		a.InviteToken,
		a.LoginKey,
		a.UpdatedAt,
	)
	if err != nil {
		return writeError(err, "update account")
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces only the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.exec(ctx, "update password", `
		UPDATE accounts SET password_hash = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, id.String(), passwordHash)
}

// RecordLoginAttempt stores the lockout counters.
func (r *AccountRepository) RecordLoginAttempt(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	return r.exec(ctx, "record login attempt", `
		UPDATE accounts SET failed_attempts = $2, locked_until = $3
		WHERE id = $1 AND deleted_at IS NULL
	`, id.String(), failedAttempts, lockedUntil)
}

// SoftDelete stamps deleted_at on an active account.
func (r *AccountRepository) SoftDelete(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.exec(ctx, "soft delete account", `
		UPDATE accounts SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id.String(), at)
}

func (r *AccountRepository) exec(ctx context.Context, operation, query string, args ...any) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return oops.With("operation", operation).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		a                                   account.Account
		id, role                            string
		username, passwordHash, displayName *string
		tenantID                            *int64
		linked                              []string
	)
	if err := row.Scan(
		&id, &role, &username, &passwordHash, &a.Email, &displayName,
		&a.InviteToken, &tenantID, &a.LoginKey, &a.FailedAttempts, &a.LockedUntil,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt,
		&linked,
	); err != nil {
		return nil, err
	}

	var err error
	if a.ID, err = parseULID(id, "account_id"); err != nil {
		return nil, err
	}
	if a.Role = account.Role(role); !a.Role.Valid() {
		return nil, oops.With("role", role).Errorf("unknown role %q", role)
	}
	a.Username = deref(username)
	a.PasswordHash = deref(passwordHash)
	a.DisplayName = deref(displayName)
	if tenantID != nil {
		t := account.TenantID(*tenantID)
		a.TenantID = &t
	}
	for _, s := range linked {
		charID, err := parseULID(s, "character_id")
		if err != nil {
			return nil, err
		}
		a.LinkedCharacters = append(a.LinkedCharacters, charID)
	}
	return &a, nil
}

func tenantParam(id *account.TenantID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}
