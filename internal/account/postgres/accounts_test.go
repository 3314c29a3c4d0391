// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/account"
)

var accountRowColumns = []string{
	"id", "role", "username", "password_hash", "email", "display_name",
	"invite_token", "tenant_id", "login_key", "failed_attempts", "locked_until",
	"created_at", "updated_at", "deleted_at", "linked_characters",
}

func strp(s string) *string { return &s }

func maintainerRow(id ulid.ULID, linked ...string) []any {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tenant := int64(7)
	return []any{
		id.String(), "maintainer", strp("carol"), strp("$argon2id$digest"), strp("carol@example.com"), strp("Carol"),
		(*string)(nil), &tenant, strp("7-carol"), 2, (*time.Time)(nil),
		created, created, (*time.Time)(nil), linked,
	}
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestExistsQuery(t *testing.T) {
	tenant := account.TenantID(9)
	email := "a@example.com"

	tests := []struct {
		name      string
		probe     account.Probe
		policy    account.MatchPolicy
		wantQuery string
		wantArgs  []any
		wantOK    bool
	}{
		{
			name:   "no matched fields",
			probe:  account.Probe{Role: account.RoleAdmin},
			policy: account.UniquenessPolicy(),
		},
		{
			name:      "global username or email, case-insensitive",
			probe:     account.Probe{Role: account.RoleOwner, Username: "bob", Email: &email},
			policy:    account.UniquenessPolicy(),
			wantQuery: "SELECT EXISTS (SELECT 1 FROM accounts WHERE role = $1 AND deleted_at IS NULL AND (LOWER(username) = LOWER($2) OR LOWER(email) = LOWER($3)))",
			wantArgs:  []any{"owner", "bob", email},
			wantOK:    true,
		},
		{
			name:      "tenant scoped, exact, all fields, deleted included",
			probe:     account.Probe{Role: account.RoleMaintainer, TenantID: &tenant, Username: "bob", Email: &email},
			policy:    account.MatchPolicy{Combine: account.MatchAll, IncludeDeleted: true},
			wantQuery: "SELECT EXISTS (SELECT 1 FROM accounts WHERE role = $1 AND tenant_id = $2 AND (username = $3 AND email = $4))",
			wantArgs:  []any{"maintainer", int64(9), "bob", email},
			wantOK:    true,
		},
		{
			name:      "username only without role filter",
			probe:     account.Probe{Username: "bob"},
			policy:    account.MatchPolicy{},
			wantQuery: "SELECT EXISTS (SELECT 1 FROM accounts WHERE deleted_at IS NULL AND (username = $1))",
			wantArgs:  []any{"bob"},
			wantOK:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, ok := existsQuery(tt.probe, tt.policy)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestAccountRepository_Exists(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("admin", "root").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := NewAccountRepository(mock).Exists(context.Background(),
		account.Probe{Role: account.RoleAdmin, Username: "root"}, account.UniquenessPolicy())
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ExistsWithoutFieldsSkipsQuery(t *testing.T) {
	mock := newMock(t)
	exists, err := NewAccountRepository(mock).Exists(context.Background(),
		account.Probe{Role: account.RoleAdmin}, account.UniquenessPolicy())
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()
	tenant := account.TenantID(7)

	t.Run("plain insert runs outside a transaction", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		a := &account.Account{ID: ulid.Make(), Role: account.RoleAdmin, Username: "root", PasswordHash: "h", LoginKey: "O-root"}
		require.NoError(t, NewAccountRepository(mock).Create(ctx, a))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("links are written in the same transaction", func(t *testing.T) {
		mock := newMock(t)
		charA, charB := ulid.Make(), ulid.Make()
		token := "tok"
		a := &account.Account{
			ID: ulid.Make(), Role: account.RoleTransient, InviteToken: &token, TenantID: &tenant,
			LinkedCharacters: []ulid.ULID{charA, charB},
		}

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO account_characters`).
			WithArgs(a.ID.String(), charA.String()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO account_characters`).
			WithArgs(a.ID.String(), charB.String()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		require.NoError(t, NewAccountRepository(mock).Create(ctx, a))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed link rolls the insert back", func(t *testing.T) {
		mock := newMock(t)
		token := "tok"
		a := &account.Account{
			ID: ulid.Make(), Role: account.RoleTransient, InviteToken: &token, TenantID: &tenant,
			LinkedCharacters: []ulid.ULID{ulid.Make()},
		}

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO account_characters`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})
		mock.ExpectRollback()

		err := NewAccountRepository(mock).Create(ctx, a)
		require.Error(t, err)
		assert.NotErrorIs(t, err, account.ErrDuplicate)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation becomes ErrDuplicate without a kind", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_login_key_key"})

		a := &account.Account{ID: ulid.Make(), Role: account.RoleOwner, Username: "bob", PasswordHash: "h", LoginKey: "O-bob"}
		err := NewAccountRepository(mock).Create(ctx, a)
		require.ErrorIs(t, err, account.ErrDuplicate)
		assert.Empty(t, account.KindOf(err))
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	charID := ulid.Make()

	t.Run("scans every column", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM accounts a WHERE a.id = \$1 AND a.deleted_at IS NULL`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(accountRowColumns).AddRow(maintainerRow(id, charID.String())...))

		a, err := NewAccountRepository(mock).GetByID(ctx, id, account.ActiveOnly)
		require.NoError(t, err)
		assert.Equal(t, id, a.ID)
		assert.Equal(t, account.RoleMaintainer, a.Role)
		assert.Equal(t, "carol", a.Username)
		assert.Equal(t, "Carol", a.DisplayName)
		require.NotNil(t, a.TenantID)
		assert.Equal(t, account.TenantID(7), *a.TenantID)
		assert.Equal(t, 2, a.FailedAttempts)
		assert.Nil(t, a.InviteToken)
		assert.Equal(t, []ulid.ULID{charID}, a.LinkedCharacters)
	})

	t.Run("missing row", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM accounts a WHERE a.id = \$1`).
			WillReturnRows(pgxmock.NewRows(accountRowColumns))

		_, err := NewAccountRepository(mock).GetByID(ctx, id, account.IncludeDeleted)
		assert.ErrorIs(t, err, account.ErrNotFound)
	})

	t.Run("unknown role is a storage failure", func(t *testing.T) {
		mock := newMock(t)
		row := maintainerRow(id)
		row[1] = "superuser"
		mock.ExpectQuery(`FROM accounts a WHERE a.id = \$1`).
			WillReturnRows(pgxmock.NewRows(accountRowColumns).AddRow(row...))

		_, err := NewAccountRepository(mock).GetByID(ctx, id, account.ActiveOnly)
		require.Error(t, err)
		assert.NotErrorIs(t, err, account.ErrNotFound)
		assert.Empty(t, account.KindOf(err))
	})

	t.Run("query failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM accounts a WHERE a.id = \$1`).
			WillReturnError(errors.New("connection refused"))

		_, err := NewAccountRepository(mock).GetByID(ctx, id, account.ActiveOnly)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAccountRepository_GetForUpdateLocksRow(t *testing.T) {
	mock := newMock(t)
	id := ulid.Make()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows(accountRowColumns).AddRow(maintainerRow(id)...))

	a, err := NewAccountRepository(mock).GetForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_Writes(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		pattern string
		call    func(*AccountRepository) error
	}{
		{"update", `UPDATE accounts SET`, func(r *AccountRepository) error {
			return r.Update(ctx, &account.Account{ID: id, Role: account.RoleMaintainer, Username: "u", PasswordHash: "h", LoginKey: "1-u"})
		}},
		{"update password", `SET password_hash = \$2`, func(r *AccountRepository) error {
			return r.UpdatePassword(ctx, id, "h2")
		}},
		{"record login attempt", `SET failed_attempts = \$2`, func(r *AccountRepository) error {
			return r.RecordLoginAttempt(ctx, id, 3, &now)
		}},
		{"soft delete", `SET deleted_at = \$2`, func(r *AccountRepository) error {
			return r.SoftDelete(ctx, id, now)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			mock.ExpectExec(tt.pattern).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			require.NoError(t, tt.call(NewAccountRepository(mock)))

			mock.ExpectExec(tt.pattern).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			assert.ErrorIs(t, tt.call(NewAccountRepository(mock)), account.ErrNotFound)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_UpdateMapsUniqueViolation(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE accounts SET`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_tenant_email_key"})

	err := NewAccountRepository(mock).Update(context.Background(), &account.Account{ID: ulid.Make(), Role: account.RoleMaintainer})
	assert.ErrorIs(t, err, account.ErrDuplicate)
}
