// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReadScope selects whether soft-deleted rows are visible to a read.
type ReadScope int

// Read scopes.
const (
	ActiveOnly ReadScope = iota
	IncludeDeleted
)

// Combinator joins the matched fields of a Probe.
type Combinator int

// Combinators.
const (
	// MatchAny succeeds when any matched field hits.
	MatchAny Combinator = iota
	// MatchAll succeeds only when every matched field hits.
	MatchAll
)

// Probe describes an existence query. Role and TenantID are hard filters;
// Username and Email are the matched fields combined per MatchPolicy.
// An empty Username or nil Email is not matched.
type Probe struct {
	Role     Role
	TenantID *TenantID
	Username string
	Email    *string
}

// MatchPolicy controls how a Probe's matched fields are compared.
type MatchPolicy struct {
	CaseInsensitive bool
	Combine         Combinator
	IncludeDeleted  bool
}

// UniquenessPolicy is the match policy shared by every scope: case-insensitive,
// OR-combined, soft-deleted accounts excluded.
func UniquenessPolicy() MatchPolicy {
	return MatchPolicy{CaseInsensitive: true, Combine: MatchAny}
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account together with its character links.
	// Returns an error wrapping ErrDuplicate on a uniqueness violation.
	Create(ctx context.Context, a *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID, scope ReadScope) (*Account, error)

	// GetForUpdate retrieves an active account and locks it for the rest of
	// the surrounding transaction.
	GetForUpdate(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByLoginKey retrieves an active account by composite identifier
	// (case-insensitive).
	GetByLoginKey(ctx context.Context, key string) (*Account, error)

	// GetByInviteToken retrieves an active transient account by invite token.
	GetByInviteToken(ctx context.Context, token string) (*Account, error)

	// Exists reports whether any account matches the probe.
	Exists(ctx context.Context, probe Probe, policy MatchPolicy) (bool, error)

	// Update overwrites role, credential, token and login key fields.
	// Returns an error wrapping ErrDuplicate on a uniqueness violation.
	Update(ctx context.Context, a *Account) error

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// RecordLoginAttempt stores the lockout counters.
	RecordLoginAttempt(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error

	// SoftDelete stamps DeletedAt on an active account.
	SoftDelete(ctx context.Context, id ulid.ULID, at time.Time) error
}

// TenantRepository manages tenant persistence. Reads exclude deleted tenants.
type TenantRepository interface {
	// Create stores a new tenant and assigns its ID.
	// Returns an error wrapping ErrDuplicate when the subdomain is taken.
	Create(ctx context.Context, t *Tenant) error

	// GetByID retrieves a non-deleted tenant.
	GetByID(ctx context.Context, id TenantID) (*Tenant, error)

	// ListIDsByOwner returns the IDs of tenants owned by an account.
	ListIDsByOwner(ctx context.Context, ownerID ulid.ULID) ([]TenantID, error)

	// SetActive flips the active flag and stamps the matching timestamp.
	SetActive(ctx context.Context, id TenantID, active bool, at time.Time) (*Tenant, error)
}

// CharacterRepository resolves in-tenant content.
type CharacterRepository interface {
	// GetByID retrieves a character.
	GetByID(ctx context.Context, id ulid.ULID) (*Character, error)
}

// Transactor runs fn in a single storage transaction. Repository calls made
// with the context passed to fn participate in the transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
