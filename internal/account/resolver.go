// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// globalPrefix marks composite identifiers in the admin and owner scope.
const globalPrefix = "O-"

// CompositeIdentifier builds the login lookup key for a username. Without a
// tenant the key lives in the global scope ("O-alice"); with a tenant it is
// prefixed by the tenant's numeric ID ("42-alice"). The two forms never
// collide because tenant IDs are digits only.
func CompositeIdentifier(tenant *TenantID, username string) string {
	if tenant == nil {
		return globalPrefix + username
	}
	return tenant.String() + "-" + username
}

// ParseTenantIdentifier decodes the optional tenant parameter of a login
// request. An empty value means no tenant.
func ParseTenantIdentifier(raw string) (*TenantID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, failure(KindInvalidTenantIdentifier).
			With("tenant_id", raw).
			Wrapf(err, "tenant identifier %q is not numeric", raw)
	}
	if n <= 0 {
		return nil, failure(KindInvalidTenantIdentifier).
			With("tenant_id", raw).
			Errorf("tenant identifier must be positive")
	}
	id := TenantID(n)
	return &id, nil
}

// dummyPasswordHash is verified against when no account matches so that
// unknown usernames take as long as wrong passwords.
// It never matches any password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// FailureReason explains why a login did not authenticate.
type FailureReason string

// Failure reasons.
const (
	ReasonInvalidCredentials FailureReason = "invalid_credentials"
	ReasonLocked             FailureReason = "locked"
	ReasonTenantInactive     FailureReason = "tenant_inactive"
)

// LoginRequest is the login endpoint input. TenantID is the raw request
// parameter and may be empty.
type LoginRequest struct {
	TenantID string
	Username string
	Password string
}

// Principal identifies an authenticated account.
type Principal struct {
	AccountID ulid.ULID `json:"account_id"`
	Role      Role      `json:"role"`
	TenantID  *TenantID `json:"tenant_id,omitempty"`
}

// LoginResult is the outcome of Authenticate. Reason is set only when
// Authenticated is false.
type LoginResult struct {
	Authenticated bool          `json:"authenticated"`
	Principal     *Principal    `json:"principal,omitempty"`
	Reason        FailureReason `json:"reason,omitempty"`
}

func rejected(reason FailureReason) *LoginResult {
	return &LoginResult{Reason: reason}
}

// Resolver verifies login credentials against composite identifiers.
type Resolver struct {
	accounts AccountRepository
	tenants  TenantRepository
	hasher   PasswordHasher

	lockout  Lockout
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
	in       instrument
}

// NewResolver creates a Resolver.
func NewResolver(accounts AccountRepository, tenants TenantRepository, hasher PasswordHasher, opts ...Option) (*Resolver, error) {
	switch {
	case accounts == nil:
		return nil, oops.Code("RESOLVER_INVALID_DEPS").Errorf("accounts repository is required")
	case tenants == nil:
		return nil, oops.Code("RESOLVER_INVALID_DEPS").Errorf("tenants repository is required")
	case hasher == nil:
		return nil, oops.Code("RESOLVER_INVALID_DEPS").Errorf("password hasher is required")
	}
	o := buildOptions(opts)
	return &Resolver{
		accounts: accounts,
		tenants:  tenants,
		hasher:   hasher,
		lockout:  o.lockout,
		logger:   o.logger,
		recorder: o.recorder,
		now:      o.now,
		in:       instrument{logger: o.logger, recorder: o.recorder},
	}, nil
}

// Authenticate resolves the request's composite identifier and verifies the
// password. A credential that does not verify is reported through the result,
// not as an error. Errors are returned only for a malformed tenant identifier
// and for storage failures.
func (r *Resolver) Authenticate(ctx context.Context, req LoginRequest) (_ *LoginResult, err error) {
	const op = "authenticate"
	ctx, span := r.in.start(ctx, op)
	defer func() { r.in.finish(ctx, span, op, err) }()

	tenantID, err := ParseTenantIdentifier(req.TenantID)
	if err != nil {
		return nil, err
	}
	key := CompositeIdentifier(tenantID, strings.TrimSpace(req.Username))

	a, lookupErr := r.accounts.GetByLoginKey(ctx, key)
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, failure(KindDatabase).
			With("operation", "get account by login key").
			Wrap(lookupErr)
	}
	found := lookupErr == nil && IsAuthenticatable(a.Role)

	target := dummyPasswordHash
	if found {
		target = a.PasswordHash
	}

	// Always verify so unknown accounts cost the same as wrong passwords.
	valid, verifyErr := r.hasher.Verify(req.Password, target)
	if !found {
		return r.reject(ctx, ReasonInvalidCredentials), nil
	}
	if verifyErr != nil {
		return nil, wrapFailure(failure(KindDatabase).
			With("operation", "verify password").
			With("account_id", a.ID.String()), verifyErr)
	}

	now := r.now()
	if !valid {
		a.RecordFailure(now, r.lockout)
		r.saveAttempt(ctx, a)
		return r.reject(ctx, ReasonInvalidCredentials), nil
	}

	// Checked after verification to keep timing uniform.
	if a.IsLocked(now) {
		return r.reject(ctx, ReasonLocked), nil
	}

	if a.TenantID != nil {
		t, err := r.tenants.GetByID(ctx, *a.TenantID)
		if errors.Is(err, ErrNotFound) {
			return r.reject(ctx, ReasonInvalidCredentials), nil
		}
		if err != nil {
			return nil, failure(KindDatabase).
				With("operation", "get tenant").
				With("tenant_id", int64(*a.TenantID)).
				Wrap(err)
		}
		if !t.Active {
			return r.reject(ctx, ReasonTenantInactive), nil
		}
	}

	if a.FailedAttempts > 0 || a.LockedUntil != nil {
		a.RecordSuccess(now)
		r.saveAttempt(ctx, a)
	}
	r.upgradeHash(ctx, a, req.Password)

	r.recorder.LoginAttempt("success")
	return &LoginResult{
		Authenticated: true,
		Principal: &Principal{
			AccountID: a.ID,
			Role:      a.Role,
			TenantID:  a.TenantID,
		},
	}, nil
}

func (r *Resolver) reject(ctx context.Context, reason FailureReason) *LoginResult {
	r.recorder.LoginAttempt(string(reason))
	r.logger.DebugContext(ctx, "login rejected", "reason", string(reason))
	return rejected(reason)
}

// saveAttempt persists lockout counters. Login outcome does not depend on it.
func (r *Resolver) saveAttempt(ctx context.Context, a *Account) {
	if err := r.accounts.RecordLoginAttempt(ctx, a.ID, a.FailedAttempts, a.LockedUntil); err != nil {
		r.logger.WarnContext(ctx, "failed to record login attempt",
			"account_id", a.ID.String(),
			"error", err,
		)
	}
}

func (r *Resolver) upgradeHash(ctx context.Context, a *Account, password string) {
	if !r.hasher.NeedsUpgrade(a.PasswordHash) {
		return
	}
	hash, err := r.hasher.Hash(password)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to rehash password", "account_id", a.ID.String(), "error", err)
		return
	}
	if err := r.accounts.UpdatePassword(ctx, a.ID, hash); err != nil {
		r.logger.WarnContext(ctx, "failed to store upgraded password hash", "account_id", a.ID.String(), "error", err)
	}
}
