// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

// Package accounttest provides an in-memory account store for tests.
package accounttest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tenantry/tenantry/internal/account"
)

type txKey struct{}

// Store is an in-memory implementation of every account repository and of
// account.Transactor. It enforces the same unique constraints as the
// postgres schema. Transactions are serialized and roll back on error.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	accounts   map[ulid.ULID]*account.Account
	tenants    map[account.TenantID]*account.Tenant
	characters map[ulid.ULID]*account.Character
	nextTenant account.TenantID
	faults     map[string]error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		accounts:   make(map[ulid.ULID]*account.Account),
		tenants:    make(map[account.TenantID]*account.Tenant),
		characters: make(map[ulid.ULID]*account.Character),
		faults:     make(map[string]error),
	}
}

// FailOn makes every later call to the named repository method return err.
// A nil err clears the fault.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

// AddCharacter seeds a character.
func (s *Store) AddCharacter(c account.Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[c.ID] = &c
}

// DeleteTenant soft deletes a tenant.
func (s *Store) DeleteTenant(id account.TenantID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tenants[id]; ok {
		t.DeletedAt = &at
	}
}

// Account returns a copy of any stored account, deleted or not.
func (s *Store) Account(id ulid.ULID) (*account.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return cloneAccount(a), true
}

// Len returns the number of stored accounts, deleted included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// InTransaction implements account.Transactor.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// write serializes a mutation against running transactions.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if ctx.Value(txKey{}) == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

type snapshot struct {
	accounts   map[ulid.ULID]*account.Account
	tenants    map[account.TenantID]*account.Tenant
	nextTenant account.TenantID
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		accounts:   make(map[ulid.ULID]*account.Account, len(s.accounts)),
		tenants:    make(map[account.TenantID]*account.Tenant, len(s.tenants)),
		nextTenant: s.nextTenant,
	}
	for id, a := range s.accounts {
		snap.accounts[id] = cloneAccount(a)
	}
	for id, t := range s.tenants {
		c := *t
		snap.tenants[id] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.tenants = snap.tenants
	s.nextTenant = snap.nextTenant
}

func (s *Store) fault(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults[method]
}

// Create implements account.AccountRepository.
func (s *Store) Create(ctx context.Context, a *account.Account) error {
	if err := s.fault("Create"); err != nil {
		return err
	}
	return s.write(ctx, func() error {
		if _, ok := s.accounts[a.ID]; ok {
			return oops.With("account_id", a.ID.String()).Wrapf(account.ErrDuplicate, "primary key")
		}
		if err := s.checkUnique(a); err != nil {
			return err
		}
		s.accounts[a.ID] = cloneAccount(a)
		return nil
	})
}

// GetByID implements account.AccountRepository.
func (s *Store) GetByID(_ context.Context, id ulid.ULID, scope account.ReadScope) (*account.Account, error) {
	if err := s.fault("GetByID"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || (scope == account.ActiveOnly && a.DeletedAt != nil) {
		return nil, account.ErrNotFound
	}
	return cloneAccount(a), nil
}

// GetForUpdate implements account.AccountRepository. Locking is provided by
// the serialized transaction.
func (s *Store) GetForUpdate(_ context.Context, id ulid.ULID) (*account.Account, error) {
	if err := s.fault("GetForUpdate"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok || a.DeletedAt != nil {
		return nil, account.ErrNotFound
	}
	return cloneAccount(a), nil
}

// GetByLoginKey implements account.AccountRepository.
func (s *Store) GetByLoginKey(_ context.Context, key string) (*account.Account, error) {
	if err := s.fault("GetByLoginKey"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.DeletedAt == nil && a.LoginKey != nil && strings.EqualFold(*a.LoginKey, key) {
			return cloneAccount(a), nil
		}
	}
	return nil, account.ErrNotFound
}

// GetByInviteToken implements account.AccountRepository.
func (s *Store) GetByInviteToken(_ context.Context, token string) (*account.Account, error) {
	if err := s.fault("GetByInviteToken"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.DeletedAt == nil && a.Role == account.RoleTransient &&
			a.InviteToken != nil && *a.InviteToken == token {
			return cloneAccount(a), nil
		}
	}
	return nil, account.ErrNotFound
}

// Exists implements account.AccountRepository.
func (s *Store) Exists(_ context.Context, probe account.Probe, policy account.MatchPolicy) (bool, error) {
	if err := s.fault("Exists"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if matches(a, probe, policy) {
			return true, nil
		}
	}
	return false, nil
}

func matches(a *account.Account, probe account.Probe, policy account.MatchPolicy) bool {
	if a.DeletedAt != nil && !policy.IncludeDeleted {
		return false
	}
	if probe.Role != "" && a.Role != probe.Role {
		return false
	}
	if probe.TenantID != nil && (a.TenantID == nil || *a.TenantID != *probe.TenantID) {
		return false
	}

	eq := func(x, y string) bool {
		if policy.CaseInsensitive {
			return strings.EqualFold(x, y)
		}
		return x == y
	}
	var hits []bool
	if probe.Username != "" {
		hits = append(hits, a.Username != "" && eq(a.Username, probe.Username))
	}
	if probe.Email != nil {
		hits = append(hits, a.Email != nil && eq(*a.Email, *probe.Email))
	}
	if len(hits) == 0 {
		return false
	}
	if policy.Combine == account.MatchAll {
		return !slices.Contains(hits, false)
	}
	return slices.Contains(hits, true)
}

// Update implements account.AccountRepository.
func (s *Store) Update(ctx context.Context, a *account.Account) error {
	if err := s.fault("Update"); err != nil {
		return err
	}
	return s.write(ctx, func() error {
		cur, ok := s.accounts[a.ID]
		if !ok || cur.DeletedAt != nil {
			return account.ErrNotFound
		}
		if err := s.checkUnique(a); err != nil {
			return err
		}
		next := cloneAccount(a)
		next.CreatedAt = cur.CreatedAt
		next.FailedAttempts = cur.FailedAttempts
		next.LockedUntil = cur.LockedUntil
		next.LinkedCharacters = slices.Clone(cur.LinkedCharacters)
		s.accounts[a.ID] = next
		return nil
	})
}

// UpdatePassword implements account.AccountRepository.
func (s *Store) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	if err := s.fault("UpdatePassword"); err != nil {
		return err
	}
	return s.write(ctx, func() error {
		a, ok := s.accounts[id]
		if !ok || a.DeletedAt != nil {
			return account.ErrNotFound
		}
		a.PasswordHash = passwordHash
		return nil
	})
}

// RecordLoginAttempt implements account.AccountRepository.
func (s *Store) RecordLoginAttempt(ctx context.Context, id ulid.ULID, failedAttempts int, lockedUntil *time.Time) error {
	if err := s.fault("RecordLoginAttempt"); err != nil {
		return err
	}
	return s.write(ctx, func() error {
		a, ok := s.accounts[id]
		if !ok || a.DeletedAt != nil {
			return account.ErrNotFound
		}
		a.FailedAttempts = failedAttempts
		a.LockedUntil = lockedUntil
		return nil
	})
}

// SoftDelete implements account.AccountRepository.
func (s *Store) SoftDelete(ctx context.Context, id ulid.ULID, at time.Time) error {
	if err := s.fault("SoftDelete"); err != nil {
		return err
	}
	return s.write(ctx, func() error {
		a, ok := s.accounts[id]
		if !ok || a.DeletedAt != nil {
			return account.ErrNotFound
		}
		a.DeletedAt = &at
		a.UpdatedAt = at
		return nil
	})
}

// checkUnique mirrors the partial unique indexes on active accounts.
func (s *Store) checkUnique(a *account.Account) error {
	for _, other := range s.accounts {
		if other.ID == a.ID || other.DeletedAt != nil {
			continue
		}
		switch {
		case a.LoginKey != nil && other.LoginKey != nil && strings.EqualFold(*a.LoginKey, *other.LoginKey):
			return oops.With("constraint", "accounts_login_key_key").Wrap(account.ErrDuplicate)
		case a.InviteToken != nil && other.InviteToken != nil && *a.InviteToken == *other.InviteToken:
			return oops.With("constraint", "accounts_invite_token_key").Wrap(account.ErrDuplicate)
		case sameEmailScope(a, other):
			return oops.With("constraint", "accounts_email_key").Wrap(account.ErrDuplicate)
		}
	}
	return nil
}

func sameEmailScope(a, b *account.Account) bool {
	if a.Email == nil || b.Email == nil || !strings.EqualFold(*a.Email, *b.Email) {
		return false
	}
	switch account.ScopeOf(a.Role) {
	case account.ScopeGlobal:
		return account.ScopeOf(b.Role) == account.ScopeGlobal
	case account.ScopePerTenant:
		return b.Role == account.RoleMaintainer &&
			a.TenantID != nil && b.TenantID != nil && *a.TenantID == *b.TenantID
	default:
		return false
	}
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	c.OwnedTenants = slices.Clone(a.OwnedTenants)
	c.LinkedCharacters = slices.Clone(a.LinkedCharacters)
	return &c
}

// Verify interfaces are satisfied.
var (
	_ account.AccountRepository   = (*Store)(nil)
	_ account.TenantRepository    = (*Tenants)(nil)
	_ account.CharacterRepository = (*Characters)(nil)
	_ account.Transactor          = (*Store)(nil)
)

// Deps wires s into a RegistryDeps with the given hasher and token issuer.
func (s *Store) Deps(hasher account.PasswordHasher, tokens account.TokenIssuer) account.RegistryDeps {
	return account.RegistryDeps{
		Accounts:   s,
		Tenants:    s.Tenants(),
		Characters: s.Characters(),
		Transactor: s,
		Hasher:     hasher,
		Tokens:     tokens,
	}
}

// FastHasher returns an argon2id hasher with parameters cheap enough for tests.
func FastHasher() *account.Argon2idHasher {
	return account.NewArgon2idHasherWithParams(account.Argon2Params{
		Time:    1,
		Memory:  1024,
		Threads: 1,
		SaltLen: 16,
		KeyLen:  32,
	})
}
