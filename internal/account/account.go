// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// TenantID identifies a tenant. Tenant identifiers are numeric because they
// form the prefix of a maintainer's composite login identifier.
type TenantID int64

func (id TenantID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// LifecycleState is the soft-delete state of an account.
type LifecycleState int

// Lifecycle states.
const (
	StateActive LifecycleState = iota
	StateDeleted
)

func (s LifecycleState) String() string {
	if s == StateDeleted {
		return "deleted"
	}
	return "active"
}

// Account is the single record behind every role. Role-specific fields are
// optional and populated according to Role.
type Account struct {
	ID           ulid.ULID
	Role         Role
	Username     string
	PasswordHash string
	Email        *string
	DisplayName  string

	// InviteToken is set only while Role is RoleTransient.
	InviteToken *string

	// TenantID is the parent tenant for maintainer and transient accounts.
	TenantID *TenantID

	// OwnedTenants is populated only for owners.
	OwnedTenants     []TenantID
	LinkedCharacters []ulid.ULID

	// LoginKey is the composite identifier the authentication record is
	// indexed under. Nil for transient accounts.
	LoginKey *string

	FailedAttempts int
	LockedUntil    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// State returns the lifecycle state derived from DeletedAt.
func (a *Account) State() LifecycleState {
	if a.DeletedAt != nil {
		return StateDeleted
	}
	return StateActive
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (a *Account) RecordFailure(now time.Time, l Lockout) {
	a.FailedAttempts++
	a.LockedUntil = l.Until(a.FailedAttempts, now)
	a.UpdatedAt = now
}

// RecordSuccess resets failure counter and lockout.
func (a *Account) RecordSuccess(now time.Time) {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = now
}

// register converts a transient account into a maintainer. Callers must have
// checked CanTransition.
func (a *Account) register(c Credentials, passwordHash string, now time.Time) {
	key := CompositeIdentifier(a.TenantID, c.Username)
	a.Role = RoleMaintainer
	a.Username = c.Username
	a.PasswordHash = passwordHash
	a.Email = c.email()
	a.DisplayName = c.displayName()
	a.InviteToken = nil
	a.LoginKey = &key
	a.UpdatedAt = now
}

// View is the public projection of an account returned to callers.
type View struct {
	ID               string     `json:"id"`
	Role             Role       `json:"role"`
	Username         string     `json:"username,omitempty"`
	Email            *string    `json:"email,omitempty"`
	DisplayName      string     `json:"display_name,omitempty"`
	InviteToken      *string    `json:"invite_token,omitempty"`
	TenantID         *TenantID  `json:"tenant_id,omitempty"`
	OwnedTenants     []TenantID `json:"owned_tenants,omitempty"`
	LinkedCharacters []string   `json:"linked_characters,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// View returns the public projection of a.
func (a *Account) View() *View {
	v := &View{
		ID:           a.ID.String(),
		Role:         a.Role,
		Username:     a.Username,
		Email:        a.Email,
		DisplayName:  a.DisplayName,
		InviteToken:  a.InviteToken,
		TenantID:     a.TenantID,
		OwnedTenants: a.OwnedTenants,
		CreatedAt:    a.CreatedAt,
	}
	for _, id := range a.LinkedCharacters {
		v.LinkedCharacters = append(v.LinkedCharacters, id.String())
	}
	return v
}

// Credentials is the input for creating or registering an account.
// Email and DisplayName are optional.
type Credentials struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
}

func (c Credentials) email() *string {
	e := strings.TrimSpace(c.Email)
	if e == "" {
		return nil
	}
	return &e
}

func (c Credentials) displayName() string {
	if d := strings.TrimSpace(c.DisplayName); d != "" {
		return d
	}
	return c.Username
}

// Tenant is an isolated workspace owned by one owner account.
type Tenant struct {
	ID                TenantID   `json:"id"`
	Subdomain         string     `json:"subdomain"`
	OwnerID           ulid.ULID  `json:"owner_id"`
	Active            bool       `json:"active"`
	LastActivatedAt   *time.Time `json:"last_activated_at,omitempty"`
	LastDeactivatedAt *time.Time `json:"last_deactivated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the tenant has been soft deleted.
func (t *Tenant) IsDeleted() bool {
	return t.DeletedAt != nil
}

// Character is in-tenant content an invited account may be linked to before
// it registers.
type Character struct {
	ID       ulid.ULID
	TenantID TenantID
	Name     string
}
