// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"strings"

	"github.com/samber/oops"
)

// Role discriminates the four kinds of account. The set is closed.
type Role string

// Account roles.
const (
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "owner"
	RoleMaintainer Role = "maintainer"
	RoleTransient  Role = "transient"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleAdmin, RoleOwner, RoleMaintainer, RoleTransient}

// Scope is the uniqueness domain a role's usernames live in.
type Scope int

// Uniqueness scopes.
const (
	// ScopeNone applies to roles without a username.
	ScopeNone Scope = iota
	// ScopeGlobal spans every admin and owner account.
	ScopeGlobal
	// ScopePerTenant is isolated to a single parent tenant.
	ScopePerTenant
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopePerTenant:
		return "per_tenant"
	default:
		return "none"
	}
}

// ParseRole decodes a role name (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", oops.Code("INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleMaintainer, RoleTransient:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ScopeOf returns the uniqueness scope for a role.
func ScopeOf(r Role) Scope {
	switch r {
	case RoleAdmin, RoleOwner:
		return ScopeGlobal
	case RoleMaintainer:
		return ScopePerTenant
	default:
		return ScopeNone
	}
}

// IsAuthenticatable reports whether accounts with this role can log in.
func IsAuthenticatable(r Role) bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleMaintainer:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an account may move from one role to another.
// Registration (transient to maintainer) is the only legal transition.
func CanTransition(from, to Role) bool {
	return from == RoleTransient && to == RoleMaintainer
}

// RequiresTenant reports whether accounts with this role must have a parent tenant.
func RequiresTenant(r Role) bool {
	return r == RoleMaintainer || r == RoleTransient
}
