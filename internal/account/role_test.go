// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/account"
	"github.com/tenantry/tenantry/pkg/errutil"
)

func TestScopeOf(t *testing.T) {
	tests := []struct {
		role  account.Role
		scope account.Scope
		auth  bool
	}{
		{account.RoleAdmin, account.ScopeGlobal, true},
		{account.RoleOwner, account.ScopeGlobal, true},
		{account.RoleMaintainer, account.ScopePerTenant, true},
		{account.RoleTransient, account.ScopeNone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.scope, account.ScopeOf(tt.role))
			assert.Equal(t, tt.auth, account.IsAuthenticatable(tt.role))
		})
	}
}

func TestCanTransition(t *testing.T) {
	for _, from := range account.Roles {
		for _, to := range account.Roles {
			want := from == account.RoleTransient && to == account.RoleMaintainer
			assert.Equal(t, want, account.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestRequiresTenant(t *testing.T) {
	assert.False(t, account.RequiresTenant(account.RoleAdmin))
	assert.False(t, account.RequiresTenant(account.RoleOwner))
	assert.True(t, account.RequiresTenant(account.RoleMaintainer))
	assert.True(t, account.RequiresTenant(account.RoleTransient))
}

func TestParseRole(t *testing.T) {
	t.Run("accepts any case", func(t *testing.T) {
		r, err := account.ParseRole(" Owner ")
		require.NoError(t, err)
		assert.Equal(t, account.RoleOwner, r)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := account.ParseRole("superuser")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_ROLE")
	})
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "global", account.ScopeGlobal.String())
	assert.Equal(t, "per_tenant", account.ScopePerTenant.String())
	assert.Equal(t, "none", account.ScopeNone.String())
}
