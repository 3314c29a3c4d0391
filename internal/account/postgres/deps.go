// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package postgres

import "github.com/tenantry/tenantry/internal/account"

// Deps wires every PostgreSQL repository over pool into registry
// dependencies.
func Deps(pool Pool, hasher account.PasswordHasher, tokens account.TokenIssuer) account.RegistryDeps {
	return account.RegistryDeps{
		Accounts:   NewAccountRepository(pool),
		Tenants:    NewTenantRepository(pool),
		Characters: NewCharacterRepository(pool),
		Transactor: NewTransactor(pool),
		Hasher:     hasher,
		Tokens:     tokens,
	}
}
