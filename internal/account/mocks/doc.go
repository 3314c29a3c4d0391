// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

// Package mocks contains mockery-generated mocks for the account interfaces.
//
//go:generate mockery --dir .. --name PasswordHasher --name TokenIssuer --outpkg mocks --output . --with-expecter=false
package mocks
