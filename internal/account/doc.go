// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

// Package account provides the identity and authentication core for
// tenantry accounts.
//
// # Roles and Scopes
//
// Every account is one Account record tagged with a Role:
//   - admin and owner usernames are unique across both roles (global scope)
//   - maintainer usernames are unique within their parent tenant
//   - transient accounts hold only an invite token until they register
//
// Registration (transient to maintainer) is the only role transition.
//
// # Services
//
//   - Registry - account creation, invitations, registration, tenants
//   - Resolver - composite login identifiers and credential verification
//
// Storage is reached through the repository interfaces in this package.
// The uniqueness checks the Registry runs are a fast path only; storage
// implementations must enforce the same rules with unique constraints and
// report violations by wrapping ErrDuplicate.
//
// Failures carry an ErrorKind as their oops code; use KindOf to read it.
package account
