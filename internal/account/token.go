// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/samber/oops"
)

// DefaultInviteTokenBytes is the entropy of an invite token.
const DefaultInviteTokenBytes = 32

// minInviteTokenBytes keeps tokens unguessable even when misconfigured.
const minInviteTokenBytes = 16

// TokenIssuer mints opaque invite tokens.
type TokenIssuer interface {
	Issue() (string, error)
}

// RandomTokenIssuer issues URL-safe tokens from crypto/rand.
type RandomTokenIssuer struct {
	size int
}

// NewRandomTokenIssuer creates an issuer producing tokens of size random
// bytes. Sizes below 16 bytes are raised to 16.
func NewRandomTokenIssuer(size int) *RandomTokenIssuer {
	if size < minInviteTokenBytes {
		size = minInviteTokenBytes
	}
	return &RandomTokenIssuer{size: size}
}

// Issue returns a fresh base64url (unpadded) token.
func (i *RandomTokenIssuer) Issue() (string, error) {
	b := make([]byte, i.size)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", i.size).
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
