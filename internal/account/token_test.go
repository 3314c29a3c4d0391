// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account_test

import (
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/account"
)

func TestRandomTokenIssuer(t *testing.T) {
	t.Run("is url safe and decodes to requested size", func(t *testing.T) {
		issuer := account.NewRandomTokenIssuer(account.DefaultInviteTokenBytes)
		token, err := issuer.Issue()
		require.NoError(t, err)

		assert.Equal(t, url.QueryEscape(token), token)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, account.DefaultInviteTokenBytes)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		issuer := account.NewRandomTokenIssuer(account.DefaultInviteTokenBytes)
		seen := make(map[string]struct{})
		for range 1000 {
			token, err := issuer.Issue()
			require.NoError(t, err)
			_, dup := seen[token]
			require.False(t, dup, "duplicate token issued")
			seen[token] = struct{}{}
		}
	})

	t.Run("small sizes are raised to the minimum", func(t *testing.T) {
		issuer := account.NewRandomTokenIssuer(4)
		token, err := issuer.Issue()
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, 16)
	})
}
