// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/account"
	"github.com/tenantry/tenantry/internal/account/accounttest"
	"github.com/tenantry/tenantry/pkg/errutil"
)

func TestArgon2idHasher_Hash(t *testing.T) {
	hasher := accounttest.FastHasher()

	t.Run("produces PHC formatted digest", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "INVALID_PASSWORD")
	})
}

func TestArgon2idHasher_Verify(t *testing.T) {
	hasher := accounttest.FastHasher()

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("digest from another hasher still verifies", func(t *testing.T) {
		other := account.NewArgon2idHasherWithParams(account.Argon2Params{
			Time: 2, Memory: 2048, Threads: 2, SaltLen: 8, KeyLen: 16,
		})
		hash, err := other.Hash("pw")
		require.NoError(t, err)

		ok, err := hasher.Verify("pw", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	tests := []struct {
		name     string
		digest   string
		contains string
	}{
		{name: "invalid format", digest: "not-a-valid-hash", contains: "invalid hash format"},
		{name: "wrong algorithm", digest: "$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", contains: "unsupported hash algorithm"},
		{name: "invalid version", digest: "$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA"},
		{name: "invalid params", digest: "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{name: "invalid salt base64", digest: "$argon2id$v=19$m=65536,t=1,p=4$!!!invalid!!!$aGFzaA"},
		{name: "invalid key base64", digest: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!!invalid!!!"},
		{name: "threads overflow", digest: "$argon2id$v=19$m=65536,t=1,p=256$c2FsdA$aGFzaA", contains: "threads value"},
	}
	for _, tt := range tests {
		t.Run(tt.name+" returns error", func(t *testing.T) {
			_, err := hasher.Verify("password", tt.digest)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "HASH_INVALID")
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestArgon2idHasher_NeedsUpgrade(t *testing.T) {
	hasher := accounttest.FastHasher()

	t.Run("bcrypt hash needs upgrade", func(t *testing.T) {
		assert.True(t, hasher.NeedsUpgrade("$2a$10$N9qo8uLOickgx2ZMRZoMyeIvNq.Uf3hE9tQALNP1Qn9sNp5x5x5x5"))
	})

	t.Run("current parameters do not need upgrade", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.False(t, hasher.NeedsUpgrade(hash))
	})

	t.Run("different cost parameters need upgrade", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		stronger := account.NewArgon2idHasherWithParams(account.Argon2Params{
			Time: 2, Memory: 1024, Threads: 1, SaltLen: 16, KeyLen: 32,
		})
		assert.True(t, stronger.NeedsUpgrade(hash))
	})

	t.Run("default hasher uses default params", func(t *testing.T) {
		hash, err := hasher.Hash("password")
		require.NoError(t, err)
		assert.True(t, account.NewArgon2idHasher().NeedsUpgrade(hash))
	})
}
