// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// PasswordHasher is the one-way hashing oracle for account passwords.
type PasswordHasher interface {
	// Hash produces a self-describing digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on an
	// unparseable digest.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade reports whether the digest was produced with different
	// parameters than the hasher currently uses.
	NeedsUpgrade(digest string) bool
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultArgon2Params returns OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Argon2idHasher implements PasswordHasher using argon2id and PHC-formatted
// digests.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher with the default parameters.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates a hasher with custom parameters.
func NewArgon2idHasherWithParams(p Argon2Params) *Argon2idHasher {
	return &Argon2idHasher{params: p}
}

// Hash produces an argon2id digest of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", failure(KindInvalidPassword).Errorf("password cannot be empty")
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("HASH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

type phcDigest struct {
	version int
	memory  uint32
	time    uint32
	threads uint32
	salt    []byte
	key     []byte
}

func parsePHC(digest string) (*phcDigest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return nil, oops.Code("HASH_INVALID").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("HASH_INVALID").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	d := &phcDigest{}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &d.version); err != nil {
		return nil, oops.Code("HASH_INVALID").With("field", "version").Wrap(err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.time, &d.threads); err != nil {
		return nil, oops.Code("HASH_INVALID").With("field", "params").Wrap(err)
	}
	if d.threads > 255 {
		return nil, oops.Code("HASH_INVALID").Errorf("threads value %d exceeds uint8 max", d.threads)
	}

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, oops.Code("HASH_INVALID").With("field", "salt").Wrap(err)
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, oops.Code("HASH_INVALID").With("field", "key").Wrap(err)
	}
	if len(d.key) == 0 || len(d.key) > 1<<30 {
		return nil, oops.Code("HASH_INVALID").Errorf("invalid hash key length: %d", len(d.key))
	}
	return d, nil
}

// Verify checks if the password matches the digest in constant time.
func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	d, err := parsePHC(digest)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), d.salt, d.time, d.memory, uint8(d.threads), uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade returns true for non-argon2id digests and for argon2id
// digests whose cost parameters differ from the hasher's.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	d, err := parsePHC(digest)
	if err != nil {
		return true
	}
	return d.version != argon2.Version ||
		d.memory != h.params.Memory ||
		d.time != h.params.Time ||
		d.threads != uint32(h.params.Threads) ||
		uint32(len(d.key)) != h.params.KeyLen
}
