// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"regexp"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// MaxSubdomainLength is the DNS label limit.
const MaxSubdomainLength = 63

var subdomainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// UsernamePolicy rejects usernames matching reserved glob patterns.
// The zero value reserves nothing.
type UsernamePolicy struct {
	patterns []string
	reserved []glob.Glob
}

// NewUsernamePolicy compiles reserved username patterns. Patterns are
// matched against the lower-cased username.
func NewUsernamePolicy(patterns ...string) (*UsernamePolicy, error) {
	p := &UsernamePolicy{}
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, oops.Code("INVALID_RESERVED_PATTERN").With("pattern", pattern).Wrap(err)
		}
		p.patterns = append(p.patterns, pattern)
		p.reserved = append(p.reserved, g)
	}
	return p, nil
}

// ValidateUsername rejects blank usernames and reserved names.
func (p *UsernamePolicy) ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return failure(KindInvalidUsername).Errorf("username cannot be empty")
	}
	if p == nil {
		return nil
	}
	lower := strings.ToLower(username)
	for i, g := range p.reserved {
		if g.Match(lower) {
			return failure(KindInvalidUsername).
				With("username", username).
				With("pattern", p.patterns[i]).
				Errorf("username %q is reserved", username)
		}
	}
	return nil
}

// ValidatePassword rejects blank passwords.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return failure(KindInvalidPassword).Errorf("password cannot be empty")
	}
	return nil
}

// NormalizeSubdomain lower-cases and trims a subdomain.
func NormalizeSubdomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateSubdomain checks that s is a single DNS label.
func ValidateSubdomain(s string) error {
	if s == "" {
		return failure(KindInvalidSubdomain).Errorf("subdomain cannot be empty")
	}
	if len(s) > MaxSubdomainLength {
		return failure(KindInvalidSubdomain).
			With("max", MaxSubdomainLength).
			Errorf("subdomain must be at most %d characters", MaxSubdomainLength)
	}
	if !subdomainRegex.MatchString(s) {
		return failure(KindInvalidSubdomain).
			With("subdomain", s).
			Errorf("subdomain must contain only lowercase letters, digits, and inner hyphens")
	}
	return nil
}
