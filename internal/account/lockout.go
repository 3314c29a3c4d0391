// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import "time"

// Default lockout settings.
const (
	DefaultLockoutThreshold = 7
	DefaultLockoutDuration  = 15 * time.Minute
)

// Lockout configures temporary lockout after repeated login failures.
// A zero Threshold disables lockout.
type Lockout struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockout returns the default lockout settings.
func DefaultLockout() Lockout {
	return Lockout{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// Until returns the lockout timestamp for the given failure count, or nil if
// failures is below the threshold.
func (l Lockout) Until(failures int, now time.Time) *time.Time {
	if l.Threshold <= 0 || failures < l.Threshold {
		return nil
	}
	until := now.Add(l.Duration)
	return &until
}
