// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EmbeddedFiles(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for _, want := range []string{
		"000001_accounts.up.sql",
		"000001_accounts.down.sql",
		"000002_characters.up.sql",
		"000002_characters.down.sql",
	} {
		assert.True(t, names[want], "missing %s", want)
	}

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	for name := range names {
		assert.Regexp(t, pattern, name)
	}

	// Every up has a matching down.
	for name := range names {
		if base, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, names[base+".down.sql"], "%s has no down migration", base)
		}
	}
}
