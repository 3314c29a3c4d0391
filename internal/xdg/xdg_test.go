// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/pkg/errutil"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/tenantry", ConfigDir())
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	assert.Equal(t, "/home/testuser/.config/tenantry", ConfigDir())
	assert.Equal(t, "/home/testuser/.config/tenantry/config.yaml", ConfigFile())
}

func TestDefaultConfigFile_Missing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path, err := DefaultConfigFile()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestDefaultConfigFile_Present(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tenantry"), 0o700))
	want := filepath.Join(base, "tenantry", "config.yaml")
	require.NoError(t, os.WriteFile(want, []byte("log:\n  level: debug\n"), 0o600))

	path, err := DefaultConfigFile()
	require.NoError(t, err)
	assert.Equal(t, want, path)
}

func TestDefaultConfigFile_Directory(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tenantry", "config.yaml"), 0o700))

	_, err := DefaultConfigFile()
	errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
}
