// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

// Package xdg locates tenantry files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "tenantry"

// ConfigDir returns the XDG config directory for tenantry.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the path of the default config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultConfigFile returns ConfigFile when it exists and "" when it does
// not. Other stat failures are returned.
func DefaultConfigFile() (string, error) {
	path := ConfigFile()
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("CONFIG_READ_FAILED").With("path", path).Errorf("%s is a directory", path)
	}
	return path, nil
}
