// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"bufio"
	"encoding/json"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tenantry/tenantry/internal/account"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.With("operation", "write output").Wrap(err)
	}
	return nil
}

// credentialFlags collects the credential flags shared by create and
// register commands.
type credentialFlags struct {
	username    string
	password    string
	email       string
	displayName string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.username, "username", "", "login name")
	cmd.Flags().StringVar(&f.password, "password", "", "password (read from stdin when omitted)")
	cmd.Flags().StringVar(&f.email, "email", "", "contact email")
	cmd.Flags().StringVar(&f.displayName, "display-name", "", "display name (defaults to the username)")
}

func (f *credentialFlags) credentials(cmd *cobra.Command) (account.Credentials, error) {
	password := f.password
	if password == "" {
		var err error
		if password, err = readSecret(cmd); err != nil {
			return account.Credentials{}, err
		}
	}
	return account.Credentials{
		Username:    f.username,
		Password:    password,
		Email:       f.email,
		DisplayName: f.displayName,
	}, nil
}

// readSecret reads one line from stdin. An empty stdin yields "".
func readSecret(cmd *cobra.Command) (string, error) {
	sc := bufio.NewScanner(cmd.InOrStdin())
	if sc.Scan() {
		return strings.TrimRight(sc.Text(), "\r"), nil
	}
	if err := sc.Err(); err != nil {
		return "", oops.With("operation", "read password").Wrap(err)
	}
	return "", nil
}

func parseID(raw, what string) (ulid.ULID, error) {
	id, err := ulid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ulid.ULID{}, oops.Code("INVALID_ARGUMENT").With(what, raw).Wrapf(err, "invalid %s", what)
	}
	return id, nil
}

func parseTenant(raw string) (account.TenantID, error) {
	id, err := account.ParseTenantIdentifier(raw)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, oops.Code("INVALID_ARGUMENT").Errorf("tenant id is required")
	}
	return *id, nil
}
