// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"context"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tenantry/tenantry/internal/account"
)

// withServices opens the account services for the duration of run.
func withServices(rt *runtime, run func(ctx context.Context, cmd *cobra.Command, svc *Services, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := rt.services(ctx, nil)
		if err != nil {
			return err
		}
		defer svc.Close()
		return run(ctx, cmd, svc, args)
	}
}

func newAdminCmd(rt *runtime) *cobra.Command {
	return newGlobalAccountCmd(rt, "admin", "Platform administrators", (*account.Registry).CreateAdmin)
}

func newOwnerCmd(rt *runtime) *cobra.Command {
	return newGlobalAccountCmd(rt, "owner", "Tenant owners", (*account.Registry).CreateOwner)
}

func newGlobalAccountCmd(
	rt *runtime, use, short string,
	create func(*account.Registry, context.Context, account.Credentials) (*account.View, error),
) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}

	var creds credentialFlags
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a " + use + " account",
		Args:  cobra.NoArgs,
		RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, _ []string) error {
			c, err := creds.credentials(cmd)
			if err != nil {
				return err
			}
			view, err := create(svc.Registry, ctx, c)
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		}),
	}
	creds.bind(createCmd)
	cmd.AddCommand(createCmd)
	return cmd
}

func newAccountCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Inspect and delete accounts"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get ID",
			Short: "Show an account",
			Args:  cobra.ExactArgs(1),
			RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, args []string) error {
				id, err := parseID(args[0], "account_id")
				if err != nil {
					return err
				}
				view, err := svc.Registry.GetAccount(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, view)
			}),
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Soft delete an account",
			Args:  cobra.ExactArgs(1),
			RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, args []string) error {
				id, err := parseID(args[0], "account_id")
				if err != nil {
					return err
				}
				if err := svc.Registry.DeleteAccount(ctx, id); err != nil {
					return err
				}
				cmd.Printf("deleted %s\n", id)
				return nil
			}),
		},
	)
	return cmd
}

func newInviteCmd(rt *runtime) *cobra.Command {
	var tenant, character string
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create a transient maintainer and print its invite token",
		Args:  cobra.NoArgs,
		RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, _ []string) error {
			var (
				view *account.View
				err  error
			)
			switch {
			case character != "":
				id, perr := parseID(character, "character_id")
				if perr != nil {
					return perr
				}
				view, err = svc.Registry.CreateTransientMaintainerForCharacter(ctx, id)
			default:
				id, perr := parseTenant(tenant)
				if perr != nil {
					return perr
				}
				view, err = svc.Registry.CreateTransientMaintainer(ctx, id)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		}),
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant to invite into")
	cmd.Flags().StringVar(&character, "character", "", "character to link; the tenant is taken from it")
	cmd.MarkFlagsMutuallyExclusive("tenant", "character")
	cmd.MarkFlagsOneRequired("tenant", "character")
	return cmd
}

func newRegisterCmd(rt *runtime) *cobra.Command {
	var (
		token, accountID string
		creds            credentialFlags
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a transient maintainer with credentials",
		Args:  cobra.NoArgs,
		RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, _ []string) error {
			c, err := creds.credentials(cmd)
			if err != nil {
				return err
			}
			var view *account.View
			if accountID != "" {
				id, perr := parseID(accountID, "account_id")
				if perr != nil {
					return perr
				}
				view, err = svc.Registry.RegisterMaintainer(ctx, id, c)
			} else {
				view, err = svc.Registry.RegisterWithInvite(ctx, token, c)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, view)
		}),
	}
	cmd.Flags().StringVar(&token, "token", "", "invite token")
	cmd.Flags().StringVar(&accountID, "account", "", "transient account id")
	cmd.MarkFlagsMutuallyExclusive("token", "account")
	cmd.MarkFlagsOneRequired("token", "account")
	creds.bind(cmd)
	return cmd
}

func newLoginCmd(rt *runtime) *cobra.Command {
	var tenant, username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check a username and password",
		Long: `Resolve the composite login identifier and verify the password.
Omit --tenant to log in as an admin or owner.`,
		Args: cobra.NoArgs,
		RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, _ []string) error {
			if password == "" {
				var err error
				if password, err = readSecret(cmd); err != nil {
					return err
				}
			}
			res, err := svc.Resolver.Authenticate(ctx, account.LoginRequest{
				TenantID: tenant,
				Username: username,
				Password: password,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Authenticated {
				return oops.Code("LOGIN_REJECTED").With("reason", res.Reason).Errorf("login rejected: %s", res.Reason)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id for maintainers")
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&password, "password", "", "password (read from stdin when omitted)")
	return cmd
}
