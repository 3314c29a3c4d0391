// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newTenantCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Create and toggle tenants"}

	var owner, subdomain string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant owned by an owner account",
		Args:  cobra.NoArgs,
		RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, _ []string) error {
			ownerID, err := parseID(owner, "owner_id")
			if err != nil {
				return err
			}
			tenant, err := svc.Registry.CreateTenant(ctx, ownerID, subdomain)
			if err != nil {
				return err
			}
			return printJSON(cmd, tenant)
		}),
	}
	create.Flags().StringVar(&owner, "owner", "", "owner account id")
	create.Flags().StringVar(&subdomain, "subdomain", "", "tenant subdomain")
	_ = create.MarkFlagRequired("owner")
	_ = create.MarkFlagRequired("subdomain")

	cmd.AddCommand(
		create,
		newTenantToggleCmd(rt, "activate", "Allow maintainers to log into a tenant", true),
		newTenantToggleCmd(rt, "deactivate", "Block maintainer logins into a tenant", false),
	)
	return cmd
}

func newTenantToggleCmd(rt *runtime, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withServices(rt, func(ctx context.Context, cmd *cobra.Command, svc *Services, args []string) error {
			id, err := parseTenant(args[0])
			if err != nil {
				return err
			}
			tenant, err := svc.Registry.SetTenantActive(ctx, id, active)
			if err != nil {
				return err
			}
			return printJSON(cmd, tenant)
		}),
	}
}
