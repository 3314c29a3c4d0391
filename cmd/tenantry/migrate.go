// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tenantry/tenantry/internal/store"
)

func newMigrateCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert every migration (drops all account data)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(rt, func(cmd *cobra.Command, m Migrator, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").
					Hint("re-run with --yes").
					Errorf("migrate down drops every account and tenant")
			}
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("All migrations reverted")
			return nil
		}),
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm the destructive rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(rt, func(cmd *cobra.Command, m Migrator, _ []string) error {
				if err := m.Up(); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
		down,
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations; negative N reverts (migrate steps -- -1)",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(rt, func(cmd *cobra.Command, m Migrator, args []string) error {
				n, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				if err := m.Steps(n); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(rt, func(cmd *cobra.Command, m Migrator, _ []string) error {
				return printVersion(cmd, m)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(rt, func(cmd *cobra.Command, m Migrator, _ []string) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				for _, mig := range st.Applied {
					cmd.Printf("  applied  %s\n", mig.Name)
				}
				for _, mig := range st.Pending {
					cmd.Printf("  pending  %s\n", mig.Name)
				}
				if st.Dirty {
					cmd.Printf("version %d is dirty; fix the schema and run migrate force\n", st.Current)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Record VERSION as applied without running it",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(rt, func(cmd *cobra.Command, m Migrator, args []string) error {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				if err := m.Force(v); err != nil {
					return err
				}
				return printVersion(cmd, m)
			}),
		},
	)
	return cmd
}

func withMigrator(rt *runtime, run func(*cobra.Command, Migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		m, err := rt.migrator()
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return run(cmd, m, args)
	}
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	name, err := store.MigrationName(v)
	if err != nil {
		return err
	}
	line := "schema version " + strconv.FormatUint(uint64(v), 10)
	if name != "" {
		line += " (" + name + ")"
	}
	if dirty {
		line += " [dirty]"
	}
	cmd.Println(line)
	return nil
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return n, nil
}
