// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tenantry/tenantry/internal/account"
	"github.com/tenantry/tenantry/internal/config"
	"github.com/tenantry/tenantry/internal/logging"
	"github.com/tenantry/tenantry/internal/observability"
	"github.com/tenantry/tenantry/internal/store"
	"github.com/tenantry/tenantry/internal/xdg"
)

// Migrator is the schema migrator used by the migrate commands.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer serves metrics and health probes for serve.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// Deps holds injectable dependencies. Nil fields use the defaults.
type Deps struct {
	// Services opens the account services.
	// Default: openServices (PostgreSQL).
	Services func(ctx context.Context, rt *runtime, rec account.Recorder) (*Services, error)

	// Migrator opens a schema migrator.
	// Default: store.NewMigrator
	Migrator func(databaseURL string) (Migrator, error)

	// Observability builds the metrics and health server.
	// Default: observability.NewServer
	Observability func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.Services == nil {
		out.Services = openServices
	}
	if out.Migrator == nil {
		out.Migrator = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.Observability == nil {
		out.Observability = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, logger)
		}
	}
	return &out
}

// runtime is the state shared by every subcommand once flags are parsed.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   *Deps
}

func (rt *runtime) services(ctx context.Context, rec account.Recorder) (*Services, error) {
	return rt.deps.Services(ctx, rt, rec)
}

func (rt *runtime) migrator() (Migrator, error) {
	if err := rt.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return rt.deps.Migrator(rt.cfg.Database.URL)
}

// NewRootCmd creates the tenantry command tree.
func NewRootCmd(deps *Deps) *cobra.Command {
	rt := &runtime{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:           "tenantry",
		Short:         "Tenant account identity administration",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
			}
			if path == "" {
				if path, err = xdg.DefaultConfigFile(); err != nil {
					return err
				}
			}
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Service: "tenantry",
				Version: version,
				Format:  cfg.Log.Format,
				Level:   cfg.Log.Level,
			}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.logger = logger
			return nil
		},
	}
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newMigrateCmd(rt),
		newAdminCmd(rt),
		newOwnerCmd(rt),
		newAccountCmd(rt),
		newTenantCmd(rt),
		newInviteCmd(rt),
		newRegisterCmd(rt),
		newLoginCmd(rt),
		newServeCmd(rt),
	)
	return cmd
}
