// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tenantry/tenantry/internal/account"
	"github.com/tenantry/tenantry/pkg/errutil"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the account core with metrics and health probes",
		Long: `Open the database, optionally apply pending migrations, and serve
Prometheus metrics and health probes until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rt)
		},
	}
}

func runServe(ctx context.Context, rt *runtime) error {
	logger := rt.logger

	if rt.cfg.Database.AutoMigrate {
		if err := autoMigrate(rt); err != nil {
			return err
		}
	}

	var (
		svc      *Services
		recorder account.Recorder
		srv      ObservabilityServer
	)
	if addr := rt.cfg.Observability.Addr; addr != "" {
		// svc is assigned before Start, so probes never see it nil.
		srv = rt.deps.Observability(addr, func(ctx context.Context) error { return svc.ready(ctx) }, logger)
		recorder = srv.Metrics()
	}

	svc, err := rt.services(ctx, recorder)
	if err != nil {
		return err
	}
	defer svc.Close()

	var serveErrs <-chan error
	if srv != nil {
		if serveErrs, err = srv.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				errutil.LogError(logger, "observability shutdown failed", err)
			}
		}()
	}

	logger.InfoContext(ctx, "tenantry serving",
		"metrics_addr", rt.cfg.Observability.Addr,
		"lockout_threshold", rt.cfg.Auth.LockoutThreshold,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		return nil
	case err, ok := <-serveErrs:
		if ok && err != nil {
			return err
		}
		return nil
	}
}

func autoMigrate(rt *runtime) (err error) {
	m, err := rt.migrator()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	v, _, err := m.Version()
	if err != nil {
		return err
	}
	rt.logger.Info("schema migrated", "version", v)
	return nil
}
