// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"context"

	"github.com/tenantry/tenantry/internal/account"
	"github.com/tenantry/tenantry/internal/account/postgres"
	"github.com/tenantry/tenantry/internal/observability"
	"github.com/tenantry/tenantry/internal/store"
)

// Services are the account services a command works with.
type Services struct {
	Registry *account.Registry
	Resolver *account.Resolver
	// Ready reports database health for the readiness probe.
	Ready observability.ReadinessChecker
	close func()
}

// Close releases the underlying connections.
func (s *Services) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

func (s *Services) ready(ctx context.Context) error {
	if s == nil || s.Ready == nil {
		return nil
	}
	return s.Ready(ctx)
}

func openServices(ctx context.Context, rt *runtime, rec account.Recorder) (*Services, error) {
	cfg := rt.cfg
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	opts := store.DefaultOptions()
	opts.MaxConns = cfg.Database.MaxConns
	opts.ConnectRetries = cfg.Database.ConnectRetries
	opts.Logger = rt.logger
	pool, err := store.Open(ctx, cfg.Database.URL, opts)
	if err != nil {
		return nil, err
	}

	deps := postgres.Deps(pool, cfg.Auth.Hasher(), account.NewRandomTokenIssuer(cfg.Auth.InviteTokenBytes))
	svc, err := newServices(deps, rt, rec)
	if err != nil {
		pool.Close()
		return nil, err
	}
	svc.Ready = pool.Ping
	svc.close = pool.Close
	return svc, nil
}

// newServices builds the registry and resolver over deps using the
// configured policies.
func newServices(deps account.RegistryDeps, rt *runtime, rec account.Recorder) (*Services, error) {
	policy, err := rt.cfg.Auth.UsernamePolicy()
	if err != nil {
		return nil, err
	}
	opts := []account.Option{
		account.WithLogger(rt.logger),
		account.WithUsernamePolicy(policy),
		account.WithLockout(rt.cfg.Auth.Lockout()),
	}
	if rec != nil {
		opts = append(opts, account.WithRecorder(rec))
	}

	registry, err := account.NewRegistry(deps, opts...)
	if err != nil {
		return nil, err
	}
	resolver, err := account.NewResolver(deps.Accounts, deps.Tenants, deps.Hasher, opts...)
	if err != nil {
		return nil, err
	}
	return &Services{Registry: registry, Resolver: resolver}, nil
}
