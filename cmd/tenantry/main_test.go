// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/tenantry/tenantry/internal/account"
	"github.com/tenantry/tenantry/internal/account/accounttest"
	"github.com/tenantry/tenantry/internal/observability"
	"github.com/tenantry/tenantry/internal/store"
)

type fakeMigrator struct {
	upErr   error
	version uint
	dirty   bool
	ups     int
	downs   int
	steps   []int
	forced  []int
	closed  int
	status  store.Status
}

func (m *fakeMigrator) Up() error {
	m.ups++
	if m.upErr == nil {
		m.version = 2
	}
	return m.upErr
}

func (m *fakeMigrator) Down() error {
	m.downs++
	m.version = 0
	return nil
}

func (m *fakeMigrator) Steps(n int) error {
	m.steps = append(m.steps, n)
	m.version = uint(int(m.version) + n)
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, m.dirty, nil }

func (m *fakeMigrator) Force(v int) error {
	m.forced = append(m.forced, v)
	m.version = uint(v)
	return nil
}

func (m *fakeMigrator) Status() (store.Status, error) { return m.status, nil }

func (m *fakeMigrator) Close() error {
	m.closed++
	return nil
}

type fakeObservability struct {
	addr    string
	ready   observability.ReadinessChecker
	metrics *observability.Metrics
	started bool
	stopped bool
}

func (f *fakeObservability) Start() (<-chan error, error) {
	f.started = true
	return make(chan error), nil
}

func (f *fakeObservability) Stop(context.Context) error {
	f.stopped = true
	return nil
}

func (f *fakeObservability) Addr() string                    { return f.addr }
func (f *fakeObservability) Metrics() *observability.Metrics { return f.metrics }

// harness runs the CLI against an in-memory store.
type harness struct {
	store       *accounttest.Store
	migrator    *fakeMigrator
	migratorURL string
	obs         *fakeObservability
	recorder    account.Recorder
}

func newHarness(t) *harness {
	return &harness{
		store:    accounttest.NewStore(),
		migrator: &fakeMigrator{version: 1},
		obs:      &fakeObservability{metrics: observability.NewMetrics(prometheus.NewRegistry())},
	}
}

func (h *harness) deps() *Deps {
	return &Deps{
		Services: func(_ context.Context, rt *runtime, rec account.Recorder) (*Services, error) {
			h.recorder = rec
			return newServices(h.store.Deps(accounttest.FastHasher(), account.NewRandomTokenIssuer(16)), rt, rec)
		},
		Migrator: func(url string) (Migrator, error) {
			h.migratorURL = url
			return h.migrator, nil
		},
		Observability: func(addr string, ready observability.ReadinessChecker, _ *slog.Logger) ObservabilityServer {
			h.obs.addr = addr
			h.obs.ready = ready
			return h.obs
		},
	}
}

func (h *harness) runCtx(ctx context.Context, stdin string, args ...string) (string, error) {
	cmd := NewRootCmd(h.deps())
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (h *harness) run(args ...string) (string, error) {
	return h.runCtx(context.Background(), "", args...)
}

// mustJSON runs args and decodes the JSON printed on stdout into v.
func (h *harness) mustJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := h.run(args...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}
