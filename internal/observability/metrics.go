// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tenantry/tenantry/internal/account"
)

// Metrics records account events as Prometheus counters. It implements
// account.Recorder.
type Metrics struct {
	AccountsCreated       *prometheus.CounterVec
	MaintainersRegistered prometheus.Counter
	OperationFailures     *prometheus.CounterVec
	LoginAttempts         *prometheus.CounterVec
}

// NewMetrics creates the account counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AccountsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_accounts_created_total",
				Help: "Accounts created, by role",
			},
			[]string{"role"},
		),
		MaintainersRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tenantry_maintainers_registered_total",
				Help: "Transient accounts promoted to maintainer",
			},
		),
		OperationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_operation_failures_total",
				Help: "Failed registry and resolver operations, by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantry_login_attempts_total",
				Help: "Login attempts, by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.AccountsCreated, m.MaintainersRegistered, m.OperationFailures, m.LoginAttempts)
	return m
}

// AccountCreated implements account.Recorder.
func (m *Metrics) AccountCreated(role string) {
	m.AccountsCreated.WithLabelValues(role).Inc()
}

// MaintainerRegistered implements account.Recorder.
func (m *Metrics) MaintainerRegistered() {
	m.MaintainersRegistered.Inc()
}

// OperationFailed implements account.Recorder. An empty kind is reported
// as "unknown".
func (m *Metrics) OperationFailed(operation, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.OperationFailures.WithLabelValues(operation, kind).Inc()
}

// LoginAttempt implements account.Recorder.
func (m *Metrics) LoginAttempt(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

var _ account.Recorder = (*Metrics)(nil)
