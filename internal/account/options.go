// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tenantry Contributors

package account

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tenantry/tenantry/pkg/errutil"
)

const tracerName = "github.com/tenantry/tenantry/internal/account"

// Recorder receives outcome events for metrics. Implementations must be safe
// for concurrent use.
type Recorder interface {
	AccountCreated(role string)
	MaintainerRegistered()
	OperationFailed(operation, kind string)
	LoginAttempt(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) AccountCreated(string)          {}
func (nopRecorder) MaintainerRegistered()          {}
func (nopRecorder) OperationFailed(string, string) {}
func (nopRecorder) LoginAttempt(string)            {}

// Option configures a Registry or Resolver.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	recorder  Recorder
	usernames *UsernamePolicy
	lockout   Lockout
	now       func() time.Time
}

func defaultOptions() options {
	return options{
		logger:    slog.Default(),
		recorder:  nopRecorder{},
		usernames: &UsernamePolicy{},
		lockout:   DefaultLockout(),
		now:       time.Now,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder. A nil recorder is ignored.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithUsernamePolicy sets the reserved username policy.
func WithUsernamePolicy(p *UsernamePolicy) Option {
	return func(o *options) {
		if p != nil {
			o.usernames = p
		}
	}
}

// WithLockout sets the login lockout policy.
func WithLockout(l Lockout) Option {
	return func(o *options) {
		o.lockout = l
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// instrument wraps one service operation in a span and reports its failure
// once: metrics, span status and a single log line.
type instrument struct {
	logger   *slog.Logger
	recorder Recorder
}

func (in instrument) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "account."+op)
}

func (in instrument) finish(ctx context.Context, span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		return
	}
	kind := KindOf(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	in.recorder.OperationFailed(op, string(kind))

	level := slog.LevelWarn
	if kind == "" || kind == KindDatabase {
		level = slog.LevelError
	}
	errutil.LogErrorContext(ctx, in.logger, level, op+" failed", err)
}
