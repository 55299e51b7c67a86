// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package recovery implements email code verification for password resets and
// invitation acceptance: issuing codes, verifying them, and committing the
// change a verified code unlocks.
package recovery

import (
	"context"
	"strings"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/metrics"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
)

// Policy bounds issuance and verification.
type Policy struct {
	MaxAttempts        int
	CodeTTL            time.Duration
	MaxIssuedPerWindow int
	IssuanceWindow     time.Duration
}

// DefaultPolicy returns five attempts, ten-minute codes and three codes per hour.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultRecoveryConfig())
}

// PolicyFromConfig extracts the code policy from the recovery configuration.
func PolicyFromConfig(cfg config.RecoveryConfig) Policy {
	return Policy{
		MaxAttempts:        cfg.MaxAttempts,
		CodeTTL:            cfg.CodeTTL,
		MaxIssuedPerWindow: cfg.MaxIssuedPerWindow,
		IssuanceWindow:     cfg.IssuanceWindow,
	}
}

// Notifier delivers a freshly issued code to its subject.
type Notifier interface {
	SendVerificationCode(ctx context.Context, to string, purpose models.Purpose, code string, expiresAt time.Time) error
}

// Option configures the issuer, verifier and applier.
type Option func(*options)

type options struct {
	now     func() time.Time
	newCode func() (string, error)
	metrics *metrics.Metrics
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithCodeGenerator replaces the random code generator.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(o *options) {
		o.newCode = gen
	}
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, newCode: GenerateCode}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clock() time.Time {
	return o.now().UTC()
}

// NormalizeSubject lowercases and trims an email address used as subject identity.
func NormalizeSubject(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
