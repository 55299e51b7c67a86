// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics holds the OpenTelemetry instruments for the recovery flows.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "codeberg.org/oliverandrich/helpdesk-recovery"

// Metrics records security-relevant counters. A nil *Metrics discards everything.
type Metrics struct {
	CodesIssued          metric.Int64Counter
	Verifications        metric.Int64Counter
	OutcomesApplied      metric.Int64Counter
	NotificationFailures metric.Int64Counter
	RateLimitRejections  metric.Int64Counter
	AuditWriteFailures   metric.Int64Counter
	AdminTokens          metric.Int64Counter
}

// New creates all instruments on the given meter provider.
// A nil provider uses the global one.
func New(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)

	m := &Metrics{}
	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&m.CodesIssued, "recovery.codes.issued", "Code issuance requests by outcome", "{request}"},
		{&m.Verifications, "recovery.verifications", "Code verifications by outcome", "{verification}"},
		{&m.OutcomesApplied, "recovery.outcomes.applied", "Privileged changes committed after verification", "{change}"},
		{&m.NotificationFailures, "recovery.notifications.failed", "Notifications that could not be delivered", "{notification}"},
		{&m.RateLimitRejections, "recovery.rate_limit.rejected", "Requests rejected by the public rate limit", "{request}"},
		{&m.AuditWriteFailures, "recovery.audit.write_failures", "Audit entries that could not be persisted", "{entry}"},
		{&m.AdminTokens, "recovery.admin_tokens", "Admin recovery token operations by outcome", "{token}"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter: %w", c.name, err)
		}
		*c.dst = counter
	}

	return m, nil
}

// RecordIssue counts a code issuance outcome.
func (m *Metrics) RecordIssue(ctx context.Context, purpose, status string) {
	if m == nil {
		return
	}
	m.CodesIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("status", status),
	))
}

// RecordVerification counts a verification outcome.
func (m *Metrics) RecordVerification(ctx context.Context, purpose, status string) {
	if m == nil {
		return
	}
	m.Verifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("status", status),
	))
}

// RecordOutcomeApplied counts a committed password reset or account creation.
func (m *Metrics) RecordOutcomeApplied(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.OutcomesApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// RecordNotificationFailure counts an undelivered notification.
func (m *Metrics) RecordNotificationFailure(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.NotificationFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordRateLimitRejection counts a request denied by a rate limit.
func (m *Metrics) RecordRateLimitRejection(ctx context.Context, scope string) {
	if m == nil {
		return
	}
	m.RateLimitRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}

// RecordAuditWriteFailure counts an audit entry that was dropped.
func (m *Metrics) RecordAuditWriteFailure(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

// RecordAdminToken counts an admin token issuance or redemption outcome.
func (m *Metrics) RecordAdminToken(ctx context.Context, operation, status string) {
	if m == nil {
		return
	}
	m.AdminTokens.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}
