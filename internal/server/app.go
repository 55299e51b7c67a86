// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/handlers"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/metrics"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/ratelimit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/admintoken"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/audit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/invitation"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/recovery"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/session"
)

// notifier delivers every kind of notification.
type notifier interface {
	recovery.Notifier
	admintoken.Notifier
	invitation.Notifier
}

type appDeps struct {
	Config   *config.Config
	Repo     *repository.Repository
	Limiter  ratelimit.Limiter
	Notifier notifier
	Sessions *session.Manager
	Metrics  *metrics.Metrics

	// Clock and CodeGenerator override the defaults when set.
	Clock         func() time.Time
	CodeGenerator func() (string, error)
	PasswordCost  int
}

// app holds the wired services.
type app struct {
	cfg         *config.Config
	limiter     ratelimit.Limiter
	metrics     *metrics.Metrics
	sessions    *session.Manager
	auth        *auth.Service
	adminTokens *admintoken.Service
	handlers    *handlers.Handlers
}

func newApp(d appDeps) *app {
	cfg := d.Config
	now := d.Clock
	if now == nil {
		now = time.Now
	}

	authSvc := auth.NewService(d.Repo, cfg.Recovery.MinPasswordLength)
	if d.PasswordCost > 0 {
		authSvc = authSvc.WithCost(d.PasswordCost)
	}
	recorder := audit.NewRecorder(d.Repo, d.Metrics).WithClock(now)

	opts := []recovery.Option{recovery.WithClock(now), recovery.WithMetrics(d.Metrics)}
	if d.CodeGenerator != nil {
		opts = append(opts, recovery.WithCodeGenerator(d.CodeGenerator))
	}
	policy := recovery.PolicyFromConfig(cfg.Recovery)

	adminTokens := admintoken.NewService(d.Repo, authSvc, d.Notifier, recorder, cfg.Recovery.AdminTokenTTL,
		admintoken.WithClock(now), admintoken.WithMetrics(d.Metrics))
	invitations := invitation.NewService(d.Repo, authSvc, d.Notifier, recorder, cfg.Recovery.InvitationTTL,
		invitation.WithClock(now), invitation.WithMetrics(d.Metrics))

	return &app{
		cfg:         cfg,
		limiter:     d.Limiter,
		metrics:     d.Metrics,
		sessions:    d.Sessions,
		auth:        authSvc,
		adminTokens: adminTokens,
		handlers: handlers.New(handlers.Deps{
			Auth:        authSvc,
			Issuer:      recovery.NewIssuer(d.Repo, d.Notifier, policy, opts...),
			Verifier:    recovery.NewVerifier(d.Repo, policy, opts...),
			Applier:     recovery.NewApplier(d.Repo, authSvc, recorder, opts...),
			AdminTokens: adminTokens,
			Invitations: invitations,
			Sessions:    d.Sessions,
		}),
	}
}

// runJanitor deletes expired rate limit counters and admin tokens until ctx ends.
func (a *app) runJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.prune(ctx)
		}
	}
}

func (a *app) prune(ctx context.Context) {
	if sql, ok := a.limiter.(*ratelimit.SQLLimiter); ok {
		n, err := sql.Prune(ctx, a.cfg.Recovery.PublicRateWindow)
		if err != nil {
			slog.ErrorContext(ctx, "rate_limit_prune_failed", "error", err)
		} else if n > 0 {
			slog.DebugContext(ctx, "rate_limit_pruned", "deleted", n)
		}
	}

	n, err := a.adminTokens.PruneExpired(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "admin_token_prune_failed", "error", err)
	} else if n > 0 {
		slog.DebugContext(ctx, "admin_tokens_pruned", "deleted", n)
	}
}
