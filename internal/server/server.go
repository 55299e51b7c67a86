// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/database"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/metrics"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/ratelimit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/email"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
)

// janitorInterval is how often expired counters and tokens are deleted.
const janitorInterval = 10 * time.Minute

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database (migrations run on open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(db); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	m, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	repo := repository.New(db)

	limiter, closeLimiter, err := newLimiter(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer closeLimiter()

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	sessions, err := session.NewManager(&cfg.Session, cfg.SecureCookies())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	a := newApp(appDeps{
		Config:   cfg,
		Repo:     repo,
		Limiter:  limiter,
		Notifier: notifier,
		Sessions: sessions,
		Metrics:  m,
	})

	e, err := newEcho(a)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.runJanitor(ctx, janitorInterval)

	return startWithGracefulShutdown(ctx, e, cfg)
}

// newLimiter selects Redis counters when a Redis URL is configured and the
// application database otherwise.
func newLimiter(ctx context.Context, cfg *config.Config, repo *repository.Repository) (ratelimit.Limiter, func(), error) {
	if cfg.Redis.URL == "" {
		slog.Info("rate limit counters in database")
		return ratelimit.NewSQL(repo), func() {}, nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("rate limit counters in redis")

	return ratelimit.NewRedis(client), func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}, nil
}

// newNotifier sends mail when an SMTP host is configured and logs otherwise.
func newNotifier(cfg *config.Config) (notifier, error) {
	if cfg.SMTP.Host == "" {
		slog.Warn("SMTP host not set, notifications are written to the log")
		return email.NewLogNotifier(nil, cfg.Server.BaseURL), nil
	}

	svc, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}
	return svc, nil
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
