// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/appcontext"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/csrf"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/handlers"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/middleware"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// newEcho builds the Echo instance with middleware and routes.
func newEcho(a *app) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	setupMiddleware(e, a)
	if err := setupRoutes(e, a); err != nil {
		return nil, err
	}
	return e, nil
}

func setupMiddleware(e *echo.Echo, a *app) {
	e.Pre(middleware.StripTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Secure())
	if a.cfg.Server.MaxBodySize > 0 {
		e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", a.cfg.Server.MaxBodySize)))
	}
	e.Use(appcontext.Middleware())
	e.Use(middleware.Locale())
	e.Use(middleware.LoadUser(a.sessions, a.auth))
}

func setupRoutes(e *echo.Echo, a *app) error {
	h := a.handlers

	crossOrigin, err := csrf.Middleware()
	if err != nil {
		return err
	}
	public := middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: a.limiter,
		Scope:   "recovery",
		Limit:   a.cfg.Recovery.PublicRateLimit,
		Window:  a.cfg.Recovery.PublicRateWindow,
		Metrics: a.metrics,
	})

	e.GET("/health", h.Health)

	e.POST("/recovery/password/request", h.RequestPasswordReset, public)
	e.POST("/recovery/password/confirm", h.ConfirmPasswordReset, public)
	e.POST("/recovery/password/token", h.RedeemResetToken, public)
	e.POST("/invitations/:token/code", h.RequestInvitationCode, public)
	e.POST("/invitations/:token/accept", h.AcceptInvitation, public)

	e.POST("/auth/login", h.Login, public, crossOrigin)
	e.POST("/auth/logout", h.Logout, crossOrigin)

	admin := e.Group("/admin", crossOrigin, middleware.RequireAdmin())
	admin.POST("/users/:id/reset-password", h.IssueResetToken)
	admin.POST("/invitations", h.CreateInvitation)

	return nil
}
