// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON HTTP endpoints.
package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/admintoken"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/invitation"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/recovery"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/session"
	"github.com/labstack/echo/v4"
)

// Deps are the services the handlers call.
type Deps struct {
	Auth        *auth.Service
	Issuer      *recovery.Issuer
	Verifier    *recovery.Verifier
	Applier     *recovery.Applier
	AdminTokens *admintoken.Service
	Invitations *invitation.Service
	Sessions    *session.Manager
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	auth        *auth.Service
	issuer      *recovery.Issuer
	verifier    *recovery.Verifier
	applier     *recovery.Applier
	adminTokens *admintoken.Service
	invitations *invitation.Service
	sessions    *session.Manager
}

// New creates a new Handlers instance.
func New(d Deps) *Handlers {
	return &Handlers{
		auth:        d.Auth,
		issuer:      d.Issuer,
		verifier:    d.Verifier,
		applier:     d.Applier,
		adminTokens: d.AdminTokens,
		invitations: d.Invitations,
		sessions:    d.Sessions,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
