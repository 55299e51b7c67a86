// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// LoginRequest is the body of a login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// Login checks credentials and starts a session.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	user, err := h.auth.Authenticate(c.Request().Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return jsonError(c, http.StatusUnauthorized, "invalid_credentials")
	}
	if err != nil {
		return internalError(c, "login_failed", err)
	}

	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		return internalError(c, "session_create_failed", err, "user_id", user.ID)
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

// Logout ends the session.
func (h *Handlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return jsonMessage(c, http.StatusOK, "logged_out")
}
