// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// jsonError writes {"error": <localized message>}.
func jsonError(c echo.Context, status int, messageID string) error {
	return c.JSON(status, map[string]any{
		"error": i18n.T(c.Request().Context(), messageID),
	})
}

// jsonMessage writes {"message": <localized message>}.
func jsonMessage(c echo.Context, status int, messageID string) error {
	return c.JSON(status, map[string]any{
		"message": i18n.T(c.Request().Context(), messageID),
	})
}

// internalError logs err and writes a 500 without details.
func internalError(c echo.Context, msg string, err error, attrs ...any) error {
	slog.ErrorContext(c.Request().Context(), msg, append(attrs, "error", err)...)
	return jsonError(c, http.StatusInternalServerError, "internal_error")
}

// passwordRejected writes the policy violations of a rejected password.
// It reports false if err is not a password policy error.
func passwordRejected(c echo.Context, err error) (bool, error) {
	var pve *auth.PasswordValidationError
	if !errors.As(err, &pve) {
		return false, nil
	}
	return true, c.JSON(http.StatusBadRequest, map[string]any{
		"error":   i18n.T(c.Request().Context(), "password_rejected"),
		"details": pve.Errors,
	})
}
