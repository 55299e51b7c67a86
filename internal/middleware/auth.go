// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides the Echo middleware of the HTTP surface.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/appcontext"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/session"
	"github.com/labstack/echo/v4"
)

// UserLoader loads the session user.
type UserLoader interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// LoadUser puts the session user into the appcontext.Context. Requests
// without a valid session, or whose user no longer exists, stay anonymous.
func LoadUser(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			data, err := sessions.Parse(c.Request())
			if err != nil || data == nil {
				return next(c)
			}

			user, err := users.UserByID(c.Request().Context(), data.UserID)
			if err != nil {
				slog.DebugContext(c.Request().Context(), "session_user_not_loaded", "user_id", data.UserID, "error", err)
				return next(c)
			}

			appcontext.SetUser(c, user)
			return next(c)
		}
	}
}

// RequireAdmin rejects anonymous requests with 401 and non-admins with 403.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := appcontext.UserFrom(c)
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": i18n.T(c.Request().Context(), "unauthorized"),
				})
			}
			if !user.IsAdmin() {
				slog.WarnContext(c.Request().Context(), "admin_access_denied", "user_id", user.ID, "path", c.Path())
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": i18n.T(c.Request().Context(), "forbidden"),
				})
			}
			return next(c)
		}
	}
}
