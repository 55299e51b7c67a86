// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package csrf rejects cross-origin browser requests to cookie-authenticated routes.
package csrf

import (
	"fmt"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"github.com/labstack/echo/v4"
)

// Middleware rejects unsafe requests that a browser marks as cross-origin
// (Sec-Fetch-Site or Origin). Requests from trustedOrigins are allowed;
// requests without either header are not browser requests and pass.
func Middleware(trustedOrigins ...string) (echo.MiddlewareFunc, error) {
	protection := http.NewCrossOriginProtection()
	for _, origin := range trustedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid trusted origin %q: %w", origin, err)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := protection.Check(c.Request()); err != nil {
				slog.WarnContext(c.Request().Context(), "cross_origin_request_rejected",
					"path", c.Path(),
					"origin", c.Request().Header.Get("Origin"),
				)
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": i18n.T(c.Request().Context(), "forbidden"),
				})
			}
			return next(c)
		}
	}, nil
}
