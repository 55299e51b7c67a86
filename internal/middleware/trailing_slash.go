// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// StripTrailingSlash redirects paths with a trailing slash to the canonical
// path. It must run before routing (Echo.Pre). 308 keeps the method and body.
func StripTrailingSlash() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if path != "/" && strings.HasSuffix(path, "/") {
				target := strings.TrimSuffix(path, "/")
				if q := c.Request().URL.RawQuery; q != "" {
					target += "?" + q
				}
				return c.Redirect(http.StatusPermanentRedirect, target)
			}
			return next(c)
		}
	}
}
