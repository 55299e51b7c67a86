// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/metrics"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/ratelimit"
	"github.com/labstack/echo/v4"
)

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	Scope   string // key prefix, e.g. "recovery"
	Limit   int
	Window  time.Duration
	Metrics *metrics.Metrics
}

// RateLimit counts requests per client IP under Scope. When the limiter's
// store fails the request is let through.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.Scope + ":" + c.RealIP()

			res, err := cfg.Limiter.Check(ctx, key, cfg.Limit, cfg.Window)
			if err != nil {
				slog.WarnContext(ctx, "rate_limit_unavailable", "scope", cfg.Scope, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := max(int(res.RetryAfter.Seconds()+0.5), 1)
				h.Set("Retry-After", strconv.Itoa(retry))
				cfg.Metrics.RecordRateLimitRejection(ctx, cfg.Scope)
				slog.InfoContext(ctx, "rate_limited", "scope", cfg.Scope, "ip", c.RealIP())
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error": i18n.T(ctx, "too_many_requests"),
				})
			}

			return next(c)
		}
	}
}
