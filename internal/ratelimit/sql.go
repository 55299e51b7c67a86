// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
)

// SQLLimiter keeps counters in the rate_limit_counters table.
type SQLLimiter struct {
	repo *repository.Repository
	opts options
}

// NewSQL creates a limiter backed by the application database.
func NewSQL(repo *repository.Repository, opts ...Option) *SQLLimiter {
	return &SQLLimiter{repo: repo, opts: newOptions(opts)}
}

// Check counts one request for key.
func (l *SQLLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.opts.now()
	c, err := l.repo.HitRateLimitCounter(ctx, key, limit, now.UnixMilli(), window.Milliseconds())
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %q: %w", key, err)
	}

	resetAt := time.UnixMilli(c.WindowStartMs).Add(window).UTC()
	return result(c.Count, limit, now, resetAt), nil
}

// Prune deletes counters whose window of the given length has ended.
func (l *SQLLimiter) Prune(ctx context.Context, window time.Duration) (int64, error) {
	return l.repo.DeleteExpiredRateLimitCounters(ctx, l.opts.now().UnixMilli(), window.Milliseconds())
}
