// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
)

// RateLimitCounter is the stored state of a fixed-window counter.
type RateLimitCounter struct {
	Count         int   `db:"count"`
	WindowStartMs int64 `db:"window_start_ms"`
}

// HitRateLimitCounter counts one request against key in a single statement.
// A counter whose window has elapsed restarts at 1; a counter above limit is not incremented further.
func (r *Repository) HitRateLimitCounter(ctx context.Context, key string, limit int, nowMs, windowMs int64) (*RateLimitCounter, error) {
	var c RateLimitCounter
	err := r.q.GetContext(ctx, &c,
		`INSERT INTO rate_limit_counters (key, count, window_start_ms) VALUES (?, 1, ?)
		 ON CONFLICT (key) DO UPDATE SET
		     count = CASE
		         WHEN ? - rate_limit_counters.window_start_ms >= ? THEN 1
		         WHEN rate_limit_counters.count > ? THEN rate_limit_counters.count
		         ELSE rate_limit_counters.count + 1
		     END,
		     window_start_ms = CASE
		         WHEN ? - rate_limit_counters.window_start_ms >= ? THEN ?
		         ELSE rate_limit_counters.window_start_ms
		     END
		 RETURNING count, window_start_ms`,
		key, nowMs,
		nowMs, windowMs, limit,
		nowMs, windowMs, nowMs)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteExpiredRateLimitCounters removes counters whose window ended before nowMs.
func (r *Repository) DeleteExpiredRateLimitCounters(ctx context.Context, nowMs, windowMs int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM rate_limit_counters WHERE ? - window_start_ms >= ?`, nowMs, windowMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
