// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit provides fixed-window request counters backed by
// Redis or by the application database.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of counting one request against a key.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	// RetryAfter is the time left in the window, measured on the limiter's clock.
	RetryAfter time.Duration
}

// Limiter counts requests per key in fixed windows.
// A denied request is reported through Result, never as an error; an error
// means the backing store failed.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the time source used for window arithmetic.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func result(count, limit int, now, resetAt time.Time) Result {
	return Result{
		Allowed:    count <= limit,
		Remaining:  max(limit-count, 0),
		ResetAt:    resetAt,
		RetryAfter: max(resetAt.Sub(now), 0),
	}
}
