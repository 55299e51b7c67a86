// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/ratelimit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLLimiter_FixedWindow(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := ratelimit.NewSQL(repo, ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res, err := l.Check(ctx, "recovery:10.0.0.1", 10, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 10-i, res.Remaining)
		assert.Equal(t, clock.Now().Add(time.Minute), res.ResetAt)
	}

	clock.Advance(59 * time.Second)
	res, err := l.Check(ctx, "recovery:10.0.0.1", 10, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	clock.Advance(time.Second)
	res, err = l.Check(ctx, "recovery:10.0.0.1", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 9, res.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), res.ResetAt)
}

func TestSQLLimiter_Concurrent(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	l := ratelimit.NewSQL(repo)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := l.Check(ctx, "burst", 10, time.Minute)
			if err != nil {
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestSQLLimiter_Prune(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	l := ratelimit.NewSQL(repo, ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	_, err := l.Check(ctx, "k", 1, time.Minute)
	require.NoError(t, err)

	n, err := l.Prune(ctx, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(time.Minute)
	n, err = l.Prune(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
