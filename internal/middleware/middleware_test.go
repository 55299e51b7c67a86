// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/appcontext"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/middleware"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/ratelimit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/session"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHashKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	mgr, err := session.NewManager(&config.SessionConfig{
		CookieName: "_session",
		MaxAge:     3600,
		HashKey:    testHashKey,
	}, false)
	require.NoError(t, err)
	return mgr
}

// newUserEcho serves GET / and records the user seen by the handler.
func newUserEcho(t *testing.T, mws ...echo.MiddlewareFunc) (*echo.Echo, **models.User) {
	t.Helper()
	e := echo.New()
	e.Use(appcontext.Middleware())
	e.Use(mws...)

	var seen *models.User
	e.GET("/", func(c echo.Context) error {
		seen = appcontext.UserFrom(c)
		return c.NoContent(http.StatusOK)
	})
	return e, &seen
}

func TestLoadUser_NoSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	e, seen := newUserEcho(t, middleware.LoadUser(newSessions(t), auth.NewService(repo, 8)))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, *seen)
}

func TestLoadUser_WithSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "agent@example.com", models.RoleAgent)
	sessions := newSessions(t)
	cookie, err := sessions.Create(user.ID, user.Email)
	require.NoError(t, err)

	e, seen := newUserEcho(t, middleware.LoadUser(sessions, auth.NewService(repo, 8)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, *seen)
	assert.Equal(t, user.ID, (*seen).ID)
}

func TestLoadUser_InvalidSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	e, seen := newUserEcho(t, middleware.LoadUser(newSessions(t), auth.NewService(repo, 8)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "_session", Value: "invalid-cookie-data"})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, *seen)
}

func TestLoadUser_UserNotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	sessions := newSessions(t)
	cookie, err := sessions.Create(99999, "gone@example.com")
	require.NoError(t, err)

	e, seen := newUserEcho(t, middleware.LoadUser(sessions, auth.NewService(repo, 8)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, *seen)
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name   string
		user   *models.User
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"agent", &models.User{ID: 2, Role: models.RoleAgent}, http.StatusForbidden},
		{"admin", &models.User{ID: 1, Role: models.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(appcontext.Middleware())
			e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					appcontext.SetUser(c, tt.user)
					return next(c)
				}
			})
			e.Use(middleware.RequireAdmin())
			e.POST("/admin", func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin", nil))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

type failingLimiter struct{}

func (failingLimiter) Check(context.Context, string, int, time.Duration) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("store down")
}

func newRateLimitedEcho(limiter ratelimit.Limiter, limit int) *echo.Echo {
	e := echo.New()
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Limiter: limiter,
		Scope:   "recovery",
		Limit:   limit,
		Window:  time.Minute,
	}))
	e.POST("/recovery/password/request", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return e
}

func postFrom(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/recovery/password/request", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	e := newRateLimitedEcho(ratelimit.NewSQL(repo), 2)

	assert.Equal(t, http.StatusOK, postFrom(e, "10.0.0.1").Code)
	second := postFrom(e, "10.0.0.1")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := postFrom(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.NotEmpty(t, third.Header().Get("Retry-After"))

	// other clients have their own budget
	assert.Equal(t, http.StatusOK, postFrom(e, "10.0.0.2").Code)
}

func TestRateLimit_RetryAfterFollowsLimiterClock(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	e := newRateLimitedEcho(ratelimit.NewSQL(repo, ratelimit.WithClock(clock.Now)), 1)

	require.Equal(t, http.StatusOK, postFrom(e, "10.0.0.1").Code)

	clock.Advance(45 * time.Second)
	rec := postFrom(e, "10.0.0.1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "15", rec.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	e := newRateLimitedEcho(failingLimiter{}, 1)

	for range 3 {
		assert.Equal(t, http.StatusOK, postFrom(e, "10.0.0.1").Code)
	}
}

func TestLocale(t *testing.T) {
	require.NoError(t, i18n.Init())

	e := echo.New()
	e.Use(middleware.Locale())

	var locale string
	e.GET("/", func(c echo.Context) error {
		locale = i18n.GetLocale(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	t.Run("English header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", "en-US")
		e.ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, strings.HasPrefix(locale, "en"), "expected locale to start with 'en', got %s", locale)
	})

	t.Run("German header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Language", "de-DE")
		e.ServeHTTP(httptest.NewRecorder(), req)

		assert.True(t, strings.HasPrefix(locale, "de"), "expected locale to start with 'de', got %s", locale)
	})
}

func TestStripTrailingSlash(t *testing.T) {
	e := echo.New()
	e.Pre(middleware.StripTrailingSlash())
	e.POST("/auth/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login/?next=x", nil))

	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/auth/login?next=x", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestLogger(t *testing.T) {
	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/fail", func(echo.Context) error { return echo.NewHTTPError(http.StatusTeapot) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
