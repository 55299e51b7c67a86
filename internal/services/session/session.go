// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package session keeps the signed-in user in a signed cookie.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"github.com/gorilla/securecookie"
)

const keyLength = 32

// Data is the session payload.
type Data struct {
	UserID    int64     `json:"uid"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"exp"`
}

// Option configures the Manager.
type Option func(*Manager)

// WithClock sets the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager creates and parses session cookies.
type Manager struct {
	codec  *securecookie.SecureCookie
	name   string
	maxAge int
	secure bool
	now    func() time.Time
}

// NewManager creates a Manager. An empty hash key generates a random one,
// which invalidates sessions on restart.
func NewManager(cfg *config.SessionConfig, secure bool, opts ...Option) (*Manager, error) {
	hashKey, err := decodeKey(cfg.HashKey, "hash")
	if err != nil {
		return nil, err
	}
	if hashKey == nil {
		slog.Warn("session hash key not set, generating an ephemeral key")
		hashKey = make([]byte, keyLength)
		if _, err := rand.Read(hashKey); err != nil {
			return nil, fmt.Errorf("failed to generate session hash key: %w", err)
		}
	}

	blockKey, err := decodeKey(cfg.BlockKey, "block")
	if err != nil {
		return nil, err
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.MaxAge(cfg.MaxAge)
	codec.SetSerializer(securecookie.JSONEncoder{})

	m := &Manager{
		codec:  codec,
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge,
		secure: secure,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Create returns a cookie holding a new session for the user.
func (m *Manager) Create(userID int64, email string) (*http.Cookie, error) {
	data := Data{
		UserID:    userID,
		Email:     email,
		ExpiresAt: m.now().Add(time.Duration(m.maxAge) * time.Second).UTC(),
	}

	value, err := m.codec.Encode(m.name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	return m.cookie(value, m.maxAge), nil
}

// Parse returns the session carried by r, or nil if there is none or it is
// invalid or expired.
func (m *Manager) Parse(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(m.name)
	if err != nil {
		return nil, nil //nolint:nilerr // missing cookie means no session
	}

	var data Data
	if err := m.codec.Decode(m.name, cookie.Value, &data); err != nil {
		return nil, nil //nolint:nilerr // undecodable cookie means no session
	}

	if !m.now().Before(data.ExpiresAt) {
		return nil, nil
	}

	return &data, nil
}

// Clear returns a cookie that removes the session.
func (m *Manager) Clear() *http.Cookie {
	return m.cookie("", -1)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func decodeKey(value, kind string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid session %s key: %w", kind, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("invalid session %s key: must be %d bytes, got %d", kind, keyLength, len(key))
	}
	return key, nil
}
