// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package invitation manages invitations that let an email address create an account.
package invitation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/metrics"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/audit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
)

// DefaultTTL is how long an invitation link stays valid.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationGone     = errors.New("invitation accepted or expired")
	ErrAccountExists      = errors.New("account already exists")
)

// Notifier delivers the invitation link.
type Notifier interface {
	SendInvitation(ctx context.Context, to string, role models.Role, token string, expiresAt time.Time) error
}

// Users checks whether an email is already registered.
type Users interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Created is a new invitation together with the only copy of its token.
type Created struct {
	Invitation *models.Invitation
	Token      string
}

// Option configures the Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMetrics counts notification failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service creates and resolves invitations.
type Service struct {
	repo     *repository.Repository
	users    Users
	notifier Notifier
	recorder *audit.Recorder
	ttl      time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

// NewService creates a Service. A non-positive ttl uses DefaultTTL.
func NewService(repo *repository.Repository, users Users, notifier Notifier, recorder *audit.Recorder, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		repo:     repo,
		users:    users,
		notifier: notifier,
		recorder: recorder,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create invites email with role and sends the invitation link.
func (s *Service) Create(ctx context.Context, email string, role models.Role, invitedBy *int64) (*Created, error) {
	email = auth.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, auth.ErrInvalidEmail
	}
	if !role.Valid() {
		return nil, auth.ErrInvalidRole
	}

	_, err := s.users.UserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrAccountExists
	case !errors.Is(err, auth.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	plaintext, hash, err := auth.GenerateToken()
	if err != nil {
		return nil, err
	}

	inv := &models.Invitation{
		Email:     email,
		Role:      role,
		TokenHash: hash,
		InvitedBy: invitedBy,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to store invitation: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{
		EntityType:  audit.EntityInvitation,
		EntityID:    audit.UserID(inv.ID),
		Action:      audit.ActionInvitationCreated,
		ActorUserID: invitedBy,
		After:       map[string]any{"email": inv.Email, "role": inv.Role, "expires_at": inv.ExpiresAt},
	})
	slog.InfoContext(ctx, "invitation_created", "invitation_id", inv.ID, "role", inv.Role)

	if err := s.notifier.SendInvitation(ctx, inv.Email, inv.Role, plaintext, inv.ExpiresAt); err != nil {
		slog.ErrorContext(ctx, "invitation_delivery_failed", "invitation_id", inv.ID, "error", err)
		s.metrics.RecordNotificationFailure(ctx, "invitation")
	}

	return &Created{Invitation: inv, Token: plaintext}, nil
}

// Lookup resolves an open invitation by its token.
func (s *Service) Lookup(ctx context.Context, token string) (*models.Invitation, error) {
	inv, err := s.repo.GetInvitationByTokenHash(ctx, auth.HashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}
	if inv.IsAccepted() || inv.IsExpired(s.now()) {
		return inv, ErrInvitationGone
	}
	return inv, nil
}

// MarkAccepted closes the invitation for the created account.
func (s *Service) MarkAccepted(ctx context.Context, id, userID int64) error {
	ok, err := s.repo.MarkInvitationAccepted(ctx, id, userID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	if !ok {
		return ErrInvitationGone
	}
	return nil
}
