// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package admintoken issues and redeems administrator-initiated reset tokens.
package admintoken

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/metrics"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/audit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
)

// DefaultTTL is how long an issued token can be redeemed.
const DefaultTTL = time.Hour

// Notifier delivers the reset link to the account owner.
type Notifier interface {
	SendAdminRecoveryToken(ctx context.Context, to, token string, expiresAt time.Time) error
}

// Users looks up the target account.
type Users interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Status is the result of a redemption attempt.
type Status int

const (
	Valid Status = iota
	NotFound
	Expired
	AlreadyUsed
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case NotFound:
		return "not_found"
	case Expired:
		return "expired"
	case AlreadyUsed:
		return "already_used"
	}
	return "unknown"
}

// Issued is a freshly issued token. Token is the only copy of the plaintext.
type Issued struct {
	Token     string
	ExpiresAt time.Time
	UserID    int64
}

// RedeemOutcome reports what happened to a presented token.
type RedeemOutcome struct {
	Status Status
	UserID int64
}

// Option configures the Service.
type Option func(*Service)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMetrics records issue and redeem counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service issues and redeems admin recovery tokens.
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

// Issue creates a token for targetUserID and mails it to the account owner.
// Delivery failures are logged; the token is returned either way.
func (s *Service) Issue(ctx context.Context, targetUserID int64, issuedBy *int64) (Issued, error) {
	user, err := s.users.UserByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			s.metrics.RecordAdminToken(ctx, "issue", "user_not_found")
		}
		return Issued{}, err
	}

	plaintext, hash, err := auth.GenerateToken()
	if err != nil {
		return Issued{}, err
	}

	token := &models.AdminRecoveryToken{
		UserID:    user.ID,
		TokenHash: hash,
		IssuedBy:  issuedBy,
		ExpiresAt: s.now().UTC().Add(s.ttl),
	}
	if err := s.repo.CreateAdminRecoveryToken(ctx, token); err != nil {
		return Issued{}, fmt.Errorf("failed to store admin recovery token: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{
		EntityType:  audit.EntityUser,
		EntityID:    audit.UserID(user.ID),
		Action:      audit.ActionAdminRecoveryIssued,
		ActorUserID: issuedBy,
		Metadata:    map[string]any{"token_id": token.ID, "expires_at": token.ExpiresAt},
	})
	s.metrics.RecordAdminToken(ctx, "issue", "issued")
	slog.InfoContext(ctx, "admin_recovery_token_issued", "user_id", user.ID, "token_id", token.ID)

	if err := s.notifier.SendAdminRecoveryToken(ctx, user.Email, plaintext, token.ExpiresAt); err != nil {
		slog.ErrorContext(ctx, "admin_recovery_token_delivery_failed", "user_id", user.ID, "error", err)
		s.metrics.RecordNotificationFailure(ctx, "admin_recovery_token")
	}

	return Issued{Token: plaintext, ExpiresAt: token.ExpiresAt, UserID: user.ID}, nil
}

// Redeem checks token and, if it is valid, runs apply for its user. The token
// is claimed before apply runs, so concurrent redemptions of one token apply
// at most once. An apply error releases the claim, leaves the token usable and
// is returned unchanged.
func (s *Service) Redeem(ctx context.Context, token string, apply func(ctx context.Context, userID int64) error) (RedeemOutcome, error) {
	rec, err := s.repo.GetAdminRecoveryTokenByHash(ctx, auth.HashToken(token))
	if errors.Is(err, repository.ErrNotFound) {
		return s.redeemed(ctx, RedeemOutcome{Status: NotFound}), nil
	}
	if err != nil {
		return RedeemOutcome{}, fmt.Errorf("failed to load admin recovery token: %w", err)
	}

	out := RedeemOutcome{Status: Valid, UserID: rec.UserID}
	switch {
	case rec.UsedAt != nil:
		out.Status = AlreadyUsed
		return s.redeemed(ctx, out), nil
	case !s.now().Before(rec.ExpiresAt):
		out.Status = Expired
		return s.redeemed(ctx, out), nil
	}

	ok, err := s.repo.MarkAdminRecoveryTokenUsed(ctx, rec.ID, s.now().UTC())
	if err != nil {
		return out, fmt.Errorf("failed to claim admin recovery token: %w", err)
	}
	if !ok {
		slog.WarnContext(ctx, "admin_recovery_token_claim_conflict", "token_id", rec.ID, "user_id", rec.UserID)
		out.Status = AlreadyUsed
		return s.redeemed(ctx, out), nil
	}

	if err := apply(ctx, rec.UserID); err != nil {
		if relErr := s.repo.ReleaseAdminRecoveryToken(ctx, rec.ID); relErr != nil {
			slog.ErrorContext(ctx, "admin_recovery_token_release_failed", "token_id", rec.ID, "error", relErr)
			return out, errors.Join(err, fmt.Errorf("failed to release admin recovery token: %w", relErr))
		}
		return out, err
	}

	s.recorder.Record(ctx, audit.Event{
		EntityType:  audit.EntityUser,
		EntityID:    audit.UserID(rec.UserID),
		Action:      audit.ActionPasswordResetAdminToken,
		ActorUserID: &rec.UserID,
		Metadata:    map[string]any{"token_id": rec.ID, "issued_by": rec.IssuedBy},
	})
	slog.InfoContext(ctx, "admin_recovery_token_redeemed", "user_id", rec.UserID, "token_id", rec.ID)

	return s.redeemed(ctx, out), nil
}

// PruneExpired deletes tokens past their expiry.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredAdminRecoveryTokens(ctx, s.now().UTC())
}

func (s *Service) redeemed(ctx context.Context, out RedeemOutcome) RedeemOutcome {
	s.metrics.RecordAdminToken(ctx, "redeem", out.Status.String())
	return out
}
