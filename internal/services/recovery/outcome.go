// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/audit"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
)

var (
	// ErrNotVerified is returned when the outcome is not a Valid verification
	// for the expected purpose, or the code was consumed concurrently.
	ErrNotVerified = errors.New("verification required")
	// ErrAccountNotFound is returned when the account to reset no longer exists.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when an invitee's email was registered in the meantime.
	ErrAccountExists = errors.New("account already exists")
)

// AuthProvider owns credentials and accounts. Password policy and hashing
// happen there only; the applier stores the results.
type AuthProvider interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	PasswordHash(user *models.User, password string) (string, error)
	PrepareUser(params auth.NewUser) (*models.User, error)
}

// NewAccount is the payload of an invitation acceptance. Role overrides the
// role stored on the record when set.
type NewAccount struct {
	Name     string
	Password string
	Role     models.Role
}

// Applier commits the change a verified code unlocks and consumes the code.
type Applier struct {
	repo     *repository.Repository
	auth     AuthProvider
	recorder *audit.Recorder
	opts     options
}

// NewApplier creates an applier.
func NewApplier(repo *repository.Repository, provider AuthProvider, recorder *audit.Recorder, opts ...Option) *Applier {
	return &Applier{repo: repo, auth: provider, recorder: recorder, opts: newOptions(opts)}
}

// ResetPassword sets a new password for the account behind a verified password reset.
// The password write and the consume share one transaction: if either fails
// nothing is stored and the code can be retried.
func (a *Applier) ResetPassword(ctx context.Context, v VerifyOutcome, newPassword string) (*models.User, error) {
	rec, err := a.verified(v, models.PurposePasswordReset)
	if err != nil {
		return nil, err
	}

	user, err := a.resetTarget(ctx, rec)
	if err != nil {
		return nil, err
	}

	hash, err := a.auth.PasswordHash(user, newPassword)
	if err != nil {
		return nil, err
	}

	err = a.repo.WithTx(ctx, func(tx *repository.Repository) error {
		err := tx.UpdateUserPassword(ctx, user.ID, hash)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to set password: %w", err)
		}
		return a.consume(ctx, tx, rec, user.ID)
	})
	if err != nil {
		return nil, err
	}

	a.recorder.Record(ctx, audit.Event{
		EntityType:  audit.EntityUser,
		EntityID:    audit.UserID(user.ID),
		Action:      audit.ActionPasswordResetSelfService,
		ActorUserID: &user.ID,
		ActorEmail:  user.Email,
		Metadata:    map[string]any{"record_id": rec.ID, "method": "email_code"},
	})
	a.opts.metrics.RecordOutcomeApplied(ctx, string(rec.Purpose))
	slog.InfoContext(ctx, "password_reset_completed", "user_id", user.ID, "record_id", rec.ID)

	return user, nil
}

// AcceptInvitation creates the invitee's account for a verified invitation code.
// The account gets acct.Role, or the role stored on the record when that is empty.
func (a *Applier) AcceptInvitation(ctx context.Context, v VerifyOutcome, acct NewAccount) (*models.User, error) {
	rec, err := a.verified(v, models.PurposeInvitationAccept)
	if err != nil {
		return nil, err
	}

	_, err = a.auth.UserByEmail(ctx, rec.SubjectIdentity)
	switch {
	case err == nil:
		return nil, ErrAccountExists
	case !errors.Is(err, auth.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	role := acct.Role
	if role == "" && rec.Role != nil {
		role = *rec.Role
	}

	user, err := a.auth.PrepareUser(auth.NewUser{
		Email:    rec.SubjectIdentity,
		Name:     acct.Name,
		Password: acct.Password,
		Role:     role,
	})
	if err != nil {
		return nil, err
	}

	err = a.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAccountExists
			}
			return fmt.Errorf("failed to create account: %w", err)
		}
		return a.consume(ctx, tx, rec, user.ID)
	})
	if err != nil {
		return nil, err
	}

	a.recorder.Record(ctx, audit.Event{
		EntityType: audit.EntityUser,
		EntityID:   audit.UserID(user.ID),
		Action:     audit.ActionInvitationAccepted,
		ActorEmail: user.Email,
		After:      map[string]any{"email": user.Email, "role": user.Role},
		Metadata:   map[string]any{"record_id": rec.ID},
	})
	a.opts.metrics.RecordOutcomeApplied(ctx, string(rec.Purpose))
	slog.InfoContext(ctx, "invitation_accepted", "user_id", user.ID, "record_id", rec.ID, "role", user.Role)

	return user, nil
}

func (a *Applier) verified(v VerifyOutcome, purpose models.Purpose) (*models.RecoveryRecord, error) {
	rec := v.Record
	if v.Status != Valid || rec == nil || rec.Purpose != purpose || rec.CodeHash == nil {
		return nil, ErrNotVerified
	}
	return rec, nil
}

func (a *Applier) resetTarget(ctx context.Context, rec *models.RecoveryRecord) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if rec.LinkedUserID != nil {
		user, err = a.auth.UserByID(ctx, *rec.LinkedUserID)
	} else {
		user, err = a.auth.UserByEmail(ctx, rec.SubjectIdentity)
	}
	if errors.Is(err, auth.ErrUserNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return user, nil
}

// consume marks the record used. It fails with ErrNotVerified when another
// request consumed the record or replaced its code after verification.
func (a *Applier) consume(ctx context.Context, tx *repository.Repository, rec *models.RecoveryRecord, userID int64) error {
	ok, err := tx.ConsumeRecoveryRecord(ctx, rec.ID, *rec.CodeHash, &userID, a.opts.clock())
	if err != nil {
		return fmt.Errorf("failed to consume recovery record: %w", err)
	}
	if !ok {
		slog.WarnContext(ctx, "recovery_record_consume_conflict", "record_id", rec.ID, "user_id", userID)
		return ErrNotVerified
	}
	return nil
}
