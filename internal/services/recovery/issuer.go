// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
)

// IssueStatus is the result of a code request.
type IssueStatus int

const (
	Issued IssueStatus = iota
	RateLimited
	IssueLocked
)

func (s IssueStatus) String() string {
	switch s {
	case Issued:
		return "issued"
	case RateLimited:
		return "rate_limited"
	case IssueLocked:
		return "locked"
	}
	return "unknown"
}

// IssueRequest identifies whose code to issue and what it unlocks.
type IssueRequest struct {
	Subject      string
	Purpose      models.Purpose
	LinkedUserID *int64
	Role         *models.Role
}

// IssueOutcome carries the fresh code when Status is Issued.
type IssueOutcome struct {
	Status    IssueStatus
	Code      string
	ExpiresAt time.Time
	Record    *models.RecoveryRecord
}

// Issuer creates and refreshes verification codes.
type Issuer struct {
	repo     *repository.Repository
	notifier Notifier
	policy   Policy
	opts     options
}

// NewIssuer creates an issuer. notifier may be nil, in which case codes are not delivered.
func NewIssuer(repo *repository.Repository, notifier Notifier, policy Policy, opts ...Option) *Issuer {
	return &Issuer{repo: repo, notifier: notifier, policy: policy, opts: newOptions(opts)}
}

// IssueCode issues a fresh code for the request's subject and purpose.
// Callers must only call it for subjects known to exist.
// Delivery happens after the record is committed; a delivery failure is logged, never returned.
func (i *Issuer) IssueCode(ctx context.Context, req IssueRequest) (IssueOutcome, error) {
	subject := NormalizeSubject(req.Subject)
	now := i.opts.clock()

	var out IssueOutcome
	err := i.repo.WithTx(ctx, func(tx *repository.Repository) error {
		rec, err := tx.GetOpenRecoveryRecord(ctx, subject, req.Purpose)
		created := false
		switch {
		case errors.Is(err, repository.ErrNotFound):
			rec = &models.RecoveryRecord{SubjectIdentity: subject, Purpose: req.Purpose, WindowStart: now}
			created = true
		case err != nil:
			return fmt.Errorf("failed to load recovery record: %w", err)
		}

		// A locked record stays locked until its code expires.
		if rec.IsLocked(i.policy.MaxAttempts) && !rec.CodeExpired(now) {
			out = IssueOutcome{Status: IssueLocked, Record: rec}
			return nil
		}

		if now.Sub(rec.WindowStart) >= i.policy.IssuanceWindow {
			rec.IssuedCount = 0
			rec.WindowStart = now
		}

		if rec.IssuedCount >= i.policy.MaxIssuedPerWindow {
			out = IssueOutcome{Status: RateLimited, Record: rec}
			return nil
		}

		code, err := i.opts.newCode()
		if err != nil {
			return err
		}
		hash := HashCode(code)
		expiresAt := now.Add(i.policy.CodeTTL)

		rec.CodeHash = &hash
		rec.CodeExpiresAt = &expiresAt
		rec.IssuedCount++
		rec.AttemptCount = 0
		if req.LinkedUserID != nil {
			rec.LinkedUserID = req.LinkedUserID
		}
		if req.Role != nil {
			rec.Role = req.Role
		}

		if created {
			err = tx.CreateRecoveryRecord(ctx, rec)
		} else {
			err = tx.SaveRecoveryIssuance(ctx, rec)
		}
		if err != nil {
			return fmt.Errorf("failed to save recovery record: %w", err)
		}

		out = IssueOutcome{Status: Issued, Code: code, ExpiresAt: expiresAt, Record: rec}
		return nil
	})
	if err != nil {
		return IssueOutcome{}, err
	}

	i.opts.metrics.RecordIssue(ctx, string(req.Purpose), out.Status.String())
	if out.Status != Issued {
		slog.InfoContext(ctx, "recovery_code_withheld",
			"purpose", req.Purpose,
			"record_id", out.Record.ID,
			"reason", out.Status.String(),
		)
		return out, nil
	}

	slog.InfoContext(ctx, "recovery_code_issued",
		"purpose", req.Purpose,
		"record_id", out.Record.ID,
		"issued_count", out.Record.IssuedCount,
	)
	i.deliver(ctx, subject, req.Purpose, out)
	return out, nil
}

func (i *Issuer) deliver(ctx context.Context, subject string, purpose models.Purpose, out IssueOutcome) {
	if i.notifier == nil {
		return
	}
	if err := i.notifier.SendVerificationCode(ctx, subject, purpose, out.Code, out.ExpiresAt); err != nil {
		slog.ErrorContext(ctx, "recovery_code_delivery_failed",
			"purpose", purpose,
			"record_id", out.Record.ID,
			"error", err,
		)
		i.opts.metrics.RecordNotificationFailure(ctx, string(purpose))
	}
}
