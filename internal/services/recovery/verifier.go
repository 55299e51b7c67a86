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
)

// VerifyStatus is the result of checking a submitted code.
type VerifyStatus int

const (
	Valid VerifyStatus = iota
	NoActiveRequest
	Locked
	Expired
	Mismatch
)

func (s VerifyStatus) String() string {
	switch s {
	case Valid:
		return "valid"
	case NoActiveRequest:
		return "no_active_request"
	case Locked:
		return "locked"
	case Expired:
		return "expired"
	case Mismatch:
		return "mismatch"
	}
	return "unknown"
}

// VerifyOutcome is the result of Verify. Record is set for every status but NoActiveRequest;
// RemainingAttempts is set for Mismatch.
type VerifyOutcome struct {
	Status            VerifyStatus
	Record            *models.RecoveryRecord
	RemainingAttempts int
}

// Verifier checks submitted codes.
type Verifier struct {
	repo   *repository.Repository
	policy Policy
	opts   options
}

// NewVerifier creates a verifier.
func NewVerifier(repo *repository.Repository, policy Policy, opts ...Option) *Verifier {
	return &Verifier{repo: repo, policy: policy, opts: newOptions(opts)}
}

// Verify checks code against the open record for subject and purpose.
// A Valid outcome does not consume the record.
func (v *Verifier) Verify(ctx context.Context, subject string, purpose models.Purpose, code string) (VerifyOutcome, error) {
	out, err := v.verify(ctx, NormalizeSubject(subject), purpose, code)
	if err != nil {
		return VerifyOutcome{}, err
	}
	v.opts.metrics.RecordVerification(ctx, string(purpose), out.Status.String())
	if out.Status != Valid && out.Record != nil {
		slog.InfoContext(ctx, "recovery_code_rejected",
			"purpose", purpose,
			"record_id", out.Record.ID,
			"reason", out.Status.String(),
			"attempt_count", out.Record.AttemptCount,
		)
	}
	return out, nil
}

func (v *Verifier) verify(ctx context.Context, subject string, purpose models.Purpose, code string) (VerifyOutcome, error) {
	rec, err := v.repo.GetOpenRecoveryRecord(ctx, subject, purpose)
	if errors.Is(err, repository.ErrNotFound) {
		return VerifyOutcome{Status: NoActiveRequest}, nil
	}
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("failed to load recovery record: %w", err)
	}

	if rec.IsLocked(v.policy.MaxAttempts) {
		return VerifyOutcome{Status: Locked, Record: rec}, nil
	}
	if !rec.HasCode() {
		return VerifyOutcome{Status: NoActiveRequest, Record: rec}, nil
	}
	if rec.CodeExpired(v.opts.clock()) {
		return VerifyOutcome{Status: Expired, Record: rec}, nil
	}

	if codeMatches(code, *rec.CodeHash) {
		return VerifyOutcome{Status: Valid, Record: rec}, nil
	}

	count, err := v.repo.IncrementRecoveryAttempts(ctx, rec.ID, v.policy.MaxAttempts)
	if errors.Is(err, repository.ErrNotFound) {
		// Lost a race with another guess that locked the record or a successful consume.
		return v.reload(ctx, rec.ID)
	}
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("failed to count attempt: %w", err)
	}

	rec.AttemptCount = count
	if count >= v.policy.MaxAttempts {
		return VerifyOutcome{Status: Locked, Record: rec}, nil
	}
	return VerifyOutcome{Status: Mismatch, Record: rec, RemainingAttempts: v.policy.MaxAttempts - count}, nil
}

func (v *Verifier) reload(ctx context.Context, id int64) (VerifyOutcome, error) {
	rec, err := v.repo.GetRecoveryRecordByID(ctx, id)
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("failed to reload recovery record: %w", err)
	}
	if rec.IsConsumed() {
		return VerifyOutcome{Status: NoActiveRequest}, nil
	}
	return VerifyOutcome{Status: Locked, Record: rec}, nil
}
