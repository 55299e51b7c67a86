// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
)

// GetOpenRecoveryRecord retrieves the non-terminal record for an identity and purpose.
func (r *Repository) GetOpenRecoveryRecord(ctx context.Context, subject string, purpose models.Purpose) (*models.RecoveryRecord, error) {
	var rec models.RecoveryRecord
	err := r.q.GetContext(ctx, &rec,
		`SELECT * FROM recovery_records WHERE subject_identity = ? AND purpose = ? AND consumed_at IS NULL`,
		subject, purpose)
	if err != nil {
		return nil, wrapError(err)
	}
	return &rec, nil
}

// GetRecoveryRecordByID retrieves a record by ID, terminal or not.
func (r *Repository) GetRecoveryRecordByID(ctx context.Context, id int64) (*models.RecoveryRecord, error) {
	var rec models.RecoveryRecord
	if err := r.q.GetContext(ctx, &rec, `SELECT * FROM recovery_records WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &rec, nil
}

// CreateRecoveryRecord inserts an open record and sets its ID.
// Returns ErrDuplicate when an open record already exists for the identity and purpose.
func (r *Repository) CreateRecoveryRecord(ctx context.Context, rec *models.RecoveryRecord) error {
	now := time.Now().UTC()
	id, err := r.insert(ctx,
		`INSERT INTO recovery_records
			(subject_identity, purpose, linked_user_id, role, code_hash, code_expires_at,
			 attempt_count, issued_count, window_start, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SubjectIdentity, rec.Purpose, rec.LinkedUserID, rec.Role, rec.CodeHash, rec.CodeExpiresAt,
		rec.AttemptCount, rec.IssuedCount, rec.WindowStart.UTC(), now, now)
	if err != nil {
		return err
	}

	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// SaveRecoveryIssuance persists the issuance fields of an open record.
func (r *Repository) SaveRecoveryIssuance(ctx context.Context, rec *models.RecoveryRecord) error {
	now := time.Now().UTC()
	res, err := r.q.ExecContext(ctx,
		`UPDATE recovery_records
		 SET linked_user_id = ?, role = ?, code_hash = ?, code_expires_at = ?,
		     attempt_count = ?, issued_count = ?, window_start = ?, updated_at = ?
		 WHERE id = ? AND consumed_at IS NULL`,
		rec.LinkedUserID, rec.Role, rec.CodeHash, rec.CodeExpiresAt,
		rec.AttemptCount, rec.IssuedCount, rec.WindowStart.UTC(), now, rec.ID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	rec.UpdatedAt = now
	return nil
}

// IncrementRecoveryAttempts atomically counts one failed verification and returns the new count.
// The count never exceeds maxAttempts; ErrNotFound means the record is consumed or already at the limit.
func (r *Repository) IncrementRecoveryAttempts(ctx context.Context, id int64, maxAttempts int) (int, error) {
	var count int
	err := r.q.GetContext(ctx, &count,
		`UPDATE recovery_records
		 SET attempt_count = attempt_count + 1, updated_at = ?
		 WHERE id = ? AND consumed_at IS NULL AND attempt_count < ?
		 RETURNING attempt_count`,
		time.Now().UTC(), id, maxAttempts)
	if err != nil {
		return 0, wrapError(err)
	}
	return count, nil
}

// ConsumeRecoveryRecord marks the record terminal if it is still open and still holds codeHash.
// linkedUserID, when non-nil, is stored on the record. Returns false if another caller consumed
// the record or a fresh code replaced it in the meantime.
func (r *Repository) ConsumeRecoveryRecord(ctx context.Context, id int64, codeHash string, linkedUserID *int64, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE recovery_records
		 SET consumed_at = ?, code_hash = NULL, code_expires_at = NULL,
		     linked_user_id = COALESCE(?, linked_user_id), updated_at = ?
		 WHERE id = ? AND consumed_at IS NULL AND code_hash = ?`,
		at.UTC(), linkedUserID, at.UTC(), id, codeHash)
	if err != nil {
		return false, err
	}
	return affected(res)
}
