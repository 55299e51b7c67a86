// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Purpose identifies which flow a recovery record belongs to.
type Purpose string

const (
	PurposePasswordReset    Purpose = "password_reset"
	PurposeInvitationAccept Purpose = "invitation_accept"
)

// RecoveryRecord is one outstanding code-based verification per subject identity and purpose.
// CodeHash and CodeExpiresAt are nil once the record is consumed.
type RecoveryRecord struct { //nolint:govet // fieldalignment: readability over optimization
	ID              int64      `db:"id" json:"id"`
	SubjectIdentity string     `db:"subject_identity" json:"subject_identity"`
	Purpose         Purpose    `db:"purpose" json:"purpose"`
	LinkedUserID    *int64     `db:"linked_user_id" json:"linked_user_id,omitempty"`
	Role            *Role      `db:"role" json:"role,omitempty"`
	CodeHash        *string    `db:"code_hash" json:"-"` // SHA256 hash
	CodeExpiresAt   *time.Time `db:"code_expires_at" json:"code_expires_at,omitempty"`
	AttemptCount    int        `db:"attempt_count" json:"attempt_count"`
	IssuedCount     int        `db:"issued_count" json:"issued_count"`
	WindowStart     time.Time  `db:"window_start" json:"window_start"`
	ConsumedAt      *time.Time `db:"consumed_at" json:"consumed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsLocked reports whether the attempt budget is exhausted.
func (r *RecoveryRecord) IsLocked(maxAttempts int) bool {
	return r.AttemptCount >= maxAttempts
}

// IsConsumed reports whether the record is terminal.
func (r *RecoveryRecord) IsConsumed() bool {
	return r.ConsumedAt != nil
}

// HasCode reports whether a code is outstanding.
func (r *RecoveryRecord) HasCode() bool {
	return r.CodeHash != nil && r.CodeExpiresAt != nil
}

// CodeExpired reports whether the outstanding code is invalid at now.
// A record without a code counts as expired.
func (r *RecoveryRecord) CodeExpired(now time.Time) bool {
	if r.CodeExpiresAt == nil {
		return true
	}
	return !now.Before(*r.CodeExpiresAt)
}
