// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// AdminRecoveryToken is a single-use reset token issued by an administrator.
type AdminRecoveryToken struct { //nolint:govet // fieldalignment: readability over optimization
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	TokenHash string     `db:"token_hash" json:"-"` // SHA256 hash
	IssuedBy  *int64     `db:"issued_by" json:"issued_by,omitempty"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
