// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Invitation grants an email address the right to create an account with Role.
type Invitation struct { //nolint:govet // fieldalignment: readability over optimization
	ID             int64      `db:"id" json:"id"`
	Email          string     `db:"email" json:"email"`
	Role           Role       `db:"role" json:"role"`
	TokenHash      string     `db:"token_hash" json:"-"` // SHA256 hash
	InvitedBy      *int64     `db:"invited_by" json:"invited_by,omitempty"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
	AcceptedAt     *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	AcceptedUserID *int64     `db:"accepted_user_id" json:"accepted_user_id,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// IsAccepted reports whether the invitation has been used.
func (i *Invitation) IsAccepted() bool {
	return i.AcceptedAt != nil
}

// IsExpired reports whether the invitation link is no longer valid at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
