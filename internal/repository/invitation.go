// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
)

// CreateInvitation stores an invitation and sets its ID.
func (r *Repository) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	now := time.Now().UTC()
	id, err := r.insert(ctx,
		`INSERT INTO invitations (email, role, token_hash, invited_by, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		inv.Email, inv.Role, inv.TokenHash, inv.InvitedBy, inv.ExpiresAt.UTC(), now)
	if err != nil {
		return err
	}
	inv.ID = id
	inv.CreatedAt = now
	return nil
}

// GetInvitationByTokenHash retrieves an invitation by its token hash.
func (r *Repository) GetInvitationByTokenHash(ctx context.Context, tokenHash string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.q.GetContext(ctx, &inv, `SELECT * FROM invitations WHERE token_hash = ?`, tokenHash); err != nil {
		return nil, wrapError(err)
	}
	return &inv, nil
}

// GetInvitationByID retrieves an invitation by ID.
func (r *Repository) GetInvitationByID(ctx context.Context, id int64) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.q.GetContext(ctx, &inv, `SELECT * FROM invitations WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &inv, nil
}

// MarkInvitationAccepted records the account created from an open invitation.
// Returns false if the invitation was already accepted.
func (r *Repository) MarkInvitationAccepted(ctx context.Context, id, userID int64, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE invitations SET accepted_at = ?, accepted_user_id = ? WHERE id = ? AND accepted_at IS NULL`,
		at.UTC(), userID, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}
