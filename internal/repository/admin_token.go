// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
)

// CreateAdminRecoveryToken stores a hashed admin-issued recovery token.
func (r *Repository) CreateAdminRecoveryToken(ctx context.Context, token *models.AdminRecoveryToken) error {
	now := time.Now().UTC()
	id, err := r.insert(ctx,
		`INSERT INTO admin_recovery_tokens (user_id, token_hash, issued_by, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		token.UserID, token.TokenHash, token.IssuedBy, token.ExpiresAt.UTC(), now)
	if err != nil {
		return err
	}
	token.ID = id
	token.CreatedAt = now
	return nil
}

// GetAdminRecoveryTokenByHash retrieves a token by its hash.
func (r *Repository) GetAdminRecoveryTokenByHash(ctx context.Context, tokenHash string) (*models.AdminRecoveryToken, error) {
	var token models.AdminRecoveryToken
	err := r.q.GetContext(ctx, &token, `SELECT * FROM admin_recovery_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// MarkAdminRecoveryTokenUsed marks an unused token as used.
// Returns false if the token was already used.
func (r *Repository) MarkAdminRecoveryTokenUsed(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE admin_recovery_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`, at.UTC(), id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// ReleaseAdminRecoveryToken clears the used mark set by MarkAdminRecoveryTokenUsed.
func (r *Repository) ReleaseAdminRecoveryToken(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `UPDATE admin_recovery_tokens SET used_at = NULL WHERE id = ?`, id)
	return err
}

// DeleteExpiredAdminRecoveryTokens removes unused tokens that expired before now.
func (r *Repository) DeleteExpiredAdminRecoveryTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM admin_recovery_tokens WHERE used_at IS NULL AND expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
