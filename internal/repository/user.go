// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
)

// CreateUser inserts a user and sets its ID and timestamps.
// Returns ErrDuplicate when the email is already registered.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}

	id, err := r.insert(ctx,
		`INSERT INTO users (email, name, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.PasswordHash, user.Role, now, now)
	if err != nil {
		return err
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.q.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.q.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UserExistsByEmail checks if a user with the given email exists.
func (r *Repository) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.q.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	return exists, err
}

// UpdateUserPassword replaces a user's password hash.
// Returns ErrNotFound when the user no longer exists.
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
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
	return nil
}

// DeleteUser deletes a user by ID.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

// insert executes an INSERT and returns the new row ID.
func (r *Repository) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapError(err)
	}
	return res.LastInsertId()
}
