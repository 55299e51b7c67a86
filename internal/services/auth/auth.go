// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth owns user credentials: bcrypt hashing, the password policy and login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidRole        = errors.New("invalid role")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	repo              *repository.Repository
	passwordValidator *PasswordValidator
	cost              int
}

// NewService creates the auth service. minPasswordLength <= 0 selects the default policy.
func NewService(repo *repository.Repository, minPasswordLength int) *Service {
	return &Service{
		repo:              repo,
		passwordValidator: NewPasswordValidator(minPasswordLength),
		cost:              bcrypt.DefaultCost,
	}
}

// WithCost returns a copy of the service hashing with the given bcrypt cost.
func (s *Service) WithCost(cost int) *Service {
	cp := *s
	cp.cost = cost
	return &cp
}

// NewUser holds the parameters for account creation
type NewUser struct {
	Email    string
	Name     string
	Password string
	Role     models.Role
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword checks a password against the policy.
// Returns a *PasswordValidationError when the password is rejected.
func (s *Service) ValidatePassword(password string, userAttributes ...string) error {
	result := s.passwordValidator.Validate(password, userAttributes...)
	if !result.Valid {
		return &PasswordValidationError{Errors: result.Errors}
	}
	return nil
}

// UserByEmail looks up a user by normalized email.
func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UserByID looks up a user by ID.
func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetPassword replaces a user's password after checking it against the policy.
func (s *Service) SetPassword(ctx context.Context, userID int64, password string) error {
	user, err := s.UserByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := s.PasswordHash(user, password)
	if err != nil {
		return err
	}

	err = s.repo.UpdateUserPassword(ctx, userID, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password_changed", "user_id", userID)
	return nil
}

// PasswordHash checks password against the policy for user and returns its
// bcrypt hash. Nothing is stored.
func (s *Service) PasswordHash(user *models.User, password string) (string, error) {
	if err := s.ValidatePassword(password, user.Email, user.Name); err != nil {
		return "", err
	}
	return s.hash(password)
}

// CreateUser creates a new account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, params NewUser) (*models.User, error) {
	user, err := s.PrepareUser(params)
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user_created", "user_id", user.ID, "email", user.Email, "role", user.Role)
	return user, nil
}

// PrepareUser validates params and returns an unsaved user with a hashed password.
func (s *Service) PrepareUser(params NewUser) (*models.User, error) {
	email := NormalizeEmail(params.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	role := params.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := s.ValidatePassword(params.Password, email, params.Name); err != nil {
		return nil, err
	}

	hash, err := s.hash(params.Password)
	if err != nil {
		return nil, err
	}

	return &models.User{
		Email:        email,
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: hash,
		Role:         role,
	}, nil
}

// Authenticate checks an email and password and returns the user if they match
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.Info("login_success", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// EnsureAdmin creates an admin account for email unless one already exists.
// An existing non-admin account with that email is left untouched and reported as ErrUserExists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	existing, err := s.UserByEmail(ctx, email)
	if err == nil {
		if existing.IsAdmin() {
			return existing, nil
		}
		return nil, ErrUserExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	return s.CreateUser(ctx, NewUser{Email: email, Name: "Administrator", Password: password, Role: models.RoleAdmin})
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
