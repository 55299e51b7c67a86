// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/admintoken"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/recovery"
	"github.com/labstack/echo/v4"
)

// PasswordResetRequest is the body of a password reset request.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// PasswordResetConfirm is the body of a password reset confirmation.
type PasswordResetConfirm struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Code        string `json:"code" validate:"required,max=32"`
	NewPassword string `json:"newPassword" validate:"required,max=256"`
}

// TokenReset is the body of an admin token redemption.
type TokenReset struct {
	Token       string `json:"token" validate:"required,hexadecimal,max=128"`
	NewPassword string `json:"newPassword" validate:"required,max=256"`
}

// RequestPasswordReset issues a code if the email belongs to an account.
// The response is identical whether or not it does.
func (h *Handlers) RequestPasswordReset(c echo.Context) error {
	var req PasswordResetRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	h.issuePasswordReset(ctx, req.Email)

	return jsonMessage(c, http.StatusOK, "recovery_request_accepted")
}

// issuePasswordReset issues a code for an existing account. Every outcome,
// errors included, is only logged.
func (h *Handlers) issuePasswordReset(ctx context.Context, email string) {
	user, err := h.auth.UserByEmail(ctx, email)
	if errors.Is(err, auth.ErrUserNotFound) {
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "password_reset_lookup_failed", "error", err)
		return
	}

	if _, err := h.issuer.IssueCode(ctx, recovery.IssueRequest{
		Subject:      user.Email,
		Purpose:      models.PurposePasswordReset,
		LinkedUserID: &user.ID,
	}); err != nil {
		slog.ErrorContext(ctx, "password_reset_issue_failed", "user_id", user.ID, "error", err)
	}
}

// ConfirmPasswordReset checks the code and sets the new password.
func (h *Handlers) ConfirmPasswordReset(c echo.Context) error {
	var req PasswordResetConfirm
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	out, err := h.verifier.Verify(ctx, req.Email, models.PurposePasswordReset, req.Code)
	if err != nil {
		return internalError(c, "password_reset_verify_failed", err)
	}
	if out.Status != recovery.Valid {
		return verifyFailed(c, out)
	}

	_, err = h.applier.ResetPassword(ctx, out, req.NewPassword)
	if err != nil {
		if handled, werr := passwordRejected(c, err); handled {
			return werr
		}
		switch {
		case errors.Is(err, recovery.ErrAccountNotFound):
			return jsonError(c, http.StatusNotFound, "account_not_found")
		case errors.Is(err, recovery.ErrNotVerified):
			return verifyFailed(c, recovery.VerifyOutcome{Status: recovery.NoActiveRequest})
		}
		return internalError(c, "password_reset_apply_failed", err)
	}

	return jsonMessage(c, http.StatusOK, "password_reset_success")
}

// RedeemResetToken sets a new password using an admin recovery token.
func (h *Handlers) RedeemResetToken(c echo.Context) error {
	var req TokenReset
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	out, err := h.adminTokens.Redeem(ctx, req.Token, func(ctx context.Context, userID int64) error {
		return h.auth.SetPassword(ctx, userID, req.NewPassword)
	})
	if err != nil {
		if handled, werr := passwordRejected(c, err); handled {
			return werr
		}
		if errors.Is(err, auth.ErrUserNotFound) {
			return jsonError(c, http.StatusNotFound, "account_not_found")
		}
		return internalError(c, "admin_token_redeem_failed", err)
	}

	switch out.Status {
	case admintoken.NotFound:
		return jsonError(c, http.StatusNotFound, "token_invalid")
	case admintoken.Expired:
		return jsonError(c, http.StatusGone, "token_expired")
	case admintoken.AlreadyUsed:
		return jsonError(c, http.StatusGone, "token_used")
	}

	return jsonMessage(c, http.StatusOK, "password_reset_success")
}

// verifyFailed maps a non-Valid verification to its response. Locked is 423;
// everything else is a 400 naming the reason.
func verifyFailed(c echo.Context, out recovery.VerifyOutcome) error {
	if out.Status == recovery.Locked {
		return c.JSON(http.StatusLocked, map[string]any{
			"error":  i18n.T(c.Request().Context(), "code_locked"),
			"reason": out.Status.String(),
		})
	}

	body := map[string]any{
		"reason": out.Status.String(),
	}
	switch out.Status {
	case recovery.Mismatch:
		body["error"] = i18n.T(c.Request().Context(), "code_mismatch")
		body["remainingAttempts"] = out.RemainingAttempts
	case recovery.Expired:
		body["error"] = i18n.T(c.Request().Context(), "code_expired")
	default:
		body["error"] = i18n.T(c.Request().Context(), "no_active_request")
	}
	return c.JSON(http.StatusBadRequest, body)
}
