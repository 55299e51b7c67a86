// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/invitation"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/recovery"
	"github.com/labstack/echo/v4"
)

// AcceptInvitationRequest is the body of an invitation acceptance.
type AcceptInvitationRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	Password         string `json:"password" validate:"required,max=256"`
	VerificationCode string `json:"verificationCode" validate:"required,max=32"`
}

// RequestInvitationCode sends a verification code to the invited address.
func (h *Handlers) RequestInvitationCode(c echo.Context) error {
	inv, err := h.openInvitation(c)
	if inv == nil {
		return err
	}

	ctx := c.Request().Context()
	out, err := h.issuer.IssueCode(ctx, recovery.IssueRequest{
		Subject: inv.Email,
		Purpose: models.PurposeInvitationAccept,
		Role:    &inv.Role,
	})
	if err != nil {
		return internalError(c, "invitation_code_issue_failed", err, "invitation_id", inv.ID)
	}

	switch out.Status {
	case recovery.RateLimited:
		return jsonError(c, http.StatusTooManyRequests, "invitation_rate_limited")
	case recovery.IssueLocked:
		return jsonError(c, http.StatusLocked, "code_locked")
	}

	return jsonMessage(c, http.StatusOK, "invitation_code_sent")
}

// AcceptInvitation verifies the code and creates the invitee's account.
func (h *Handlers) AcceptInvitation(c echo.Context) error {
	inv, err := h.openInvitation(c)
	if inv == nil {
		return err
	}

	var req AcceptInvitationRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	out, err := h.verifier.Verify(ctx, inv.Email, models.PurposeInvitationAccept, req.VerificationCode)
	if err != nil {
		return internalError(c, "invitation_verify_failed", err, "invitation_id", inv.ID)
	}
	if out.Status != recovery.Valid {
		return verifyFailed(c, out)
	}

	user, err := h.applier.AcceptInvitation(ctx, out, recovery.NewAccount{Name: req.Name, Password: req.Password, Role: inv.Role})
	if err != nil {
		if handled, werr := passwordRejected(c, err); handled {
			return werr
		}
		switch {
		case errors.Is(err, recovery.ErrAccountExists):
			return jsonError(c, http.StatusConflict, "account_exists")
		case errors.Is(err, recovery.ErrNotVerified):
			return verifyFailed(c, recovery.VerifyOutcome{Status: recovery.NoActiveRequest})
		}
		return internalError(c, "invitation_accept_failed", err, "invitation_id", inv.ID)
	}

	if err := h.invitations.MarkAccepted(ctx, inv.ID, user.ID); err != nil {
		slog.WarnContext(ctx, "invitation_mark_accepted_failed", "invitation_id", inv.ID, "user_id", user.ID, "error", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"user": user})
}

// openInvitation resolves the :token path parameter. On failure it writes the
// response and returns a nil invitation.
func (h *Handlers) openInvitation(c echo.Context) (*models.Invitation, error) {
	inv, err := h.invitations.Lookup(c.Request().Context(), c.Param("token"))
	switch {
	case err == nil:
		return inv, nil
	case errors.Is(err, invitation.ErrInvitationNotFound):
		return nil, jsonError(c, http.StatusNotFound, "invitation_not_found")
	case errors.Is(err, invitation.ErrInvitationGone):
		return nil, jsonError(c, http.StatusGone, "invitation_gone")
	}
	return nil, internalError(c, "invitation_lookup_failed", err)
}
