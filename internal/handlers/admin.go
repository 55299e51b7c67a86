// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/appcontext"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/auth"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/invitation"
	"github.com/labstack/echo/v4"
)

// CreateInvitationRequest is the body of an invitation.
type CreateInvitationRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Role  string `json:"role" validate:"required,oneof=admin agent customer"`
}

// IssueResetToken issues a single-use reset token for the user in :id.
func (h *Handlers) IssueResetToken(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		return jsonError(c, http.StatusNotFound, "user_not_found")
	}

	var issuedBy *int64
	if admin := appcontext.UserFrom(c); admin != nil {
		issuedBy = &admin.ID
	}

	issued, err := h.adminTokens.Issue(c.Request().Context(), userID, issuedBy)
	if errors.Is(err, auth.ErrUserNotFound) {
		return jsonError(c, http.StatusNotFound, "user_not_found")
	}
	if err != nil {
		return internalError(c, "admin_token_issue_failed", err, "user_id", userID)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message":   i18n.T(c.Request().Context(), "admin_token_sent"),
		"expiresAt": issued.ExpiresAt,
	})
}

// CreateInvitation invites an email address with a role.
func (h *Handlers) CreateInvitation(c echo.Context) error {
	var req CreateInvitationRequest
	if ok, err := bind(c, &req); !ok {
		return err
	}

	var invitedBy *int64
	if admin := appcontext.UserFrom(c); admin != nil {
		invitedBy = &admin.ID
	}

	created, err := h.invitations.Create(c.Request().Context(), req.Email, models.Role(req.Role), invitedBy)
	switch {
	case errors.Is(err, invitation.ErrAccountExists):
		return jsonError(c, http.StatusConflict, "account_exists")
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrInvalidRole):
		return jsonError(c, http.StatusBadRequest, "validation_failed")
	case err != nil:
		return internalError(c, "invitation_create_failed", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"invitation": created.Invitation})
}
