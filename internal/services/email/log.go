// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
)

// LogNotifier writes notifications to the log instead of sending them.
// It is used when no SMTP host is configured.
type LogNotifier struct {
	logger  *slog.Logger
	baseURL string
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger, baseURL string) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// SendVerificationCode logs the code.
func (n *LogNotifier) SendVerificationCode(ctx context.Context, to string, purpose models.Purpose, code string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "notification_logged",
		"kind", "verification_code",
		"to", to,
		"purpose", string(purpose),
		"code", code,
		"expires_at", expiresAt,
	)
	return nil
}

// SendAdminRecoveryToken logs the reset link.
func (n *LogNotifier) SendAdminRecoveryToken(ctx context.Context, to, token string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "notification_logged",
		"kind", "admin_recovery_token",
		"to", to,
		"url", n.baseURL+"/recovery/password/token?token="+token,
		"expires_at", expiresAt,
	)
	return nil
}

// SendInvitation logs the invitation link.
func (n *LogNotifier) SendInvitation(ctx context.Context, to string, role models.Role, token string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "notification_logged",
		"kind", "invitation",
		"to", to,
		"role", string(role),
		"url", n.baseURL+"/invitations/"+token,
		"expires_at", expiresAt,
	)
	return nil
}
