// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/services/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"golang.org/x/text/language"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func validSMTPConfig() *config.SMTPConfig {
	return &config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "testuser",
		Password: "testpass",
		From:     "noreply@example.com",
		FromName: "Test App",
		TLS:      true,
	}
}

type sentMail struct {
	to      []string
	subject string
	body    string
}

func newCapturingService(t *testing.T) (*email.Service, *[]sentMail) {
	t.Helper()
	var sent []sentMail
	svc, err := email.NewService(validSMTPConfig(), "https://desk.example.com/",
		email.WithClock(func() time.Time { return testNow }),
		email.WithSender(func(_ context.Context, msg *mail.Msg) error {
			to := msg.GetToString()
			parts := msg.GetParts()
			require.Len(t, parts, 1)
			body, err := parts[0].GetContent()
			require.NoError(t, err)
			sent = append(sent, sentMail{
				to:      to,
				subject: msg.GetGenHeader(mail.HeaderSubject)[0],
				body:    string(body),
			})
			return nil
		}),
	)
	require.NoError(t, err)
	return svc, &sent
}

func TestNewService(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig(), "https://example.com")

	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestNewService_MissingHost(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.Host = ""

	_, err := email.NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host is required")
}

func TestNewService_MissingFrom(t *testing.T) {
	cfg := validSMTPConfig()
	cfg.From = ""

	_, err := email.NewService(cfg, "https://example.com")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP from address is required")
}

func TestURLs_TrailingSlashTrimmed(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/recovery/password/token?token=abc", svc.ResetURL("abc"))
	assert.Equal(t, "https://example.com/invitations/abc", svc.InviteURL("abc"))
}

func TestSendVerificationCode_PasswordReset(t *testing.T) {
	svc, sent := newCapturingService(t)

	err := svc.SendVerificationCode(context.Background(), "user@example.com", models.PurposePasswordReset, "042517", testNow.Add(10*time.Minute))

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	m := (*sent)[0]
	require.Len(t, m.to, 1)
	assert.Contains(t, m.to[0], "user@example.com")
	assert.Equal(t, "Helpdesk: your password reset code", m.subject)
	assert.Contains(t, m.body, "042517")
	assert.Contains(t, m.body, "10 minutes")
}

func TestSendVerificationCode_InvitationGerman(t *testing.T) {
	svc, sent := newCapturingService(t)
	ctx := i18n.WithLocale(context.Background(), language.German)

	err := svc.SendVerificationCode(ctx, "invitee@example.com", models.PurposeInvitationAccept, "123456", testNow.Add(10*time.Minute))

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].body, "123456")
	assert.Contains(t, (*sent)[0].body, "10 Minuten")
}

func TestSendAdminRecoveryToken(t *testing.T) {
	svc, sent := newCapturingService(t)

	err := svc.SendAdminRecoveryToken(context.Background(), "user@example.com", "tok", testNow.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].body, "https://desk.example.com/recovery/password/token?token=tok")
	assert.Contains(t, (*sent)[0].body, "60 minutes")
}

func TestSendInvitation(t *testing.T) {
	svc, sent := newCapturingService(t)

	err := svc.SendInvitation(context.Background(), "invitee@example.com", models.RoleAgent, "tok", testNow.Add(7*24*time.Hour))

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Equal(t, "You have been invited to Helpdesk", (*sent)[0].subject)
	assert.Contains(t, (*sent)[0].body, "https://desk.example.com/invitations/tok")
	assert.Contains(t, (*sent)[0].body, "as agent")
	assert.Contains(t, (*sent)[0].body, "7 days")
}

func TestSend_InvalidRecipient(t *testing.T) {
	svc, sent := newCapturingService(t)

	err := svc.SendInvitation(context.Background(), "not an address", models.RoleAgent, "tok", testNow.Add(time.Hour))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "setting to address")
	assert.Empty(t, *sent)
}

func TestSend_SenderError(t *testing.T) {
	svc, err := email.NewService(validSMTPConfig(), "https://example.com",
		email.WithSender(func(context.Context, *mail.Msg) error { return errors.New("smtp down") }))
	require.NoError(t, err)

	err = svc.SendAdminRecoveryToken(context.Background(), "user@example.com", "tok", time.Now().Add(time.Hour))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := email.NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)), "http://localhost:8080/")
	ctx := context.Background()

	require.NoError(t, n.SendVerificationCode(ctx, "user@example.com", models.PurposePasswordReset, "042517", testNow))
	require.NoError(t, n.SendAdminRecoveryToken(ctx, "user@example.com", "tok", testNow))
	require.NoError(t, n.SendInvitation(ctx, "invitee@example.com", models.RoleCustomer, "inv", testNow))

	out := buf.String()
	assert.Contains(t, out, "code=042517")
	assert.Contains(t, out, "url=http://localhost:8080/recovery/password/token?token=tok")
	assert.Contains(t, out, "url=http://localhost:8080/invitations/inv")
}
