// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package email delivers verification codes, reset links and invitations.
package email

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"codeberg.org/oliverandrich/helpdesk-recovery/internal/config"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/i18n"
	"codeberg.org/oliverandrich/helpdesk-recovery/internal/models"
	"github.com/wneessen/go-mail"
)

// Sender transmits a composed message.
type Sender func(ctx context.Context, msg *mail.Msg) error

// Option configures the Service.
type Option func(*Service)

// WithSender replaces SMTP delivery.
func WithSender(send Sender) Option {
	return func(s *Service) {
		s.send = send
	}
}

// WithClock sets the time source used to render validity periods.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service sends notifications over SMTP.
type Service struct {
	cfg     *config.SMTPConfig
	baseURL string
	send    Sender
	now     func() time.Time
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig, baseURL string, opts ...Option) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}

	s := &Service{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		now:     time.Now,
	}
	s.send = s.dialAndSend
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendVerificationCode sends a one-time code for the given purpose.
func (s *Service) SendVerificationCode(ctx context.Context, to string, purpose models.Purpose, code string, expiresAt time.Time) error {
	data := map[string]any{
		"AppName":  i18n.T(ctx, "app_name"),
		"Code":     code,
		"Validity": i18n.TPlural(ctx, "minutes", ceilUnits(expiresAt.Sub(s.now()), time.Minute)),
	}

	prefix := "email_code_" + string(purpose)
	return s.compose(ctx, to, i18n.TData(ctx, prefix+"_subject", data), i18n.TData(ctx, prefix+"_body", data))
}

// SendAdminRecoveryToken sends the single-use reset link.
func (s *Service) SendAdminRecoveryToken(ctx context.Context, to, token string, expiresAt time.Time) error {
	data := map[string]any{
		"AppName":  i18n.T(ctx, "app_name"),
		"ResetURL": s.ResetURL(token),
		"Validity": i18n.TPlural(ctx, "minutes", ceilUnits(expiresAt.Sub(s.now()), time.Minute)),
	}

	return s.compose(ctx, to, i18n.TData(ctx, "email_admin_token_subject", data), i18n.TData(ctx, "email_admin_token_body", data))
}

// SendInvitation sends the invitation link.
func (s *Service) SendInvitation(ctx context.Context, to string, role models.Role, token string, expiresAt time.Time) error {
	data := map[string]any{
		"AppName":   i18n.T(ctx, "app_name"),
		"Role":      string(role),
		"InviteURL": s.InviteURL(token),
		"Validity":  i18n.TPlural(ctx, "days", ceilUnits(expiresAt.Sub(s.now()), 24*time.Hour)),
	}

	return s.compose(ctx, to, i18n.TData(ctx, "email_invitation_subject", data), i18n.TData(ctx, "email_invitation_body", data))
}

// ResetURL returns the link carrying an admin recovery token.
func (s *Service) ResetURL(token string) string {
	return fmt.Sprintf("%s/recovery/password/token?token=%s", s.baseURL, token)
}

// InviteURL returns the link carrying an invitation token.
func (s *Service) InviteURL(token string) string {
	return fmt.Sprintf("%s/invitations/%s", s.baseURL, token)
}

func (s *Service) compose(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return s.send(ctx, msg)
}

// dialAndSend delivers msg via SMTP.
func (s *Service) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
	}

	// Implicit TLS on 465, STARTTLS otherwise
	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

// ceilUnits rounds d up to whole units, with a minimum of one.
func ceilUnits(d, unit time.Duration) int {
	n := int(math.Ceil(float64(d) / float64(unit)))
	if n < 1 {
		return 1
	}
	return n
}
