package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	appName   string
}

func NewEmailService(apiKey, fromEmail, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appName:   appName,
	}
}

func (s *EmailService) SendInviteEmail(ctx context.Context, email, name, inviteURL string) error {
	subject, body := inviteEmailTemplate(name, inviteURL, s.appName)
	return s.send(ctx, "invite", email, subject, body, inviteURL)
}

func (s *EmailService) SendRecoveryEmail(ctx context.Context, email, recoveryURL string) error {
	subject, body := recoveryEmailTemplate(recoveryURL, s.appName)
	return s.send(ctx, "recovery", email, subject, body, recoveryURL)
}

func (s *EmailService) send(ctx context.Context, kind, to, subject, body, link string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject, "url", link)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		slog.Info("email sent", "type", kind, "to", to)
	}
	return err
}
