// Package notify delivers expiry reminders: a Resend email sender, a circuit
// breaker guard, an in-memory recorder and a static recipient resolver.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"

	"fleetdocs/internal/document/models"
)

// emailAPI is the slice of the Resend client the sender uses.
type emailAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailConfig struct {
	APIKey  string
	From    string
	AppName string
	AppURL  string
	// DevMode logs reminders instead of sending them.
	DevMode bool
}

// Email sends reminders through Resend.
type Email struct {
	client  emailAPI
	from    string
	appName string
	appURL  string
	isDev   bool
	logger  *slog.Logger
}

func NewEmail(cfg EmailConfig, logger *slog.Logger) *Email {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Email{
		from:    cfg.From,
		appName: cfg.AppName,
		appURL:  cfg.AppURL,
		isDev:   cfg.DevMode,
		logger:  logger,
	}
	if cfg.APIKey != "" && !cfg.DevMode {
		e.client = resend.NewClient(cfg.APIKey).Emails
	}
	return e
}

func (e *Email) Send(ctx context.Context, reminder models.Reminder) error {
	subject, body := reminderEmailTemplate(reminder, e.appName, e.appURL)

	if e.isDev {
		e.logger.InfoContext(ctx, "email sent (dev mode)",
			"type", "expiry_reminder",
			"to", reminder.Recipient,
			"subject", subject,
			"document_id", reminder.DocumentID,
		)
		return nil
	}
	if e.client == nil {
		return fmt.Errorf("email sender not configured (missing RESEND_API_KEY)")
	}

	_, err := e.client.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    e.from,
		To:      []string{reminder.Recipient},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("send reminder email: %w", err)
	}
	e.logger.InfoContext(ctx, "email sent", "type", "expiry_reminder", "to", reminder.Recipient, "document_id", reminder.DocumentID)
	return nil
}
