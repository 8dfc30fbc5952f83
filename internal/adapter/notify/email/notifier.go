// Package email implements domain.Notifier over AWS SES, used for the
// "email" channel of alert delivery.
package email

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"

	"github.com/therealityreport/socializer/internal/domain"
)

// Config configures the Notifier.
type Config struct {
	Region    string
	FromEmail string
}

// Notifier sends alert summaries as SES emails to the recipients resolved by
// the caller (see internal/service/alerts.Delivery.resolveEmailRecipients).
type Notifier struct {
	client    sesiface.SESAPI
	fromEmail string
	logger    *slog.Logger
}

// New constructs a Notifier from an AWS session.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("op=email.New session: %w", err)
	}
	return &Notifier{client: ses.New(sess), fromEmail: cfg.FromEmail, logger: logger}, nil
}

var _ domain.Notifier = (*Notifier)(nil)

// Channel implements domain.Notifier.
func (n *Notifier) Channel() string { return "email" }

// Deliver implements domain.Notifier.
func (n *Notifier) Deliver(ctx domain.Context, summary domain.AlertSummary) error {
	if len(summary.Recipients) == 0 {
		return fmt.Errorf("op=email.Deliver: %w: no recipients resolved", domain.ErrConfigError)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromEmail),
		Destination: &ses.Destination{
			ToAddresses: aws.StringSlice(summary.Recipients),
		},
		Message: &ses.Message{
			Subject: &ses.Content{Data: aws.String(summary.Subject)},
			Body: &ses.Body{
				Text: &ses.Content{Data: aws.String(summary.PlainBody)},
				Html: &ses.Content{Data: aws.String(summary.HTMLBody)},
			},
		},
	}

	if _, err := n.client.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("op=email.Deliver send: %w", err)
	}
	return nil
}
