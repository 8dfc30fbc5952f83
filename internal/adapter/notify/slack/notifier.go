// Package slack implements domain.Notifier over an incoming Slack webhook,
// used for the "slack" channel of alert delivery.
package slack

import (
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/therealityreport/socializer/internal/domain"
)

// Notifier posts alert summaries to a single configured webhook URL.
type Notifier struct {
	webhookURL string
	logger     *slog.Logger
}

// New constructs a Notifier. With an empty webhookURL, Deliver sends nothing
// and returns ErrConfigError.
func New(webhookURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{webhookURL: webhookURL, logger: logger}
}

var _ domain.Notifier = (*Notifier)(nil)

// Channel implements domain.Notifier.
func (n *Notifier) Channel() string { return "slack" }

// Deliver implements domain.Notifier.
func (n *Notifier) Deliver(ctx domain.Context, summary domain.AlertSummary) error {
	if n.webhookURL == "" {
		n.logger.Warn("slack: webhook URL not configured, skipping delivery")
		return fmt.Errorf("op=slack.Deliver: %w", domain.ErrConfigError)
	}

	msg := &slack.WebhookMessage{Text: summary.SlackText}
	for _, block := range summary.SlackBlocks {
		msg.Blocks = appendSectionBlock(msg.Blocks, block)
	}

	if err := slack.PostWebhook(n.webhookURL, msg); err != nil {
		return fmt.Errorf("op=slack.Deliver post: %w", err)
	}
	return nil
}

func appendSectionBlock(blocks *slack.Blocks, raw map[string]any) *slack.Blocks {
	text, _ := raw["text"].(map[string]any)
	body, _ := text["text"].(string)
	section := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, body, false, false), nil, nil)
	if blocks == nil {
		blocks = &slack.Blocks{}
	}
	blocks.BlockSet = append(blocks.BlockSet, section)
	return blocks
}
