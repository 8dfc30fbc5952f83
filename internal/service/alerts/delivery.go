package alerts

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/therealityreport/socializer/internal/domain"
)

// ThreadAndCastLookup resolves the display names the delivery formatter needs
// that are not already embedded in the event payload.
type ThreadAndCastLookup struct {
	Threads domain.ThreadRepository
	Cast    domain.CastMemberRepository
}

// Delivery dispatches a triggered AlertEvent to its rule's configured
// notifier channels. A failure on one channel is logged and does not abort
// delivery to the others; delivered_channels reflects only what actually
// succeeded.
type Delivery struct {
	Rules     domain.AlertRuleRepository
	Events    domain.AlertEventRepository
	Lookup    ThreadAndCastLookup
	Notifiers map[string]domain.Notifier // keyed by Notifier.Channel(), e.g. "slack"/"email"
	FromEmail string
	logger    *slog.Logger
}

// NewDelivery constructs a Delivery dispatcher from a set of channel notifiers.
func NewDelivery(rules domain.AlertRuleRepository, events domain.AlertEventRepository, lookup ThreadAndCastLookup, notifiers []domain.Notifier, fromEmail string, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	byChannel := make(map[string]domain.Notifier, len(notifiers))
	for _, n := range notifiers {
		byChannel[n.Channel()] = n
	}
	return &Delivery{Rules: rules, Events: events, Lookup: lookup, Notifiers: byChannel, FromEmail: fromEmail, logger: logger}
}

// Deliver implements deliver(event): for each channel configured on the
// event's rule, post the formatted summary and merge the channel into
// delivered_channels on success.
func (d *Delivery) Deliver(ctx domain.Context, event domain.AlertEvent) ([]string, error) {
	rule, err := d.Rules.Get(ctx, event.AlertRuleID)
	if err != nil {
		return nil, fmt.Errorf("op=alerts.Deliver load rule: %w", err)
	}

	summary, err := d.formatSummary(ctx, event, rule)
	if err != nil {
		return nil, fmt.Errorf("op=alerts.Deliver format summary: %w", err)
	}

	var delivered []string
	for _, channel := range rule.Channels {
		channel = strings.ToLower(channel)
		notifier, ok := d.Notifiers[channel]
		if !ok {
			d.logger.Warn("alerts: no notifier registered for channel", slog.String("channel", channel))
			continue
		}
		if err := notifier.Deliver(ctx, summary); err != nil {
			d.logger.Warn("alerts: delivery failed", slog.String("channel", channel), slog.String("event_id", event.ID), slog.Any("error", err))
			continue
		}
		delivered = append(delivered, channel)
	}

	if len(delivered) > 0 {
		merged := mergeSorted(event.DeliveredChannels, delivered)
		if err := d.Events.UpdateDeliveredChannels(ctx, event.ID, merged); err != nil {
			return nil, fmt.Errorf("op=alerts.Deliver persist delivered_channels: %w", err)
		}
		return merged, nil
	}
	return event.DeliveredChannels, nil
}

func mergeSorted(existing, newly []string) []string {
	set := make(map[string]struct{}, len(existing)+len(newly))
	for _, c := range existing {
		set[c] = struct{}{}
	}
	for _, c := range newly {
		set[c] = struct{}{}
	}
	merged := make([]string, 0, len(set))
	for c := range set {
		merged = append(merged, c)
	}
	sort.Strings(merged)
	return merged
}

func (d *Delivery) formatSummary(ctx domain.Context, event domain.AlertEvent, rule domain.AlertRule) (domain.AlertSummary, error) {
	payload := event.Payload

	castName := "All cast"
	if event.CastMemberID != nil && d.Lookup.Cast != nil {
		if member, err := d.Lookup.Cast.Get(ctx, *event.CastMemberID); err == nil {
			castName = member.FullName
		}
	}

	threadTitle := "Thread"
	if d.Lookup.Threads != nil {
		if thread, err := d.Lookup.Threads.Get(ctx, event.ThreadID); err == nil && thread.Title != "" {
			threadTitle = thread.Title
		}
	}

	metricLabel := titleCase(strings.ReplaceAll(payload.Metric, "_", " "))
	subject := fmt.Sprintf("Alert: %s %s change on '%s'", castName, metricLabel, threadTitle)

	lines := []string{
		fmt.Sprintf("Thread: %s", threadTitle),
		fmt.Sprintf("Cast Member: %s", castName),
		fmt.Sprintf("Window: %s", payload.Window),
		fmt.Sprintf("Metric: %s", metricLabel),
		fmt.Sprintf("Value: %v", payload.Value),
		fmt.Sprintf("Threshold: %v", payload.Threshold),
	}
	if payload.BaselineWindow != "" && payload.Delta != nil {
		lines = append(lines,
			fmt.Sprintf("Baseline (%s): %v", payload.BaselineWindow, deref(payload.BaselineValue)),
			fmt.Sprintf("Delta vs baseline: %+v", *payload.Delta),
		)
	}

	plain := "\n" + strings.Join(lines, "\n")
	html := strings.Join(lines, "<br/>")
	slackText := subject + "\n" + strings.Join(lines, "\n")
	slackBlocks := []map[string]any{
		{
			"type": "section",
			"text": map[string]any{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*%s*\nWindow `%s` exceeded threshold `%v` with value `%v`.", subject, payload.Window, payload.Threshold, payload.Value),
			},
		},
	}

	return domain.AlertSummary{
		Subject:     subject,
		PlainBody:   plain,
		HTMLBody:    html,
		SlackText:   slackText,
		SlackBlocks: slackBlocks,
		Recipients:  d.resolveEmailRecipients(rule),
	}, nil
}

func (d *Delivery) resolveEmailRecipients(rule domain.AlertRule) []string {
	if len(rule.Condition.Emails) > 0 {
		var out []string
		for _, e := range rule.Condition.Emails {
			if trimmed := strings.TrimSpace(e); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if d.FromEmail != "" {
		return []string{d.FromEmail}
	}
	return nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
