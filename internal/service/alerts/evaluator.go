// Package alerts implements the alert rule evaluator and delivery dispatcher:
// rule evaluation against aggregate snapshots, duplicate
// suppression, and single-try delivery to notifier channels.
package alerts

import (
	"fmt"
	"log/slog"

	"github.com/therealityreport/socializer/internal/domain"
)

type snapshotKey struct {
	castMemberID string
	window       string
}

// Evaluator runs evaluate_thread against the alert rule and aggregate ports.
type Evaluator struct {
	Rules      domain.AlertRuleRepository
	Aggregates domain.AggregateRepository
	Events     domain.AlertEventRepository
	logger     *slog.Logger
}

// New constructs an Evaluator.
func New(rules domain.AlertRuleRepository, aggregates domain.AggregateRepository, events domain.AlertEventRepository, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{Rules: rules, Aggregates: aggregates, Events: events, logger: logger}
}

// EvaluateThread loads active rules for the thread, evaluates each against
// the thread's aggregate snapshots, and persists any newly triggered (and
// non-duplicate) events.
func (e *Evaluator) EvaluateThread(ctx domain.Context, threadID string) ([]domain.AlertEvent, error) {
	rules, err := e.Rules.ListActiveForThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("op=alerts.EvaluateThread load rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	rows, err := e.Aggregates.ListForThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("op=alerts.EvaluateThread load aggregates: %w", err)
	}
	snapshots := make(map[snapshotKey]domain.Aggregate, len(rows))
	for _, row := range rows {
		snapshots[snapshotKey{castMemberID: row.CastMemberID, window: row.TimeWindow}] = row
	}

	var triggered []domain.AlertEvent
	for _, rule := range rules {
		payload, err := e.evaluateRule(rule, snapshots)
		if cfgErr, ok := err.(*domain.AlertConfigurationError); ok {
			e.logger.Warn("alerts: skipping misconfigured rule", slog.String("rule_id", rule.ID), slog.String("reason", cfgErr.Reason))
			continue
		} else if err != nil {
			return nil, fmt.Errorf("op=alerts.EvaluateThread rule=%s: %w", rule.ID, err)
		}
		if payload == nil {
			continue
		}

		duplicate, err := e.isDuplicate(ctx, rule.ID, *payload)
		if err != nil {
			return nil, fmt.Errorf("op=alerts.EvaluateThread duplicate check rule=%s: %w", rule.ID, err)
		}
		if duplicate {
			continue
		}

		var castID *string
		if payload.CastMemberID != "" {
			id := payload.CastMemberID
			castID = &id
		}
		created, err := e.Events.Create(ctx, domain.AlertEvent{
			AlertRuleID:  rule.ID,
			ThreadID:     threadID,
			CastMemberID: castID,
			Payload:      *payload,
		})
		if err != nil {
			return nil, fmt.Errorf("op=alerts.EvaluateThread create event rule=%s: %w", rule.ID, err)
		}
		triggered = append(triggered, created)
	}

	return triggered, nil
}

func (e *Evaluator) evaluateRule(rule domain.AlertRule, snapshots map[snapshotKey]domain.Aggregate) (*domain.AlertEventPayload, error) {
	if rule.RuleType != "sentiment_drop" {
		return nil, &domain.AlertConfigurationError{RuleID: rule.ID, Reason: fmt.Sprintf("unsupported rule type: %s", rule.RuleType)}
	}

	cond := rule.Condition
	metric := cond.Metric
	if metric == "" {
		metric = "net_sentiment"
	}
	comparison := cond.Comparison
	if comparison == "" {
		comparison = domain.ComparisonLTE
	}
	if cond.Window == "" {
		return nil, &domain.AlertConfigurationError{RuleID: rule.ID, Reason: "missing window"}
	}

	castMemberID := cond.CastMemberID
	if castMemberID == "" && rule.CastMemberID != nil {
		castMemberID = *rule.CastMemberID
	}
	if castMemberID == "" {
		return nil, &domain.AlertConfigurationError{RuleID: rule.ID, Reason: "missing cast_member_id"}
	}

	snapshot, ok := snapshots[snapshotKey{castMemberID: castMemberID, window: cond.Window}]
	if !ok {
		return nil, nil
	}
	value, ok := extractMetric(snapshot, metric)
	if !ok {
		return nil, &domain.AlertConfigurationError{RuleID: rule.ID, Reason: fmt.Sprintf("unsupported metric: %s", metric)}
	}

	payload := domain.AlertEventPayload{
		RuleType:     rule.RuleType,
		Metric:       metric,
		Window:       cond.Window,
		CastMemberID: castMemberID,
		Threshold:    cond.Threshold,
		Value:        value,
	}

	var triggered bool
	if cond.BaselineWindow != "" {
		baseline, ok := snapshots[snapshotKey{castMemberID: castMemberID, window: cond.BaselineWindow}]
		if !ok {
			return nil, nil
		}
		baselineValue, ok := extractMetric(baseline, metric)
		if !ok {
			return nil, nil
		}
		delta := value - baselineValue
		payload.BaselineWindow = cond.BaselineWindow
		payload.BaselineValue = &baselineValue
		payload.Delta = &delta
		triggered = compare(delta, cond.Threshold, comparison)
	} else {
		triggered = compare(value, cond.Threshold, comparison)
	}

	if !triggered {
		return nil, nil
	}
	return &payload, nil
}

func extractMetric(a domain.Aggregate, metric string) (float64, bool) {
	switch metric {
	case "net_sentiment":
		return a.NetSentiment, true
	case "mention_count":
		return float64(a.MentionCount), true
	default:
		return 0, false
	}
}

func compare(value, threshold float64, comparison domain.AlertComparison) bool {
	switch comparison {
	case domain.ComparisonLT:
		return value < threshold
	case domain.ComparisonLTE:
		return value <= threshold
	case domain.ComparisonGT:
		return value > threshold
	case domain.ComparisonGTE:
		return value >= threshold
	default:
		return value <= threshold
	}
}

func (e *Evaluator) isDuplicate(ctx domain.Context, ruleID string, payload domain.AlertEventPayload) (bool, error) {
	last, found, err := e.Events.MostRecentForRule(ctx, ruleID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return last.Payload.DuplicateKey() == payload.DuplicateKey(), nil
}
