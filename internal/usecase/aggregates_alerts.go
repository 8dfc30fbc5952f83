package usecase

import (
	"fmt"

	"github.com/therealityreport/socializer/internal/domain"
)

// ComputeAggregates recomputes and rewrites every
// (thread, cast, window) metric, then enqueues check_alerts.
func (h *Handlers) ComputeAggregates(ctx domain.Context, threadID string) error {
	if _, err := h.Aggregator.Run(ctx, threadID); err != nil {
		return fmt.Errorf("op=usecase.ComputeAggregates: %w", err)
	}
	return nil
}

// CheckAlerts runs the rule evaluation pass: loads active
// rules, evaluates each against the freshest aggregate snapshots, and
// enqueues a deliver_alert_event task per newly created event.
func (h *Handlers) CheckAlerts(ctx domain.Context, threadID string) error {
	events, err := h.Evaluator.EvaluateThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("op=usecase.CheckAlerts: %w", err)
	}
	for _, e := range events {
		if _, err := h.Queue.EnqueueDeliverAlertEvent(ctx, e.ID); err != nil {
			h.logger.Warn("enqueue deliver_alert_event failed", "event_id", e.ID, "error", err)
		}
	}
	return nil
}

// DeliverAlertEvent runs the delivery worker: dispatches a
// single triggered event to its rule's configured channels.
func (h *Handlers) DeliverAlertEvent(ctx domain.Context, eventID string) error {
	event, err := h.Events.Get(ctx, eventID)
	if err != nil {
		return fmt.Errorf("op=usecase.DeliverAlertEvent load: %w", err)
	}
	if _, err := h.Delivery.Deliver(ctx, event); err != nil {
		return fmt.Errorf("op=usecase.DeliverAlertEvent: %w", err)
	}
	return nil
}
