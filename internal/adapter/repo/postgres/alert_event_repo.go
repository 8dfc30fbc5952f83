package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therealityreport/socializer/internal/domain"
)

// AlertEventRepo persists triggered alert events and supports the
// duplicate-suppression lookup the Evaluator relies on.
type AlertEventRepo struct{ Pool PgxPool }

// NewAlertEventRepo constructs an AlertEventRepo.
func NewAlertEventRepo(p PgxPool) *AlertEventRepo { return &AlertEventRepo{Pool: p} }

var _ domain.AlertEventRepository = (*AlertEventRepo)(nil)

const alertEventColumns = `id, alert_rule_id, thread_id, cast_member_id, triggered_at, payload, delivered_channels`

// Create inserts a new alert event row.
func (r *AlertEventRepo) Create(ctx domain.Context, e domain.AlertEvent) (domain.AlertEvent, error) {
	tracer := otel.Tracer("repo.alert_events")
	ctx, span := tracer.Start(ctx, "alert_events.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "alert_events"),
	)

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return domain.AlertEvent{}, fmt.Errorf("op=alertEvent.create marshal payload: %w", err)
	}

	q := `INSERT INTO alert_events (` + alertEventColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err = r.Pool.Exec(ctx, q, e.ID, e.AlertRuleID, e.ThreadID, e.CastMemberID, e.TriggeredAt, payload, e.DeliveredChannels)
	if err != nil {
		return domain.AlertEvent{}, fmt.Errorf("op=alertEvent.create ruleID=%s: %w", e.AlertRuleID, err)
	}
	return e, nil
}

// Get loads a single alert event by id, used by the delivery task handler
// which only carries an event id in its payload.
func (r *AlertEventRepo) Get(ctx domain.Context, id string) (domain.AlertEvent, error) {
	tracer := otel.Tracer("repo.alert_events")
	ctx, span := tracer.Start(ctx, "alert_events.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "alert_events"),
	)

	q := `SELECT ` + alertEventColumns + ` FROM alert_events WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	e, err := scanAlertEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.AlertEvent{}, fmt.Errorf("op=alertEvent.get id=%s: %w", id, domain.ErrNotFound)
		}
		return domain.AlertEvent{}, fmt.Errorf("op=alertEvent.get id=%s: %w", id, err)
	}
	return e, nil
}

// MostRecentForRule loads the latest event for a rule, used to compare
// duplicate-suppression keys against the just-evaluated payload.
func (r *AlertEventRepo) MostRecentForRule(ctx domain.Context, ruleID string) (domain.AlertEvent, bool, error) {
	tracer := otel.Tracer("repo.alert_events")
	ctx, span := tracer.Start(ctx, "alert_events.MostRecentForRule")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "alert_events"),
	)

	q := `SELECT ` + alertEventColumns + ` FROM alert_events WHERE alert_rule_id=$1 ORDER BY triggered_at DESC LIMIT 1`
	row := r.Pool.QueryRow(ctx, q, ruleID)
	e, err := scanAlertEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.AlertEvent{}, false, nil
		}
		return domain.AlertEvent{}, false, fmt.Errorf("op=alertEvent.mostRecentForRule ruleID=%s: %w", ruleID, err)
	}
	return e, true, nil
}

// UpdateDeliveredChannels records which channels successfully delivered an
// event, merged by the Delivery service before calling this method.
func (r *AlertEventRepo) UpdateDeliveredChannels(ctx domain.Context, id string, channels []string) error {
	tracer := otel.Tracer("repo.alert_events")
	ctx, span := tracer.Start(ctx, "alert_events.UpdateDeliveredChannels")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "alert_events"),
	)

	q := `UPDATE alert_events SET delivered_channels=$2 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, channels)
	if err != nil {
		return fmt.Errorf("op=alertEvent.updateDeliveredChannels id=%s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=alertEvent.updateDeliveredChannels id=%s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanAlertEvent(row rowScanner) (domain.AlertEvent, error) {
	var e domain.AlertEvent
	var payload []byte
	if err := row.Scan(&e.ID, &e.AlertRuleID, &e.ThreadID, &e.CastMemberID, &e.TriggeredAt, &payload,
		&e.DeliveredChannels); err != nil {
		return domain.AlertEvent{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return domain.AlertEvent{}, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return e, nil
}
