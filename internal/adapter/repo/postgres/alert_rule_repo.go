package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therealityreport/socializer/internal/domain"
)

// AlertRuleRepo reads alert rule configuration; rules are admin-authored and
// never written by the pipeline itself.
type AlertRuleRepo struct{ Pool PgxPool }

// NewAlertRuleRepo constructs an AlertRuleRepo.
func NewAlertRuleRepo(p PgxPool) *AlertRuleRepo { return &AlertRuleRepo{Pool: p} }

var _ domain.AlertRuleRepository = (*AlertRuleRepo)(nil)

const alertRuleColumns = `id, name, thread_id, cast_member_id, rule_type, condition, is_active, channels`

// ListActiveForThread loads every active rule scoped to threadID plus every
// active global rule (thread_id IS NULL).
func (r *AlertRuleRepo) ListActiveForThread(ctx domain.Context, threadID string) ([]domain.AlertRule, error) {
	tracer := otel.Tracer("repo.alert_rules")
	ctx, span := tracer.Start(ctx, "alert_rules.ListActiveForThread")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "alert_rules"),
	)

	q := `SELECT ` + alertRuleColumns + ` FROM alert_rules WHERE is_active = true AND (thread_id = $1 OR thread_id IS NULL)`
	rows, err := r.Pool.Query(ctx, q, threadID)
	if err != nil {
		return nil, fmt.Errorf("op=alertRule.listActiveForThread threadID=%s: %w", threadID, err)
	}
	defer rows.Close()

	var out []domain.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, fmt.Errorf("op=alertRule.listActiveForThread scan: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Get loads a single alert rule by id.
func (r *AlertRuleRepo) Get(ctx domain.Context, id string) (domain.AlertRule, error) {
	tracer := otel.Tracer("repo.alert_rules")
	ctx, span := tracer.Start(ctx, "alert_rules.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "alert_rules"),
	)

	q := `SELECT ` + alertRuleColumns + ` FROM alert_rules WHERE id=$1`
	row := r.Pool.QueryRow(ctx, q, id)
	rule, err := scanAlertRule(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.AlertRule{}, fmt.Errorf("op=alertRule.get id=%s: %w", id, domain.ErrNotFound)
		}
		return domain.AlertRule{}, fmt.Errorf("op=alertRule.get id=%s: %w", id, err)
	}
	return rule, nil
}

func scanAlertRule(row rowScanner) (domain.AlertRule, error) {
	var rule domain.AlertRule
	var condition []byte
	if err := row.Scan(&rule.ID, &rule.Name, &rule.ThreadID, &rule.CastMemberID, &rule.RuleType, &condition,
		&rule.IsActive, &rule.Channels); err != nil {
		return domain.AlertRule{}, err
	}
	if len(condition) > 0 {
		if err := json.Unmarshal(condition, &rule.Condition); err != nil {
			return domain.AlertRule{}, fmt.Errorf("unmarshal condition: %w", err)
		}
	}
	return rule, nil
}
