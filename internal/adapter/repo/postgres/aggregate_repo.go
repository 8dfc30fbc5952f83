package postgres

import (
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therealityreport/socializer/internal/domain"
)

// AggregateRepo performs the Aggregator's full-rewrite persistence: every
// ComputeAggregates pass replaces all rows for a thread in one transaction.
type AggregateRepo struct {
	Pool   PgxPool
	logger *slog.Logger
}

// NewAggregateRepo constructs an AggregateRepo.
func NewAggregateRepo(p PgxPool, logger *slog.Logger) *AggregateRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregateRepo{Pool: p, logger: logger}
}

var _ domain.AggregateRepository = (*AggregateRepo)(nil)

// ReplaceForThread deletes every existing aggregate row for threadID and
// inserts rows in a single transaction, so readers never observe a partial
// rewrite.
func (r *AggregateRepo) ReplaceForThread(ctx domain.Context, threadID string, rows []domain.Aggregate) error {
	tracer := otel.Tracer("repo.aggregates")
	ctx, span := tracer.Start(ctx, "aggregates.ReplaceForThread")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "REPLACE"),
		attribute.String("db.sql.table", "aggregates"),
		attribute.Int("aggregates.row_count", len(rows)),
	)

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("op=aggregate.replaceForThread begin threadID=%s: %w", threadID, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
				r.logger.Warn("aggregate replace rollback failed", "thread_id", threadID, "error", rbErr)
			}
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM aggregates WHERE thread_id=$1`, threadID); err != nil {
		return fmt.Errorf("op=aggregate.replaceForThread delete threadID=%s: %w", threadID, err)
	}

	const insertSQL = `INSERT INTO aggregates (thread_id, cast_member_id, time_window, net_sentiment, ci_lower,
		ci_upper, positive_pct, neutral_pct, negative_pct, agreement_score, mention_count, computed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	for _, row := range rows {
		if _, err := tx.Exec(ctx, insertSQL, row.ThreadID, row.CastMemberID, row.TimeWindow, row.NetSentiment,
			row.CILower, row.CIUpper, row.PositivePct, row.NeutralPct, row.NegativePct, row.AgreementScore,
			row.MentionCount, row.ComputedAt); err != nil {
			return fmt.Errorf("op=aggregate.replaceForThread insert threadID=%s castID=%s window=%s: %w",
				threadID, row.CastMemberID, row.TimeWindow, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=aggregate.replaceForThread commit threadID=%s: %w", threadID, err)
	}
	committed = true
	r.logger.Info("aggregates replaced", "thread_id", threadID, "row_count", len(rows))
	return nil
}

// ListForThread loads every aggregate snapshot for a thread, the Alert
// Engine's sole read path.
func (r *AggregateRepo) ListForThread(ctx domain.Context, threadID string) ([]domain.Aggregate, error) {
	tracer := otel.Tracer("repo.aggregates")
	ctx, span := tracer.Start(ctx, "aggregates.ListForThread")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "aggregates"),
	)

	q := `SELECT thread_id, cast_member_id, time_window, net_sentiment, ci_lower, ci_upper, positive_pct,
		neutral_pct, negative_pct, agreement_score, mention_count, computed_at
		FROM aggregates WHERE thread_id=$1`
	rows, err := r.Pool.Query(ctx, q, threadID)
	if err != nil {
		return nil, fmt.Errorf("op=aggregate.listForThread threadID=%s: %w", threadID, err)
	}
	defer rows.Close()

	var out []domain.Aggregate
	for rows.Next() {
		var a domain.Aggregate
		if err := rows.Scan(&a.ThreadID, &a.CastMemberID, &a.TimeWindow, &a.NetSentiment, &a.CILower, &a.CIUpper,
			&a.PositivePct, &a.NeutralPct, &a.NegativePct, &a.AgreementScore, &a.MentionCount, &a.ComputedAt); err != nil {
			return nil, fmt.Errorf("op=aggregate.listForThread scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
