package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therealityreport/socializer/internal/domain"
)

// MentionRepo persists Mention rows. Relinking a comment is always a full
// delete-then-insert for that comment's mentions, mirroring the entity
// linker's own re-evaluation semantics.
type MentionRepo struct{ Pool PgxPool }

// NewMentionRepo constructs a MentionRepo.
func NewMentionRepo(p PgxPool) *MentionRepo { return &MentionRepo{Pool: p} }

var _ domain.MentionRepository = (*MentionRepo)(nil)

// DeleteForComment removes every mention row tied to a comment, ahead of a
// fresh InsertBatch from the entity linker.
func (r *MentionRepo) DeleteForComment(ctx domain.Context, commentID string, commentCreated time.Time) error {
	tracer := otel.Tracer("repo.mentions")
	ctx, span := tracer.Start(ctx, "mentions.DeleteForComment")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "mentions"),
	)

	q := `DELETE FROM mentions WHERE comment_id=$1 AND comment_created_at=$2`
	if _, err := r.Pool.Exec(ctx, q, commentID, commentCreated); err != nil {
		return fmt.Errorf("op=mention.deleteForComment commentID=%s: %w", commentID, err)
	}
	return nil
}

// InsertBatch writes a set of mentions produced by one comment's linking pass.
func (r *MentionRepo) InsertBatch(ctx domain.Context, mentions []domain.Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	tracer := otel.Tracer("repo.mentions")
	ctx, span := tracer.Start(ctx, "mentions.InsertBatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "mentions"),
		attribute.Int("mentions.count", len(mentions)),
	)

	q := `INSERT INTO mentions (id, comment_id, comment_created_at, cast_member_id, sentiment_label,
		sentiment_score, confidence, weight, method, quote, is_sarcastic, is_toxic)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	for _, m := range mentions {
		if m.ID == "" {
			m.ID = uuid.New().String()
		}
		if _, err := r.Pool.Exec(ctx, q, m.ID, m.CommentID, m.CommentCreated, m.CastMemberID, m.SentimentLabel,
			m.SentimentScore, m.Confidence, m.Weight, m.Method, m.Quote, m.IsSarcastic, m.IsToxic); err != nil {
			return fmt.Errorf("op=mention.insertBatch commentID=%s: %w", m.CommentID, err)
		}
	}
	return nil
}

// ListForParent loads the mentions already resolved for a parent comment, used
// by the inherited-context resolution method for short reply chains.
func (r *MentionRepo) ListForParent(ctx domain.Context, parentCommentID string, parentCreated time.Time) ([]domain.Mention, error) {
	tracer := otel.Tracer("repo.mentions")
	ctx, span := tracer.Start(ctx, "mentions.ListForParent")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "mentions"),
	)

	q := `SELECT id, comment_id, comment_created_at, cast_member_id, sentiment_label, sentiment_score,
		confidence, weight, method, quote, is_sarcastic, is_toxic
		FROM mentions WHERE comment_id=$1 AND comment_created_at=$2`
	rows, err := r.Pool.Query(ctx, q, parentCommentID, parentCreated)
	if err != nil {
		return nil, fmt.Errorf("op=mention.listForParent parentID=%s: %w", parentCommentID, err)
	}
	defer rows.Close()

	var out []domain.Mention
	for rows.Next() {
		var m domain.Mention
		if err := rows.Scan(&m.ID, &m.CommentID, &m.CommentCreated, &m.CastMemberID, &m.SentimentLabel,
			&m.SentimentScore, &m.Confidence, &m.Weight, &m.Method, &m.Quote, &m.IsSarcastic, &m.IsToxic); err != nil {
			return nil, fmt.Errorf("op=mention.listForParent scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListForThread loads every mention for a thread joined with its parent
// comment's upvote score and time window, the Aggregator's sole input shape.
func (r *MentionRepo) ListForThread(ctx domain.Context, threadID string) ([]domain.MentionWithContext, error) {
	tracer := otel.Tracer("repo.mentions")
	ctx, span := tracer.Start(ctx, "mentions.ListForThread")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "mentions"),
	)

	q := `SELECT m.id, m.comment_id, m.comment_created_at, m.cast_member_id, m.sentiment_label,
		m.sentiment_score, m.confidence, m.weight, m.method, m.quote, m.is_sarcastic, m.is_toxic,
		c.score, c.time_window
		FROM mentions m JOIN comments c ON c.id = m.comment_id AND c.created_at = m.comment_created_at
		WHERE c.thread_id = $1`
	rows, err := r.Pool.Query(ctx, q, threadID)
	if err != nil {
		return nil, fmt.Errorf("op=mention.listForThread threadID=%s: %w", threadID, err)
	}
	defer rows.Close()

	var out []domain.MentionWithContext
	for rows.Next() {
		var m domain.MentionWithContext
		if err := rows.Scan(&m.ID, &m.CommentID, &m.CommentCreated, &m.CastMemberID, &m.SentimentLabel,
			&m.SentimentScore, &m.Confidence, &m.Weight, &m.Method, &m.Quote, &m.IsSarcastic, &m.IsToxic,
			&m.CommentScore, &m.TimeWindow); err != nil {
			return nil, fmt.Errorf("op=mention.listForThread scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
