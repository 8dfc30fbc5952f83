package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therealityreport/socializer/internal/domain"
)

// CommentRepo persists Comment rows against the range-partitioned comments
// table (partition key: created_at, composite primary key (id, created_at)).
type CommentRepo struct{ Pool PgxPool }

// NewCommentRepo constructs a CommentRepo.
func NewCommentRepo(p PgxPool) *CommentRepo { return &CommentRepo{Pool: p} }

var _ domain.CommentRepository = (*CommentRepo)(nil)

const commentColumns = `id, thread_id, reddit_id, parent_reddit_id, author_hash, body, created_at, score, reply_count,
	updated_at, time_window, sentiment_label, sentiment_score, sentiment_breakdown, is_sarcastic,
	sarcasm_confidence, is_toxic, toxicity_confidence, model_version`

// FindByThreadAndRedditID looks up a comment by its natural key, used to
// decide insert-vs-update during an ingestion pass.
func (r *CommentRepo) FindByThreadAndRedditID(ctx domain.Context, threadID, redditID string) (domain.Comment, bool, error) {
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.FindByThreadAndRedditID")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "comments"),
	)

	q := `SELECT ` + commentColumns + ` FROM comments WHERE thread_id=$1 AND reddit_id=$2`
	row := r.Pool.QueryRow(ctx, q, threadID, redditID)
	c, err := scanComment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Comment{}, false, nil
		}
		return domain.Comment{}, false, fmt.Errorf("op=comment.findByThreadAndRedditID: %w", err)
	}
	return c, true, nil
}

// Insert writes a new comment row.
func (r *CommentRepo) Insert(ctx domain.Context, c domain.Comment) (domain.Comment, error) {
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "comments"),
	)

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	breakdown, err := marshalBreakdown(c.SentimentBreakdown)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("op=comment.insert marshal breakdown: %w", err)
	}

	q := `INSERT INTO comments (` + commentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	_, err = r.Pool.Exec(ctx, q, c.ID, c.ThreadID, c.RedditID, c.ParentRedditID, c.AuthorHash, c.Body, c.Created,
		c.Score, c.ReplyCount, c.UpdatedAt, c.TimeWindow, c.SentimentLabel, c.SentimentScore, breakdown,
		c.IsSarcastic, c.SarcasmConfidence, c.IsToxic, c.ToxicityConfidence, c.ModelVersion)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("op=comment.insert: %w", err)
	}
	return c, nil
}

// Update rewrites a comment's mutable fields (body, author_hash,
// parent_reddit_id, score, reply_count, time_window, sentiment).
func (r *CommentRepo) Update(ctx domain.Context, c domain.Comment) error {
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.Update")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "comments"),
	)

	breakdown, err := marshalBreakdown(c.SentimentBreakdown)
	if err != nil {
		return fmt.Errorf("op=comment.update marshal breakdown: %w", err)
	}

	q := `UPDATE comments SET score=$3, reply_count=$4, updated_at=$5, time_window=$6, sentiment_label=$7,
		sentiment_score=$8, sentiment_breakdown=$9, is_sarcastic=$10, sarcasm_confidence=$11, is_toxic=$12,
		toxicity_confidence=$13, model_version=$14, body=$15, author_hash=$16, parent_reddit_id=$17
		WHERE id=$1 AND created_at=$2`
	tag, err := r.Pool.Exec(ctx, q, c.ID, c.Created, c.Score, c.ReplyCount, c.UpdatedAt, c.TimeWindow,
		c.SentimentLabel, c.SentimentScore, breakdown, c.IsSarcastic, c.SarcasmConfidence, c.IsToxic,
		c.ToxicityConfidence, c.ModelVersion, c.Body, c.AuthorHash, c.ParentRedditID)
	if err != nil {
		return fmt.Errorf("op=comment.update id=%s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=comment.update id=%s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// UpdateSentiment is a narrow variant of Update used by the classification
// and entity-linking stages, which only ever touch sentiment fields.
func (r *CommentRepo) UpdateSentiment(ctx domain.Context, c domain.Comment) error {
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.UpdateSentiment")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "comments"),
	)

	breakdown, err := marshalBreakdown(c.SentimentBreakdown)
	if err != nil {
		return fmt.Errorf("op=comment.updateSentiment marshal breakdown: %w", err)
	}

	q := `UPDATE comments SET sentiment_label=$3, sentiment_score=$4, sentiment_breakdown=$5,
		is_sarcastic=$6, sarcasm_confidence=$7, is_toxic=$8, toxicity_confidence=$9, model_version=$10
		WHERE id=$1 AND created_at=$2`
	tag, err := r.Pool.Exec(ctx, q, c.ID, c.Created, c.SentimentLabel, c.SentimentScore, breakdown,
		c.IsSarcastic, c.SarcasmConfidence, c.IsToxic, c.ToxicityConfidence, c.ModelVersion)
	if err != nil {
		return fmt.Errorf("op=comment.updateSentiment id=%s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=comment.updateSentiment id=%s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// IncrementReplyCounts bumps reply_count and updated_at for every ancestor in
// a reply chain, used when a new comment arrives under existing parents.
func (r *CommentRepo) IncrementReplyCounts(ctx domain.Context, ancestorIDs []string, latest time.Time) error {
	if len(ancestorIDs) == 0 {
		return nil
	}
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.IncrementReplyCounts")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "comments"),
	)

	q := `UPDATE comments SET reply_count = reply_count + 1, updated_at=$2 WHERE id = ANY($1)`
	if _, err := r.Pool.Exec(ctx, q, ancestorIDs, latest); err != nil {
		return fmt.Errorf("op=comment.incrementReplyCounts: %w", err)
	}
	return nil
}

// Get loads a single comment by its composite primary key.
func (r *CommentRepo) Get(ctx domain.Context, id string, created time.Time) (domain.Comment, error) {
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "comments"),
	)

	q := `SELECT ` + commentColumns + ` FROM comments WHERE id=$1 AND created_at=$2`
	row := r.Pool.QueryRow(ctx, q, id, created)
	c, err := scanComment(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Comment{}, fmt.Errorf("op=comment.get id=%s: %w", id, domain.ErrNotFound)
		}
		return domain.Comment{}, fmt.Errorf("op=comment.get id=%s: %w", id, err)
	}
	return c, nil
}

// ListByIDs loads comments for a batch of composite keys, used by the
// classification and entity-linking task handlers to hydrate their work unit.
func (r *CommentRepo) ListByIDs(ctx domain.Context, ids []domain.CommentKey) ([]domain.Comment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.ListByIDs")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "comments"),
	)

	rowIDs := make([]string, len(ids))
	rowCreated := make([]time.Time, len(ids))
	for i, k := range ids {
		rowIDs[i] = k.ID
		rowCreated[i] = k.Created
	}

	q := `SELECT ` + commentColumns + ` FROM comments WHERE (id, created_at) = ANY(SELECT UNNEST($1::uuid[]), UNNEST($2::timestamptz[]))`
	rows, err := r.Pool.Query(ctx, q, rowIDs, rowCreated)
	if err != nil {
		return nil, fmt.Errorf("op=comment.listByIDs: %w", err)
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("op=comment.listByIDs scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListForThread loads every comment belonging to a thread, used by the
// aggregator's mention-context joins and export paths.
func (r *CommentRepo) ListForThread(ctx domain.Context, threadID string) ([]domain.Comment, error) {
	tracer := otel.Tracer("repo.comments")
	ctx, span := tracer.Start(ctx, "comments.ListForThread")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "comments"),
	)

	q := `SELECT ` + commentColumns + ` FROM comments WHERE thread_id=$1 ORDER BY created_at ASC`
	rows, err := r.Pool.Query(ctx, q, threadID)
	if err != nil {
		return nil, fmt.Errorf("op=comment.listForThread threadID=%s: %w", threadID, err)
	}
	defer rows.Close()

	var out []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("op=comment.listForThread scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (domain.Comment, error) {
	var c domain.Comment
	var breakdown []byte
	if err := row.Scan(&c.ID, &c.ThreadID, &c.RedditID, &c.ParentRedditID, &c.AuthorHash, &c.Body, &c.Created,
		&c.Score, &c.ReplyCount, &c.UpdatedAt, &c.TimeWindow, &c.SentimentLabel, &c.SentimentScore, &breakdown,
		&c.IsSarcastic, &c.SarcasmConfidence, &c.IsToxic, &c.ToxicityConfidence, &c.ModelVersion); err != nil {
		return domain.Comment{}, err
	}
	if len(breakdown) > 0 {
		var b domain.SentimentBreakdown
		if err := json.Unmarshal(breakdown, &b); err != nil {
			return domain.Comment{}, fmt.Errorf("unmarshal sentiment_breakdown: %w", err)
		}
		c.SentimentBreakdown = &b
	}
	return c, nil
}

func marshalBreakdown(b *domain.SentimentBreakdown) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}
