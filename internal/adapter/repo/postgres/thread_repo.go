package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/therealityreport/socializer/internal/domain"
)

// ThreadRepo persists Thread rows.
type ThreadRepo struct{ Pool PgxPool }

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(p PgxPool) *ThreadRepo { return &ThreadRepo{Pool: p} }

var _ domain.ThreadRepository = (*ThreadRepo)(nil)

// Upsert inserts a new thread or updates an existing one keyed by reddit_id.
func (r *ThreadRepo) Upsert(ctx domain.Context, t domain.Thread) (domain.Thread, error) {
	tracer := otel.Tracer("repo.threads")
	ctx, span := tracer.Start(ctx, "threads.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPSERT"),
		attribute.String("db.sql.table", "threads"),
	)

	id := t.ID
	if id == "" {
		id = uuid.New().String()
	}

	q := `
		INSERT INTO threads (id, reddit_id, subreddit, title, url, air_time, created_at, status, total_comments, synopsis, last_polled, latest_comment, poll_interval_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (reddit_id) DO UPDATE SET
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			air_time = EXCLUDED.air_time,
			status = EXCLUDED.status,
			total_comments = EXCLUDED.total_comments,
			synopsis = EXCLUDED.synopsis,
			last_polled = EXCLUDED.last_polled,
			latest_comment = EXCLUDED.latest_comment,
			poll_interval_seconds = EXCLUDED.poll_interval_seconds
		RETURNING id`
	row := r.Pool.QueryRow(ctx, q, id, t.RedditID, t.Subreddit, t.Title, t.URL, t.AirTime, t.Created, t.Status,
		t.TotalComments, t.Synopsis, t.LastPolled, t.LatestComment, t.PollIntervalSeconds)
	if err := row.Scan(&id); err != nil {
		return domain.Thread{}, fmt.Errorf("op=thread.upsert: %w", err)
	}
	t.ID = id
	return t, nil
}

// Get loads a thread by surrogate id.
func (r *ThreadRepo) Get(ctx domain.Context, id string) (domain.Thread, error) {
	return r.scanOne(ctx, "threads.Get", `WHERE id=$1`, id)
}

// GetByRedditID loads a thread by its external reddit_id.
func (r *ThreadRepo) GetByRedditID(ctx domain.Context, redditID string) (domain.Thread, error) {
	return r.scanOne(ctx, "threads.GetByRedditID", `WHERE reddit_id=$1`, redditID)
}

func (r *ThreadRepo) scanOne(ctx domain.Context, spanName, where string, arg any) (domain.Thread, error) {
	tracer := otel.Tracer("repo.threads")
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "threads"),
	)

	q := `SELECT id, reddit_id, subreddit, title, url, air_time, created_at, status, total_comments, synopsis, last_polled, latest_comment, poll_interval_seconds FROM threads ` + where
	row := r.Pool.QueryRow(ctx, q, arg)
	var t domain.Thread
	if err := row.Scan(&t.ID, &t.RedditID, &t.Subreddit, &t.Title, &t.URL, &t.AirTime, &t.Created, &t.Status,
		&t.TotalComments, &t.Synopsis, &t.LastPolled, &t.LatestComment, &t.PollIntervalSeconds); err != nil {
		if err == pgx.ErrNoRows {
			return domain.Thread{}, fmt.Errorf("op=thread.get: %w", domain.ErrNotFound)
		}
		return domain.Thread{}, fmt.Errorf("op=thread.get: %w", err)
	}
	return t, nil
}

// UpdatePollState updates the poll bookkeeping fields written after each
// ingestion pass.
func (r *ThreadRepo) UpdatePollState(ctx domain.Context, id string, status domain.ThreadStatus, lastPolled, latestComment *time.Time, totalComments int) error {
	tracer := otel.Tracer("repo.threads")
	ctx, span := tracer.Start(ctx, "threads.UpdatePollState")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "threads"),
	)

	q := `UPDATE threads SET status=$2, last_polled=$3, latest_comment=$4, total_comments=$5 WHERE id=$1`
	tag, err := r.Pool.Exec(ctx, q, id, status, lastPolled, latestComment, totalComments)
	if err != nil {
		return fmt.Errorf("op=thread.updatePollState id=%s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=thread.updatePollState id=%s: %w", id, domain.ErrNotFound)
	}
	return nil
}
