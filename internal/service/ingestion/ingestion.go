// Package ingestion implements the ingestion engine: full
// submission pull, incremental polling, idempotent comment persistence,
// ancestor reply-count reconciliation, and archive policy.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/internal/service/timewindow"
)

// Result is the outcome of ingest_thread or poll_thread.
type Result struct {
	Inserted           int
	Updated            int
	Skipped            int
	CommentIDs         []domain.CommentKey
	ShouldSchedulePoll bool
	PollIntervalSeconds int
	Status             domain.ThreadStatus
}

// Engine wires the Reddit client, blob archival, and repositories together.
type Engine struct {
	Threads  domain.ThreadRepository
	Comments domain.CommentRepository
	Reddit   domain.RedditClient
	Blobs    domain.BlobStore

	AuthorSalt        string
	PrimaryZone       *time.Location
	AutoArchive       bool
	ArchiveIdleWindow time.Duration
	BlobKeyPrefix     string

	logger *slog.Logger
}

// New constructs an Engine with a default logger.
func New(e Engine) *Engine {
	e.logger = slog.Default().With(slog.String("component", "ingestion"))
	if e.PrimaryZone == nil {
		e.PrimaryZone = time.UTC
	}
	return &e
}

// IngestThread performs the full-payload fetch, archival, upsert, and
// comment-persist protocol for a submission not yet tracked (or re-pulled).
func (e *Engine) IngestThread(ctx context.Context, redditID, subreddit string) (Result, error) {
	submission, err := e.Reddit.GetSubmission(ctx, redditID)
	if err != nil {
		return Result{}, fmt.Errorf("op=ingestion.IngestThread fetch: %w", err)
	}

	e.archiveRaw(ctx, subreddit, redditID)

	existing, err := e.Threads.GetByRedditID(ctx, redditID)
	thread := domain.Thread{
		RedditID:  redditID,
		Subreddit: subreddit,
		Title:     submission.Title,
		URL:       submission.URL,
		Created:   submission.CreatedUTC,
	}
	switch {
	case err == nil:
		thread = existing
	case errors.Is(err, domain.ErrNotFound):
		// new thread; keep the freshly constructed row
	default:
		return Result{}, fmt.Errorf("op=ingestion.IngestThread get_thread: %w", err)
	}
	thread.Status = statusForSubmission(thread.Status, submission.IsArchived)

	thread, err = e.Threads.Upsert(ctx, thread)
	if err != nil {
		return Result{}, fmt.Errorf("op=ingestion.IngestThread upsert_thread: %w", err)
	}

	comments, err := e.Reddit.FetchComments(ctx, redditID)
	if err != nil {
		return Result{}, fmt.Errorf("op=ingestion.IngestThread fetch_comments: %w", err)
	}

	persisted, err := e.persistComments(ctx, thread, comments)
	if err != nil {
		return Result{}, fmt.Errorf("op=ingestion.IngestThread persist: %w", err)
	}

	totalComments := submission.NumComments
	existingPlusInserted := thread.TotalComments + persisted.inserted
	if existingPlusInserted > totalComments {
		totalComments = existingPlusInserted
	}

	latest := thread.LatestComment
	if persisted.maxCreated != nil {
		latest = persisted.maxCreated
	} else if latest == nil {
		latest = &thread.Created
	}

	status := e.applyArchivePolicy(thread.Status, submission.IsArchived, latest)
	now := time.Now().UTC()
	if err := e.Threads.UpdatePollState(ctx, thread.ID, status, &now, latest, totalComments); err != nil {
		return Result{}, fmt.Errorf("op=ingestion.IngestThread update_poll_state: %w", err)
	}

	return Result{
		Inserted:            persisted.inserted,
		Updated:             persisted.updated,
		Skipped:              persisted.skipped,
		CommentIDs:           persisted.candidateIDs,
		ShouldSchedulePoll:   status == domain.ThreadLive,
		PollIntervalSeconds:  thread.EffectivePollInterval(),
		Status:               status,
	}, nil
}

// PollThread performs an incremental delta pull against a tracked thread.
func (e *Engine) PollThread(ctx context.Context, threadID string) (Result, error) {
	thread, err := e.Threads.Get(ctx, threadID)
	if err != nil {
		return Result{}, fmt.Errorf("op=ingestion.PollThread get_thread: %w", err)
	}

	lastSeen := thread.Created
	if thread.LatestComment != nil {
		lastSeen = *thread.LatestComment
	}

	all, err := e.Reddit.FetchComments(ctx, thread.RedditID)
	if err != nil {
		return Result{}, fmt.Errorf("op=ingestion.PollThread fetch_comments: %w", err)
	}
	var fresh []domain.RedditComment
	for _, c := range all {
		if c.CreatedUTC.After(lastSeen) {
			fresh = append(fresh, c)
		}
	}

	persisted, err := e.persistComments(ctx, thread, fresh)
	if err != nil {
		return Result{}, fmt.Errorf("op=ingestion.PollThread persist: %w", err)
	}

	latest := thread.LatestComment
	if persisted.maxCreated != nil && (latest == nil || persisted.maxCreated.After(*latest)) {
		latest = persisted.maxCreated
	}
	totalComments := thread.TotalComments + persisted.inserted

	submission, err := e.Reddit.GetSubmission(ctx, thread.RedditID)
	archived := false
	if err == nil {
		archived = submission.IsArchived
	}
	status := e.applyArchivePolicy(thread.Status, archived, latest)

	now := time.Now().UTC()
	if err := e.Threads.UpdatePollState(ctx, thread.ID, status, &now, latest, totalComments); err != nil {
		return Result{}, fmt.Errorf("op=ingestion.PollThread update_poll_state: %w", err)
	}

	return Result{
		Inserted:            persisted.inserted,
		Updated:             persisted.updated,
		Skipped:              persisted.skipped,
		CommentIDs:           persisted.candidateIDs,
		ShouldSchedulePoll:   status == domain.ThreadLive,
		PollIntervalSeconds:  thread.EffectivePollInterval(),
		Status:               status,
	}, nil
}

type persistOutcome struct {
	inserted     int
	updated      int
	skipped      int
	candidateIDs []domain.CommentKey
	maxCreated   *time.Time
}

// persistComments implements the comment-persist protocol:
// idempotent find-or-insert, change detection, and ancestor reply-count
// reconciliation.
func (e *Engine) persistComments(ctx context.Context, thread domain.Thread, payloads []domain.RedditComment) (persistOutcome, error) {
	var out persistOutcome
	var newParents []string // reddit IDs of parents to reconcile

	for _, p := range payloads {
		parentRedditID := stripParentPrefix(p.ParentID)
		tw := timewindow.Classify(p.CreatedUTC, thread.AirTime, e.PrimaryZone)

		existing, found, err := e.Comments.FindByThreadAndRedditID(ctx, thread.ID, p.ID)
		if err != nil {
			return out, fmt.Errorf("find_by_thread_and_reddit_id: %w", err)
		}

		if found {
			changed := false
			newHash := saltedAuthorHash(p.Author, e.AuthorSalt)
			if ptrStr(existing.AuthorHash) != newHash {
				existing.AuthorHash = strPtrOrNil(newHash)
				changed = true
			}
			bodyChanged := existing.Body != p.Body
			if bodyChanged {
				existing.Body = p.Body
				changed = true
			}
			if existing.Score != p.Score {
				existing.Score = p.Score
				changed = true
			}
			if ptrStr(existing.ParentRedditID) != parentRedditID {
				existing.ParentRedditID = strPtrOrNil(parentRedditID)
				changed = true
			}
			if existing.TimeWindow != tw {
				existing.TimeWindow = tw
				changed = true
			}
			if changed {
				if err := e.Comments.Update(ctx, existing); err != nil {
					return out, fmt.Errorf("update_comment: %w", err)
				}
				out.updated++
				if bodyChanged {
					out.candidateIDs = append(out.candidateIDs, domain.CommentKey{ID: existing.ID, Created: existing.Created})
				}
			} else {
				out.skipped++
			}
			bumpMax(&out.maxCreated, p.CreatedUTC)
			continue
		}

		c := domain.Comment{
			ThreadID:       thread.ID,
			RedditID:       p.ID,
			ParentRedditID: strPtrOrNil(parentRedditID),
			AuthorHash:     strPtrOrNil(saltedAuthorHash(p.Author, e.AuthorSalt)),
			Body:           p.Body,
			Created:        p.CreatedUTC,
			Score:          p.Score,
			TimeWindow:     tw,
			UpdatedAt:      p.CreatedUTC,
		}
		inserted, err := e.Comments.Insert(ctx, c)
		if err != nil {
			return out, fmt.Errorf("insert_comment: %w", err)
		}
		out.inserted++
		out.candidateIDs = append(out.candidateIDs, domain.CommentKey{ID: inserted.ID, Created: inserted.Created})
		bumpMax(&out.maxCreated, p.CreatedUTC)
		if parentRedditID != "" {
			newParents = append(newParents, parentRedditID)
		}
	}

	if len(newParents) > 0 {
		if err := e.reconcileAncestors(ctx, thread, newParents, *out.maxCreated); err != nil {
			e.logger.Warn("ancestor reply-count reconciliation failed", slog.Any("error", err))
		}
	}

	return out, nil
}

// reconcileAncestors walks each new comment's parent chain, incrementing
// reply_count and bumping updated_at on every ancestor found.
func (e *Engine) reconcileAncestors(ctx context.Context, thread domain.Thread, parentRedditIDs []string, latest time.Time) error {
	seen := make(map[string]bool)
	var ancestorIDs []string

	for _, parentRedditID := range parentRedditIDs {
		cursor := parentRedditID
		for hops := 0; hops < 50 && cursor != ""; hops++ {
			if seen[cursor] {
				break
			}
			seen[cursor] = true
			c, found, err := e.Comments.FindByThreadAndRedditID(ctx, thread.ID, cursor)
			if err != nil || !found {
				break
			}
			ancestorIDs = append(ancestorIDs, c.ID)
			cursor = ptrStr(c.ParentRedditID)
		}
	}
	if len(ancestorIDs) == 0 {
		return nil
	}
	return e.Comments.IncrementReplyCounts(ctx, ancestorIDs, latest)
}

func (e *Engine) archiveRaw(ctx context.Context, subreddit, redditID string) {
	if e.Blobs == nil {
		return
	}
	raw, err := e.Reddit.FetchSubmissionRaw(ctx, redditID)
	if err != nil {
		e.logger.Warn("raw submission archival fetch failed", slog.Any("error", err))
		return
	}
	body, err := json.Marshal(raw)
	if err != nil {
		e.logger.Warn("raw submission archival marshal failed", slog.Any("error", err))
		return
	}
	key := fmt.Sprintf("%s/%s/%s/%d.json", e.BlobKeyPrefix, subreddit, redditID, time.Now().UTC().Unix())
	if err := e.Blobs.PutObject(ctx, key, body, "application/json"); err != nil {
		e.logger.Warn("raw submission archival upload failed", slog.String("key", key), slog.Any("error", err))
	}
}

// applyArchivePolicy implements the archive policy.
func (e *Engine) applyArchivePolicy(current domain.ThreadStatus, redditArchived bool, latestComment *time.Time) domain.ThreadStatus {
	if redditArchived {
		return domain.ThreadArchived
	}
	if e.AutoArchive && latestComment != nil && time.Since(*latestComment) >= e.ArchiveIdleWindow {
		return domain.ThreadArchived
	}
	if current != domain.ThreadArchived && current != domain.ThreadCompleted {
		return domain.ThreadLive
	}
	return current
}

func statusForSubmission(current domain.ThreadStatus, redditArchived bool) domain.ThreadStatus {
	if redditArchived {
		return domain.ThreadArchived
	}
	if current == domain.ThreadArchived || current == domain.ThreadCompleted {
		return current
	}
	return domain.ThreadLive
}

func stripParentPrefix(parentID string) string {
	if parentID == "" {
		return ""
	}
	if strings.HasPrefix(parentID, "t3_") {
		return ""
	}
	return strings.TrimPrefix(parentID, "t1_")
}

func bumpMax(cur **time.Time, candidate time.Time) {
	if *cur == nil || candidate.After(**cur) {
		c := candidate
		*cur = &c
	}
}

func ptrStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
