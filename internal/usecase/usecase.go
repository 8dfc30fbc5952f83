// Package usecase wires the pipeline's services together into the seven
// task handlers the queue dispatches to: ingest_thread, poll_thread,
// classify_comments, link_entities, compute_aggregates, check_alerts, and
// deliver_alert_event.
package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/internal/service/aggregator"
	"github.com/therealityreport/socializer/internal/service/alerts"
	"github.com/therealityreport/socializer/internal/service/entitylinker"
	"github.com/therealityreport/socializer/internal/service/ingestion"
	"github.com/therealityreport/socializer/internal/service/sentiment"
)

// Handlers bundles every task handler the worker process registers against
// the queue's task names.
type Handlers struct {
	Ingestion  *ingestion.Engine
	Comments   domain.CommentRepository
	CastMembers domain.CastMemberRepository
	Mentions   domain.MentionRepository
	Threads    domain.ThreadRepository

	Linker   *entitylinker.Linker
	Pipeline *sentiment.Pipeline

	// TauSarcasm and TauToxic gate the confidence-based (non-flagged) branch
	// of sentiment attenuation; 0 disables that branch.
	TauSarcasm float64
	TauToxic   float64

	Aggregator *aggregator.Aggregator
	Evaluator  *alerts.Evaluator
	Delivery   *alerts.Delivery
	Events     domain.AlertEventRepository

	Queue domain.Queue

	logger *slog.Logger
}

// New constructs a Handlers bundle with a default logger.
func New(h Handlers) *Handlers {
	h.logger = slog.Default().With(slog.String("component", "usecase"))
	return &h
}

// IngestThread performs the full submission pull, then (when comments were
// inserted) chains classify_comments for the new batch and self-schedules a
// poll_thread follow-up.
func (h *Handlers) IngestThread(ctx domain.Context, redditID, subreddit string) error {
	result, err := h.Ingestion.IngestThread(ctx, redditID, subreddit)
	if err != nil {
		return fmt.Errorf("op=usecase.IngestThread: %w", err)
	}
	thread, err := h.Threads.GetByRedditID(ctx, redditID)
	if err != nil {
		return fmt.Errorf("op=usecase.IngestThread get_thread: %w", err)
	}
	return h.chainAfterIngest(ctx, thread.ID, result)
}

// PollThread performs an incremental delta pull against an already-tracked
// thread and re-chains downstream processing exactly like IngestThread.
func (h *Handlers) PollThread(ctx domain.Context, threadID string) error {
	result, err := h.Ingestion.PollThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("op=usecase.PollThread: %w", err)
	}
	return h.chainAfterIngest(ctx, threadID, result)
}

func (h *Handlers) chainAfterIngest(ctx domain.Context, threadID string, result ingestion.Result) error {
	if len(result.CommentIDs) > 0 {
		if _, err := h.Queue.EnqueueClassifyComments(ctx, result.CommentIDs); err != nil {
			h.logger.Warn("enqueue classify_comments failed", "thread_id", threadID, "error", err)
		}
	}
	if result.ShouldSchedulePoll {
		countdown := time.Duration(result.PollIntervalSeconds) * time.Second
		if _, err := h.Queue.EnqueuePollThread(ctx, threadID, countdown); err != nil {
			h.logger.Warn("enqueue poll_thread failed", "thread_id", threadID, "error", err)
		}
	}
	return nil
}
