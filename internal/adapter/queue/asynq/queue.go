// Package asynqadp adapts the domain.Queue port onto a Redis-backed asynq
// client/server pair, implementing the named-queue routing, retry, and
// self-scheduling semantics of the task queue.
package asynqadp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/therealityreport/socializer/internal/adapter/observability"
	"github.com/therealityreport/socializer/internal/domain"
)

// Task names. The queue they route to is fixed by routeForTask below.
const (
	TaskIngestThread      = "ingest_thread"
	TaskPollThread        = "poll_thread"
	TaskClassifyComments  = "classify_comments"
	TaskLinkEntities      = "link_entities"
	TaskComputeAggregates = "compute_aggregates"
	TaskCheckAlerts       = "check_alerts"
	TaskDeliverAlertEvent = "deliver_alert_event"
)

// Queue names.
const (
	QueueDefault   = "default"
	QueueIngestion = "ingestion"
	QueueML        = "ml"
	QueueAlerts    = "alerts"
)

// routeForTask implements the routing table:
//   - ingest_thread.*, poll_thread.*            -> ingestion
//   - classify_comments.*, link_entities.*,
//     compute_aggregates.*                      -> ml
//   - check_alerts.*, deliver_alert_event.*      -> alerts
func routeForTask(task string) string {
	switch task {
	case TaskIngestThread, TaskPollThread:
		return QueueIngestion
	case TaskClassifyComments, TaskLinkEntities, TaskComputeAggregates:
		return QueueML
	case TaskCheckAlerts, TaskDeliverAlertEvent:
		return QueueAlerts
	default:
		return QueueDefault
	}
}

// MaxRetries is the hard cap on a job's retry count.
const MaxRetries = 5

// Queue wraps an asynq.Client to satisfy domain.Queue.
type Queue struct {
	client *asynq.Client
}

// New constructs a Queue from a Redis connection URL.
func New(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=queue.New: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

// Close releases the underlying Redis connection.
func (q *Queue) Close() error { return q.client.Close() }

func (q *Queue) enqueue(ctx domain.Context, task string, payload any, opts ...asynq.Option) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue marshal %s: %w", task, err)
	}
	t := asynq.NewTask(task, b)
	base := []asynq.Option{
		asynq.Queue(routeForTask(task)),
		asynq.MaxRetry(MaxRetries),
		asynq.Retention(48 * time.Hour),
	}
	info, err := q.client.EnqueueContext(ctx, t, append(base, opts...)...)
	if err != nil {
		return "", fmt.Errorf("op=queue.enqueue %s: %w", task, err)
	}
	observability.EnqueueJob(task, routeForTask(task))
	return info.ID, nil
}

// IngestThreadPayload is the payload for TaskIngestThread.
type IngestThreadPayload struct {
	RedditID  string `json:"reddit_id"`
	Subreddit string `json:"subreddit"`
}

// PollThreadPayload is the payload for TaskPollThread.
type PollThreadPayload struct {
	ThreadID string `json:"thread_id"`
}

// CommentBatchPayload is the payload for TaskClassifyComments and TaskLinkEntities.
type CommentBatchPayload struct {
	IDs []domain.CommentKey `json:"ids"`
}

// ThreadPayload is the payload for TaskComputeAggregates and TaskCheckAlerts.
type ThreadPayload struct {
	ThreadID string `json:"thread_id"`
}

// AlertEventPayload is the payload for TaskDeliverAlertEvent.
type AlertEventPayload struct {
	EventID string `json:"event_id"`
}

// EnqueueIngestThread enqueues a full-payload ingest.
func (q *Queue) EnqueueIngestThread(ctx domain.Context, redditID, subreddit string) (string, error) {
	return q.enqueue(ctx, TaskIngestThread, IngestThreadPayload{RedditID: redditID, Subreddit: subreddit})
}

// EnqueuePollThread enqueues an incremental poll, optionally delayed by countdown.
func (q *Queue) EnqueuePollThread(ctx domain.Context, threadID string, countdown time.Duration) (string, error) {
	opts := []asynq.Option{}
	if countdown > 0 {
		opts = append(opts, asynq.ProcessIn(countdown))
	}
	return q.enqueue(ctx, TaskPollThread, PollThreadPayload{ThreadID: threadID}, opts...)
}

// EnqueueClassifyComments enqueues sentiment scoring for a batch of comments.
func (q *Queue) EnqueueClassifyComments(ctx domain.Context, ids []domain.CommentKey) (string, error) {
	return q.enqueue(ctx, TaskClassifyComments, CommentBatchPayload{IDs: ids})
}

// EnqueueLinkEntities enqueues mention linking for a batch of comments.
func (q *Queue) EnqueueLinkEntities(ctx domain.Context, ids []domain.CommentKey) (string, error) {
	return q.enqueue(ctx, TaskLinkEntities, CommentBatchPayload{IDs: ids})
}

// EnqueueComputeAggregates enqueues a full aggregate recompute for a thread.
func (q *Queue) EnqueueComputeAggregates(ctx domain.Context, threadID string) (string, error) {
	return q.enqueue(ctx, TaskComputeAggregates, ThreadPayload{ThreadID: threadID})
}

// EnqueueCheckAlerts enqueues alert-rule evaluation for a thread.
func (q *Queue) EnqueueCheckAlerts(ctx domain.Context, threadID string) (string, error) {
	return q.enqueue(ctx, TaskCheckAlerts, ThreadPayload{ThreadID: threadID})
}

// EnqueueDeliverAlertEvent enqueues delivery of a single alert event.
func (q *Queue) EnqueueDeliverAlertEvent(ctx domain.Context, eventID string) (string, error) {
	return q.enqueue(ctx, TaskDeliverAlertEvent, AlertEventPayload{EventID: eventID})
}
