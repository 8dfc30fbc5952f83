package asynqadp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/therealityreport/socializer/internal/usecase"
)

// Worker processes background tasks using asynq, dispatching each of the
// seven named tasks to its matching usecase.Handlers method.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// NewWorker constructs a Worker bound to the given Redis connection and
// registers every task handler against h.
func NewWorker(redisURL string, concurrency int, h *usecase.Handlers, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default().With(slog.String("component", "worker"))
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueAlerts:    6,
			QueueML:        4,
			QueueIngestion: 3,
			QueueDefault:   1,
		},
	})
	mux := asynq.NewServeMux()
	w := &Worker{server: srv, mux: mux, logger: logger}

	mux.HandleFunc(TaskIngestThread, w.traced(TaskIngestThread, func(ctx context.Context, t *asynq.Task) error {
		var p IngestThreadPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.IngestThread(ctx, p.RedditID, p.Subreddit)
	}))

	mux.HandleFunc(TaskPollThread, w.traced(TaskPollThread, func(ctx context.Context, t *asynq.Task) error {
		var p PollThreadPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.PollThread(ctx, p.ThreadID)
	}))

	mux.HandleFunc(TaskClassifyComments, w.traced(TaskClassifyComments, func(ctx context.Context, t *asynq.Task) error {
		var p CommentBatchPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.ClassifyComments(ctx, p.IDs)
	}))

	mux.HandleFunc(TaskLinkEntities, w.traced(TaskLinkEntities, func(ctx context.Context, t *asynq.Task) error {
		var p CommentBatchPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.LinkEntities(ctx, p.IDs)
	}))

	mux.HandleFunc(TaskComputeAggregates, w.traced(TaskComputeAggregates, func(ctx context.Context, t *asynq.Task) error {
		var p ThreadPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.ComputeAggregates(ctx, p.ThreadID)
	}))

	mux.HandleFunc(TaskCheckAlerts, w.traced(TaskCheckAlerts, func(ctx context.Context, t *asynq.Task) error {
		var p ThreadPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.CheckAlerts(ctx, p.ThreadID)
	}))

	mux.HandleFunc(TaskDeliverAlertEvent, w.traced(TaskDeliverAlertEvent, func(ctx context.Context, t *asynq.Task) error {
		var p AlertEventPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.DeliverAlertEvent(ctx, p.EventID)
	}))

	return w, nil
}

// traced wraps a handler with an otel span and logs every failed attempt,
// then returns the error so asynq retries the task and marks it failed once
// its retries are exhausted.
func (w *Worker) traced(task string, fn func(context.Context, *asynq.Task) error) func(context.Context, *asynq.Task) error {
	tracer := otel.Tracer("queue.worker")
	return func(ctx context.Context, t *asynq.Task) error {
		ctx, span := tracer.Start(ctx, task)
		defer span.End()
		if err := fn(ctx, t); err != nil {
			w.logger.Error("task failed", "task", task, "error", err)
			return err
		}
		return nil
	}
}

// Start begins processing tasks until Stop is called.
func (w *Worker) Start() error { return w.server.Start(w.mux) }

// Stop gracefully shuts down the worker server.
func (w *Worker) Stop() { w.server.Shutdown() }
