// Package main provides the worker process entry point: it consumes the
// seven named tasks (ingest_thread, poll_thread, classify_comments,
// link_entities, compute_aggregates, check_alerts, deliver_alert_event)
// from the asynq-backed queue and runs them against the wired pipeline.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/therealityreport/socializer/internal/adapter/blobstore/s3"
	"github.com/therealityreport/socializer/internal/adapter/notify/email"
	"github.com/therealityreport/socializer/internal/adapter/notify/slack"
	"github.com/therealityreport/socializer/internal/adapter/observability"
	asynqadp "github.com/therealityreport/socializer/internal/adapter/queue/asynq"
	"github.com/therealityreport/socializer/internal/adapter/repo/postgres"
	opinionmining "github.com/therealityreport/socializer/internal/adapter/sentiment/opinionmining"
	"github.com/therealityreport/socializer/internal/adapter/sentiment/primary"
	"github.com/therealityreport/socializer/internal/config"
	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/internal/service/aggregator"
	"github.com/therealityreport/socializer/internal/service/alerts"
	"github.com/therealityreport/socializer/internal/service/entitylinker"
	"github.com/therealityreport/socializer/internal/service/ingestion"
	"github.com/therealityreport/socializer/internal/service/ratelimiter"
	"github.com/therealityreport/socializer/internal/service/reddit"
	"github.com/therealityreport/socializer/internal/service/sentiment"
	"github.com/therealityreport/socializer/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9090", mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

	pool, err := postgres.NewPool(context.Background(), cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("redis url parse failed", slog.Any("error", err))
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	threads := postgres.NewThreadRepo(pool)
	comments := postgres.NewCommentRepo(pool)
	castMembers := postgres.NewCastMemberRepo(pool)
	mentions := postgres.NewMentionRepo(pool)
	aggregates := postgres.NewAggregateRepo(pool, logger)
	alertRules := postgres.NewAlertRuleRepo(pool)
	alertEvents := postgres.NewAlertEventRepo(pool)

	limiter := ratelimiter.New(redisClient, cfg.RedditRateLimitCalls, cfg.RedditRateLimitPeriod, "reddit")
	redditClient := reddit.New(reddit.Config{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.RedditUserAgent,
		BaseURL:      cfg.RedditBaseURL,
		AuthURL:      cfg.RedditAuthURL,
	}, limiter)

	var blobs domain.BlobStore
	if cfg.BlobBucket != "" {
		store, err := s3.New(s3.Config{Region: cfg.BlobRegion, Bucket: cfg.BlobBucket}, logger)
		if err != nil {
			slog.Error("blob store init failed", slog.Any("error", err))
			os.Exit(1)
		}
		blobs = store
	}

	primaryScorer := primary.New(primary.Config{
		BaseURL:      cfg.SentimentPrimaryURL,
		Timeout:      cfg.SentimentPrimaryTimeout,
		ModelVersion: cfg.SentimentPrimaryModelVersion,
	})
	var fallback domain.OpinionMiner
	if cfg.OpinionMiningURL != "" {
		fallback = opinionmining.New(opinionmining.Config{
			BaseURL:   cfg.OpinionMiningURL,
			APIKey:    cfg.OpinionMiningAPIKey,
			Timeout:   cfg.OpinionMiningTimeout,
			MaxTokens: cfg.SentimentFallbackMaxTokens,
		})
	}
	pipeline := sentiment.New(primaryScorer, fallback, cfg.SentimentMinConfidence, cfg.SentimentMinMargin)
	if err := pipeline.Canary(context.Background()); err != nil {
		slog.Warn("opinion mining fallback canary failed; continuing without it", slog.Any("error", err))
	}

	rosterAliases, err := entitylinker.LoadRosterAliases(cfg.CastAliasFile)
	if err != nil {
		slog.Error("cast roster load failed", slog.Any("error", err))
		os.Exit(1)
	}
	activeCast, err := castMembers.ListActive(context.Background())
	if err != nil {
		slog.Error("cast member list failed", slog.Any("error", err))
		os.Exit(1)
	}
	linker := entitylinker.Build(activeCast, rosterAliases, cfg.EntityFuzzyMinScore, cfg.EntityFuzzyMinLength)

	primaryZone, err := time.LoadLocation(cfg.PrimaryTimezone)
	if err != nil {
		slog.Warn("primary timezone load failed; defaulting to UTC", slog.Any("error", err))
		primaryZone = time.UTC
	}

	queue, err := asynqadp.New(cfg.RedisURL)
	if err != nil {
		slog.Error("queue init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer queue.Close()

	ingestionEngine := ingestion.New(ingestion.Engine{
		Threads:           threads,
		Comments:          comments,
		Reddit:            redditClient,
		Blobs:             blobs,
		AuthorSalt:        cfg.RedditAuthorSalt,
		PrimaryZone:       primaryZone,
		AutoArchive:       cfg.AutoArchive,
		ArchiveIdleWindow: time.Duration(cfg.ThreadArchiveIdleMinutes) * time.Minute,
		BlobKeyPrefix:     cfg.BlobKeyPrefix,
	})

	aggregatorSvc := aggregator.New(mentions, aggregates, queue, logger)
	evaluator := alerts.New(alertRules, aggregates, alertEvents, logger)

	var notifiers []domain.Notifier
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, slack.New(cfg.SlackWebhookURL, logger))
	}
	if cfg.SESFromEmail != "" {
		emailNotifier, err := email.New(email.Config{Region: cfg.SESRegion, FromEmail: cfg.SESFromEmail}, logger)
		if err != nil {
			slog.Error("email notifier init failed", slog.Any("error", err))
			os.Exit(1)
		}
		notifiers = append(notifiers, emailNotifier)
	}
	delivery := alerts.NewDelivery(alertRules, alertEvents, alerts.ThreadAndCastLookup{
		Threads: threads,
		Cast:    castMembers,
	}, notifiers, cfg.SESFromEmail, logger)

	handlers := usecase.New(usecase.Handlers{
		Ingestion:   ingestionEngine,
		Comments:    comments,
		CastMembers: castMembers,
		Mentions:    mentions,
		Threads:     threads,
		Linker:      linker,
		Pipeline:    pipeline,
		TauSarcasm:  cfg.SarcasmThreshold,
		TauToxic:    cfg.ToxicityThreshold,
		Aggregator:  aggregatorSvc,
		Evaluator:   evaluator,
		Delivery:    delivery,
		Events:      alertEvents,
		Queue:       queue,
	})

	worker, err := asynqadp.NewWorker(cfg.RedisURL, cfg.WorkerConcurrency, handlers, logger)
	if err != nil {
		slog.Error("worker init failed", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		slog.Info("starting asynq worker", slog.Int("concurrency", cfg.WorkerConcurrency))
		if err := worker.Start(); err != nil {
			slog.Error("worker error", slog.Any("error", err))
		}
	}()

	slog.Info("worker started successfully, waiting for shutdown signal")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("signal received, shutting down", slog.String("signal", sig.String()))
	worker.Stop()
	slog.Info("worker stopped")
}
