package domain

import (
	"context"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// Repositories (ports)

//go:generate mockery --name=ThreadRepository --with-expecter --filename=thread_repository_mock.go
//go:generate mockery --name=CommentRepository --with-expecter --filename=comment_repository_mock.go
//go:generate mockery --name=CastMemberRepository --with-expecter --filename=cast_member_repository_mock.go
//go:generate mockery --name=MentionRepository --with-expecter --filename=mention_repository_mock.go
//go:generate mockery --name=AggregateRepository --with-expecter --filename=aggregate_repository_mock.go
//go:generate mockery --name=AlertRuleRepository --with-expecter --filename=alert_rule_repository_mock.go
//go:generate mockery --name=AlertEventRepository --with-expecter --filename=alert_event_repository_mock.go
//go:generate mockery --name=Queue --with-expecter --filename=queue_mock.go
//go:generate mockery --name=SentimentScorer --with-expecter --filename=sentiment_scorer_mock.go
//go:generate mockery --name=OpinionMiner --with-expecter --filename=opinion_miner_mock.go

// ThreadRepository persists Thread rows.
type ThreadRepository interface {
	Upsert(ctx Context, t Thread) (Thread, error)
	Get(ctx Context, id string) (Thread, error)
	GetByRedditID(ctx Context, redditID string) (Thread, error)
	UpdatePollState(ctx Context, id string, status ThreadStatus, lastPolled, latestComment *time.Time, totalComments int) error
}

// CommentRepository persists Comment rows under the partitioned schema.
type CommentRepository interface {
	FindByThreadAndRedditID(ctx Context, threadID, redditID string) (Comment, bool, error)
	Insert(ctx Context, c Comment) (Comment, error)
	Update(ctx Context, c Comment) error
	IncrementReplyCounts(ctx Context, ancestorIDs []string, latest time.Time) error
	Get(ctx Context, id string, created time.Time) (Comment, error)
	ListByIDs(ctx Context, ids []CommentKey) ([]Comment, error)
	ListForThread(ctx Context, threadID string) ([]Comment, error)
	UpdateSentiment(ctx Context, c Comment) error
}

// CommentKey addresses a Comment row by its composite primary key.
type CommentKey struct {
	ID      string
	Created time.Time
}

// CastMemberRepository reads the admin-owned cast catalog.
type CastMemberRepository interface {
	ListActive(ctx Context) ([]CastMember, error)
	Get(ctx Context, id string) (CastMember, error)
}

// MentionRepository persists Mention rows; relinking a comment is a full
// delete-then-insert for that comment.
type MentionRepository interface {
	DeleteForComment(ctx Context, commentID string, commentCreated time.Time) error
	InsertBatch(ctx Context, mentions []Mention) error
	ListForParent(ctx Context, parentCommentID string, parentCreated time.Time) ([]Mention, error)
	ListForThread(ctx Context, threadID string) ([]MentionWithContext, error)
}

// MentionWithContext is a Mention joined with the fields the Aggregator needs
// from its parent Comment (upvote score, time window).
type MentionWithContext struct {
	Mention
	CommentScore int
	TimeWindow   TimeWindow
}

// AggregateRepository performs the Aggregator's full-rewrite persistence.
type AggregateRepository interface {
	ReplaceForThread(ctx Context, threadID string, rows []Aggregate) error
	ListForThread(ctx Context, threadID string) ([]Aggregate, error)
}

// AlertRuleRepository reads active alert rules.
type AlertRuleRepository interface {
	ListActiveForThread(ctx Context, threadID string) ([]AlertRule, error)
	Get(ctx Context, id string) (AlertRule, error)
}

// AlertEventRepository persists alert events and supports duplicate lookup.
type AlertEventRepository interface {
	Create(ctx Context, e AlertEvent) (AlertEvent, error)
	Get(ctx Context, id string) (AlertEvent, error)
	MostRecentForRule(ctx Context, ruleID string) (AlertEvent, bool, error)
	UpdateDeliveredChannels(ctx Context, id string, channels []string) error
}

// Queue (port)

// Queue is the named-queue task submission port.I.
type Queue interface {
	EnqueueIngestThread(ctx Context, redditID, subreddit string) (string, error)
	EnqueuePollThread(ctx Context, threadID string, countdown time.Duration) (string, error)
	EnqueueClassifyComments(ctx Context, ids []CommentKey) (string, error)
	EnqueueLinkEntities(ctx Context, ids []CommentKey) (string, error)
	EnqueueComputeAggregates(ctx Context, threadID string) (string, error)
	EnqueueCheckAlerts(ctx Context, threadID string) (string, error)
	EnqueueDeliverAlertEvent(ctx Context, eventID string) (string, error)
}

// SentimentScorer (port) wraps the primary fine-tuned transformer classifier.
type SentimentScorer interface {
	// Score runs the primary model over a single piece of text.
	Score(ctx Context, text string) (PrimaryPrediction, error)
	// ModelVersion reports the revision identifier stamped onto scored comments.
	ModelVersion() string
}

// PrimaryPrediction is the raw output of the primary scorer.
type PrimaryPrediction struct {
	Label  SentimentLabel
	Score  float64            // top-class probability
	Margin float64            // top1 - top2
	Probs  map[SentimentLabel]float64
}

// OpinionMiner (port) wraps the confidence-gated cloud opinion-mining fallback.
type OpinionMiner interface {
	// AnalyzeDocument returns the document-level sentiment plus any
	// target-scoped opinions the provider was able to extract.
	AnalyzeDocument(ctx Context, text string) (OpinionMiningResult, error)
	// Canary performs a one-shot connectivity check at pipeline construction.
	Canary(ctx Context) error
}

// OpinionMiningResult is the cloud fallback's response shape.
type OpinionMiningResult struct {
	Document NormalizedSentiment
	Targets  []OpinionTarget
}

// OpinionTarget is a provider-extracted target-scoped opinion.
type OpinionTarget struct {
	Text       string
	Sentiment  NormalizedSentiment
}

// RedditClient (port) — thin wrapper over the Reddit API.B.
type RedditClient interface {
	GetSubmission(ctx Context, redditID string) (RedditSubmission, error)
	FetchSubmissionRaw(ctx Context, redditID string) (map[string]any, error)
	FetchComments(ctx Context, redditID string) ([]RedditComment, error)
}

// RedditSubmission is the normalized headline metadata for a submission.
type RedditSubmission struct {
	RedditID        string
	Subreddit       string
	Title           string
	URL             string
	CreatedUTC      time.Time
	NumComments     int
	IsArchived      bool
}

// RedditComment is the normalized comment payloadB.
type RedditComment struct {
	ID         string
	Author     string // "[deleted]" if missing
	Body       string
	Score      int
	CreatedUTC time.Time
	ParentID   string // prefixed like "t1_X" or "t3_X"
}

// BlobStore (port) archives raw submission payloads.
type BlobStore interface {
	PutObject(ctx Context, key string, body []byte, contentType string) error
}

// Notifier (port) delivers a formatted alert summary to one channel.
type Notifier interface {
	Channel() string
	Deliver(ctx Context, summary AlertSummary) error
}

// AlertSummary is the rendered content handed to a Notifier.
type AlertSummary struct {
	Subject     string
	PlainBody   string
	HTMLBody    string
	SlackText   string
	SlackBlocks []map[string]any
	Recipients  []string
}
