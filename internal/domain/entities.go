package domain

import "time"

// ThreadStatus is the lifecycle state of a Thread.
type ThreadStatus string

// Thread status values.
const (
	ThreadScheduled ThreadStatus = "SCHEDULED"
	ThreadLive      ThreadStatus = "LIVE"
	ThreadCompleted ThreadStatus = "COMPLETED"
	ThreadArchived  ThreadStatus = "ARCHIVED"
)

// Thread is a discussion unit pegged to an episode's air time.
type Thread struct {
	ID                 string
	RedditID           string
	Subreddit          string
	Title              string
	URL                string
	AirTime            *time.Time
	Created            time.Time
	Status             ThreadStatus
	TotalComments       int
	Synopsis           string
	LastPolled         *time.Time
	LatestComment      *time.Time
	PollIntervalSeconds int
}

// EffectivePollInterval clamps PollIntervalSeconds to the minimum allowed at use time.
func (t Thread) EffectivePollInterval() int {
	if t.PollIntervalSeconds < 30 {
		return 30
	}
	return t.PollIntervalSeconds
}

// TimeWindow classifies a comment's temporal relationship to a thread's air time.
type TimeWindow string

// Time window values. Empty string represents "no air_time" (null).
const (
	WindowLive  TimeWindow = "LIVE"
	WindowDayOf TimeWindow = "DAY_OF"
	WindowAfter TimeWindow = "AFTER"
	WindowNone  TimeWindow = ""
)

// SentimentLabel is the coarse three-class sentiment of a comment or mention.
type SentimentLabel string

// Sentiment label values.
const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// SentimentBreakdown is the structured per-model audit trail stored alongside
// a comment's final sentiment fields.
type SentimentBreakdown struct {
	Models        []ModelSentiment `json:"models"`
	CombinedScore float64          `json:"combined_score"`
	FinalLabel    SentimentLabel   `json:"final_label"`
	FinalSource   string           `json:"final_source"`
}

// ModelSentiment is one model's contribution to a SentimentBreakdown: the
// primary transformer, the cloud opinion-mining fallback, or the clause
// heuristic. Source is e.g. "primary", "opinion_mining", "primary+heuristic".
type ModelSentiment struct {
	Source  string         `json:"source"`
	Label   SentimentLabel `json:"label"`
	Score   float64        `json:"score"`
	Margin  float64        `json:"margin,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// NormalizedSentiment is the uniform output shape every scorer (primary,
// fallback, heuristic) produces; the Pipeline is a thin reducer over these.
type NormalizedSentiment struct {
	Label      SentimentLabel
	Score      float64 // magnitude in [0,1]
	Confidence float64 // unadjusted model confidence in [0,1]
	Margin     float64
	Source     string
}

// Comment is a single Reddit comment row, partitioned by Created.
type Comment struct {
	ID                string
	ThreadID          string
	RedditID          string
	ParentRedditID    *string
	AuthorHash        *string
	Body              string
	Created           time.Time
	Score             int
	ReplyCount        int
	UpdatedAt         time.Time
	TimeWindow        TimeWindow
	SentimentLabel    *SentimentLabel
	SentimentScore    *float64
	SentimentBreakdown *SentimentBreakdown
	IsSarcastic       bool
	SarcasmConfidence *float64
	IsToxic           bool
	ToxicityConfidence *float64
	ModelVersion      *string
}

// CastMember is an external-collaborator-owned entity; the pipeline only reads it.
type CastMember struct {
	ID          string
	Slug        string
	FullName    string
	DisplayName string
	Show        string
	Aliases     []string
	IsActive    bool
}

// MentionMethod is how a mention candidate was resolved.
type MentionMethod string

// Mention resolution methods.
const (
	MethodExact            MentionMethod = "exact"
	MethodExactNER         MentionMethod = "exact_ner"
	MethodFuzzy            MentionMethod = "fuzzy"
	MethodInheritedContext MentionMethod = "inherited_context"
)

// Mention asserts that a Comment refers to a specific CastMember with a
// specific per-target sentiment. One row per (comment, cast) pair.
type Mention struct {
	ID            string
	CommentID     string
	CommentCreated time.Time
	CastMemberID  string
	SentimentLabel SentimentLabel
	SentimentScore *float64
	Confidence    *float64
	Weight        *float64
	Method        MentionMethod
	Quote         string
	IsSarcastic   bool
	IsToxic       bool
}

// Aggregate is a rewrite-only summary per (thread, cast, window).
type Aggregate struct {
	ThreadID      string
	CastMemberID  string
	TimeWindow    string // includes the literal "overall"
	NetSentiment  float64
	CILower       float64
	CIUpper       float64
	PositivePct   float64
	NeutralPct    float64
	NegativePct   float64
	AgreementScore float64
	MentionCount  int
	ComputedAt    time.Time
}

// AlertComparison is the comparison operator used by a sentiment_drop rule.
type AlertComparison string

// Supported comparison operators.
const (
	ComparisonLT  AlertComparison = "lt"
	ComparisonLTE AlertComparison = "lte"
	ComparisonGT  AlertComparison = "gt"
	ComparisonGTE AlertComparison = "gte"
)

// AlertCondition is the structured condition payload of an AlertRule.
type AlertCondition struct {
	Metric          string          `json:"metric,omitempty"`
	Window          string          `json:"window"`
	Comparison      AlertComparison `json:"comparison,omitempty"`
	Threshold       float64         `json:"threshold"`
	BaselineWindow  string          `json:"baseline_window,omitempty"`
	CastMemberID    string          `json:"cast_member_id,omitempty"`
	Emails          []string        `json:"emails,omitempty"`
}

// AlertRule configures when an alert fires and where it is delivered.
type AlertRule struct {
	ID           string
	Name         string
	ThreadID     *string // nil = global
	CastMemberID *string
	RuleType     string
	Condition    AlertCondition
	IsActive     bool
	Channels     []string // subset of {slack, email}
}

// AlertEventPayload echoes the evaluation inputs plus the computed value/delta.
type AlertEventPayload struct {
	RuleType       string  `json:"rule_type"`
	Metric         string  `json:"metric"`
	Window         string  `json:"window"`
	CastMemberID   string  `json:"cast_member_id"`
	Threshold      float64 `json:"threshold"`
	Value          float64 `json:"value"`
	BaselineWindow string  `json:"baseline_window,omitempty"`
	BaselineValue  *float64 `json:"baseline_value,omitempty"`
	Delta          *float64 `json:"delta,omitempty"`
}

// DuplicateKey returns the tuple used for duplicate-event suppression.
func (p AlertEventPayload) DuplicateKey() [5]any {
	var delta any
	if p.Delta != nil {
		delta = *p.Delta
	}
	return [5]any{p.Window, p.Metric, p.CastMemberID, p.Value, delta}
}

// AlertEvent records a triggered rule evaluation and its delivery state.
type AlertEvent struct {
	ID                string
	AlertRuleID       string
	ThreadID          string
	CastMemberID      *string
	TriggeredAt       time.Time
	Payload           AlertEventPayload
	DeliveredChannels []string
}
