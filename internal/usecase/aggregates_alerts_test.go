package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/internal/service/aggregator"
	"github.com/therealityreport/socializer/internal/service/alerts"
)

func TestComputeAggregates_DelegatesToAggregatorAndChainsCheckAlerts(t *testing.T) {
	mentions := newFakeMentionRepo()
	mentions.forThread = []domain.MentionWithContext{
		{Mention: domain.Mention{CastMemberID: "cast-1", SentimentLabel: domain.SentimentPositive}, CommentScore: 3, TimeWindow: domain.WindowLive},
	}
	aggregates := newFakeAggregateRepo()
	queue := &fakeQueue{}
	agg := aggregator.New(mentions, aggregates, queue, nil)

	h := New(Handlers{Aggregator: agg})

	err := h.ComputeAggregates(context.Background(), "thread-1")
	require.NoError(t, err)
	require.NotEmpty(t, aggregates.byThread["thread-1"])
	require.Equal(t, []string{"thread-1"}, queue.alertCalls)
}

func castPtr(s string) *string { return &s }

func TestCheckAlerts_EnqueuesDeliverAlertEventPerTriggeredEvent(t *testing.T) {
	aggregates := newFakeAggregateRepo()
	aggregates.byThread["thread-1"] = []domain.Aggregate{
		{ThreadID: "thread-1", CastMemberID: "cast-1", TimeWindow: "live", NetSentiment: -0.6, MentionCount: 10},
	}
	rules := &fakeRuleRepo{byThread: []domain.AlertRule{
		{ID: "rule-1", RuleType: "sentiment_drop", IsActive: true, CastMemberID: castPtr("cast-1"),
			Condition: domain.AlertCondition{Window: "live", Threshold: -0.2, Comparison: domain.ComparisonLTE},
			Channels:  []string{"slack"}},
	}}
	events := newFakeEventRepo()
	evaluator := alerts.New(rules, aggregates, events, nil)
	queue := &fakeQueue{}

	h := New(Handlers{Evaluator: evaluator, Queue: queue})

	err := h.CheckAlerts(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Len(t, queue.deliverCalls, 1)
}

func TestCheckAlerts_NoTriggerMeansNoDeliverEnqueue(t *testing.T) {
	aggregates := newFakeAggregateRepo()
	rules := &fakeRuleRepo{}
	events := newFakeEventRepo()
	evaluator := alerts.New(rules, aggregates, events, nil)
	queue := &fakeQueue{}

	h := New(Handlers{Evaluator: evaluator, Queue: queue})

	err := h.CheckAlerts(context.Background(), "thread-1")
	require.NoError(t, err)
	require.Empty(t, queue.deliverCalls)
}

func TestDeliverAlertEvent_LoadsEventThenDelivers(t *testing.T) {
	threads := newFakeThreadRepo()
	thread, _ := threads.Upsert(context.Background(), domain.Thread{RedditID: "abc", Subreddit: "RealHousewives", Created: time.Now()})
	castRepo := &fakeCastMemberRepo{byID: map[string]domain.CastMember{
		"cast-1": {ID: "cast-1", DisplayName: "Teresa", FullName: "Teresa Giudice"},
	}}

	rules := &fakeRuleRepo{byID: map[string]domain.AlertRule{
		"rule-1": {ID: "rule-1", Name: "Sentiment drop", RuleType: "sentiment_drop", Channels: []string{"slack"}},
	}}
	events := newFakeEventRepo()
	event, err := events.Create(context.Background(), domain.AlertEvent{
		AlertRuleID: "rule-1", ThreadID: thread.ID, CastMemberID: castPtr("cast-1"),
		TriggeredAt: time.Now(),
		Payload:     domain.AlertEventPayload{RuleType: "sentiment_drop", Metric: "net_sentiment", Window: "live", CastMemberID: "cast-1", Threshold: -0.2, Value: -0.6},
	})
	require.NoError(t, err)

	delivery := alerts.NewDelivery(rules, events, alerts.ThreadAndCastLookup{Threads: threads, Cast: castRepo}, nil, "", nil)

	h := New(Handlers{Events: events, Delivery: delivery})

	err = h.DeliverAlertEvent(context.Background(), event.ID)
	require.NoError(t, err)

	stored, err := events.Get(context.Background(), event.ID)
	require.NoError(t, err)
	require.Empty(t, stored.DeliveredChannels)
}
