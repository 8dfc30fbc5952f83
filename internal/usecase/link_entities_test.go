package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/internal/service/entitylinker"
	"github.com/therealityreport/socializer/internal/service/sentiment"
)

func TestLinkEntities_PersistsMentionsAndChainsComputeAggregatesOncePerThread(t *testing.T) {
	comments := newFakeCommentRepo()
	created := time.Now()
	c1, _ := comments.Insert(context.Background(), domain.Comment{
		ThreadID: "thread-1", RedditID: "r1", Body: "Teresa flipped the table again", Created: created,
	})
	c2, _ := comments.Insert(context.Background(), domain.Comment{
		ThreadID: "thread-1", RedditID: "r2", Body: "no cast mention here", Created: created,
	})

	mentions := newFakeMentionRepo()
	linker := entitylinker.Build([]domain.CastMember{
		{ID: "cast-1", Slug: "teresa-giudice", FullName: "Teresa Giudice", DisplayName: "Teresa", IsActive: true},
	}, nil, 0, 0)
	pipeline := sentiment.New(fakeScorer{}, nil, 0.6, 0.15)
	queue := &fakeQueue{}

	h := New(Handlers{
		Comments: comments, Mentions: mentions, Linker: linker, Pipeline: pipeline, Queue: queue,
	})

	ids := []domain.CommentKey{{ID: c1.ID, Created: created}, {ID: c2.ID, Created: created}}
	err := h.LinkEntities(context.Background(), ids)
	require.NoError(t, err)

	require.Len(t, mentions.byComment[c1.ID], 1)
	require.Equal(t, "cast-1", mentions.byComment[c1.ID][0].CastMemberID)
	require.Empty(t, mentions.byComment[c2.ID])

	require.Equal(t, []string{"thread-1"}, queue.aggregateCalls)
}

func TestLinkEntities_SarcasticCommentAttenuatesScoreButKeepsRawConfidence(t *testing.T) {
	comments := newFakeCommentRepo()
	created := time.Now()
	c1, _ := comments.Insert(context.Background(), domain.Comment{
		ThreadID: "thread-3", RedditID: "r1", Body: "Teresa was SO great, really.", Created: created,
		IsSarcastic: true,
	})

	mentions := newFakeMentionRepo()
	linker := entitylinker.Build([]domain.CastMember{
		{ID: "cast-1", Slug: "teresa-giudice", FullName: "Teresa Giudice", DisplayName: "Teresa", IsActive: true},
	}, nil, 0, 0)
	pipeline := sentiment.New(fakeScorer{}, nil, 0.6, 0.15)
	queue := &fakeQueue{}

	h := New(Handlers{Comments: comments, Mentions: mentions, Linker: linker, Pipeline: pipeline, Queue: queue})

	err := h.LinkEntities(context.Background(), []domain.CommentKey{{ID: c1.ID, Created: created}})
	require.NoError(t, err)

	stored := mentions.byComment[c1.ID]
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].SentimentScore)
	require.InDelta(t, 0.95*0.6, *stored[0].SentimentScore, 1e-9)
	require.NotNil(t, stored[0].Confidence)
	require.InDelta(t, 0.95, *stored[0].Confidence, 1e-9)
}

func TestLinkEntities_NoMentionsFound_StillChainsAggregatesForThread(t *testing.T) {
	comments := newFakeCommentRepo()
	created := time.Now()
	c1, _ := comments.Insert(context.Background(), domain.Comment{
		ThreadID: "thread-2", RedditID: "r1", Body: "just talking about the weather", Created: created,
	})

	mentions := newFakeMentionRepo()
	linker := entitylinker.Build(nil, nil, 0, 0)
	pipeline := sentiment.New(fakeScorer{}, nil, 0.6, 0.15)
	queue := &fakeQueue{}

	h := New(Handlers{Comments: comments, Mentions: mentions, Linker: linker, Pipeline: pipeline, Queue: queue})

	err := h.LinkEntities(context.Background(), []domain.CommentKey{{ID: c1.ID, Created: created}})
	require.NoError(t, err)
	require.Equal(t, []string{"thread-2"}, queue.aggregateCalls)
}
