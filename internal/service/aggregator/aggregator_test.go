package aggregator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/therealityreport/socializer/internal/domain"
)

func weight(v float64) *float64 { return &v }

func TestCompute_EmptyInputReturnsZeroResult(t *testing.T) {
	result := Compute("thread-1", nil)
	require.Equal(t, 0, result.TotalMentions)
	require.Empty(t, result.Cast)
}

func TestCompute_AccumulatesNetSentimentAndShareOfVoice(t *testing.T) {
	inputs := []MentionInput{
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentPositive, CommentScore: 10, TimeWindow: domain.WindowLive},
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentNegative, CommentScore: 0, TimeWindow: domain.WindowLive},
		{CastMemberID: "cast-2", SentimentLabel: domain.SentimentPositive, CommentScore: 5, TimeWindow: domain.WindowLive},
	}
	result := Compute("thread-1", inputs)

	require.Equal(t, 3, result.TotalMentions)
	cast1 := result.Cast["cast-1"]
	require.NotNil(t, cast1.Overall)
	require.Equal(t, 2, cast1.Overall.MentionCount)
	// weights: positive score=10 -> 11, negative score=0 -> 1; net = (11-1)/12
	require.InDelta(t, (11.0-1.0)/12.0, cast1.Overall.NetSentiment, 1e-9)

	cast2 := result.Cast["cast-2"]
	require.InDelta(t, 1.0, cast2.Overall.NetSentiment, 1e-9)
	require.InDelta(t, float64(1)/float64(3), cast2.ShareOfVoice, 1e-9)
}

func TestCompute_UsesExplicitWeightOverScoreDerived(t *testing.T) {
	inputs := []MentionInput{
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentPositive, CommentScore: 0, Weight: weight(5.0), TimeWindow: domain.WindowLive},
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentNegative, CommentScore: 0, Weight: weight(1.0), TimeWindow: domain.WindowLive},
	}
	result := Compute("thread-1", inputs)
	cast1 := result.Cast["cast-1"]
	require.InDelta(t, (5.0-1.0)/6.0, cast1.Overall.NetSentiment, 1e-9)
}

func TestCompute_SentimentShiftsAcrossWindows(t *testing.T) {
	inputs := []MentionInput{
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentPositive, CommentScore: 0, TimeWindow: domain.WindowLive},
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentNegative, CommentScore: 0, TimeWindow: domain.WindowDayOf},
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentNegative, CommentScore: 0, TimeWindow: domain.WindowAfter},
	}
	result := Compute("thread-1", inputs)
	cast1 := result.Cast["cast-1"]
	require.InDelta(t, -2.0, cast1.SentimentShifts["day_of_vs_live"], 1e-9)
	require.InDelta(t, 0.0, cast1.SentimentShifts["after_vs_day_of"], 1e-9)
	require.InDelta(t, -2.0, cast1.SentimentShifts["after_vs_live"], 1e-9)
}

func TestCompute_MissingCastMemberIDSkipped(t *testing.T) {
	inputs := []MentionInput{
		{CastMemberID: "", SentimentLabel: domain.SentimentPositive, TimeWindow: domain.WindowLive},
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentPositive, TimeWindow: domain.WindowLive},
	}
	result := Compute("thread-1", inputs)
	require.Equal(t, 1, result.TotalMentions)
	require.Len(t, result.Cast, 1)
}

func TestCompute_RunningTwiceYieldsIdenticalResult(t *testing.T) {
	inputs := []MentionInput{
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentPositive, CommentScore: 3, TimeWindow: domain.WindowLive},
		{CastMemberID: "cast-1", SentimentLabel: domain.SentimentNeutral, CommentScore: 1, TimeWindow: domain.WindowDayOf},
	}
	first := Compute("thread-1", inputs)
	second := Compute("thread-1", inputs)
	require.Equal(t, first.Cast["cast-1"].Overall.NetSentiment, second.Cast["cast-1"].Overall.NetSentiment)
	require.Equal(t, first.TotalMentions, second.TotalMentions)
}
