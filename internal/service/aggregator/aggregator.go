// Package aggregator computes per-(cast, time_window) sentiment summaries
// for a thread. The calculator is pure and unit-testable
// without a database; Aggregator wires it to the repository ports for the
// load → compute → full-rewrite persist cycle.
package aggregator

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/therealityreport/socializer/internal/domain"
)

const windowOverall = "overall"

// MentionInput is the flattened row the calculator accumulates over, mirroring
// domain.MentionWithContext's fields the math actually needs.
type MentionInput struct {
	CastMemberID   string
	SentimentLabel domain.SentimentLabel
	CommentScore   int
	TimeWindow     domain.TimeWindow
	Weight         *float64
}

// Metrics is one finalized accumulation bucket.
type Metrics struct {
	NetSentiment   float64
	CILower        float64
	CIUpper        float64
	PositivePct    float64
	NeutralPct     float64
	NegativePct    float64
	AgreementScore float64
	MentionCount   int
}

// CastResult is one cast member's overall + per-window metrics.
type CastResult struct {
	CastMemberID    string
	ShareOfVoice    float64
	Overall         *Metrics
	Windows         map[domain.TimeWindow]Metrics
	SentimentShifts map[string]float64
}

// Result is the full output of one compute() run.
type Result struct {
	ThreadID       string
	TotalMentions  int
	Cast           map[string]CastResult
	Windows        map[domain.TimeWindow]Metrics
	WindowShifts   map[string]float64
}

type accumulator struct {
	weighted  map[domain.SentimentLabel]float64
	counts    map[domain.SentimentLabel]int
	weightSum float64
}

func newAccumulator() *accumulator {
	return &accumulator{
		weighted: map[domain.SentimentLabel]float64{
			domain.SentimentPositive: 0, domain.SentimentNeutral: 0, domain.SentimentNegative: 0,
		},
		counts: map[domain.SentimentLabel]int{
			domain.SentimentPositive: 0, domain.SentimentNeutral: 0, domain.SentimentNegative: 0,
		},
	}
}

func (a *accumulator) add(label domain.SentimentLabel, score int, weight *float64) {
	normalized := normalizeLabel(label)
	var w float64
	if weight != nil {
		w = *weight
	} else {
		w = float64(maxInt(score, 0) + 1)
	}
	a.counts[normalized]++
	a.weighted[normalized] += w
	a.weightSum += w
}

func (a *accumulator) finalize() (Metrics, bool) {
	totalCount := a.counts[domain.SentimentPositive] + a.counts[domain.SentimentNeutral] + a.counts[domain.SentimentNegative]
	if totalCount == 0 {
		return Metrics{}, false
	}

	totalWeight := a.weighted[domain.SentimentPositive] + a.weighted[domain.SentimentNeutral] + a.weighted[domain.SentimentNegative]
	if totalWeight == 0 {
		totalWeight = float64(totalCount)
	}

	positiveWeight := a.weighted[domain.SentimentPositive]
	negativeWeight := a.weighted[domain.SentimentNegative]
	netSentiment := clamp((positiveWeight - negativeWeight) / totalWeight)

	positivePct := float64(a.counts[domain.SentimentPositive]) / float64(totalCount)
	neutralPct := float64(a.counts[domain.SentimentNeutral]) / float64(totalCount)
	negativePct := float64(a.counts[domain.SentimentNegative]) / float64(totalCount)

	se := standardError(positivePct, negativePct, totalCount)
	ciLower := clamp(netSentiment - 1.96*se)
	ciUpper := clamp(netSentiment + 1.96*se)

	return Metrics{
		NetSentiment:   netSentiment,
		CILower:        ciLower,
		CIUpper:        ciUpper,
		PositivePct:    positivePct,
		NeutralPct:     neutralPct,
		NegativePct:    negativePct,
		AgreementScore: a.weightSum / float64(totalCount),
		MentionCount:   totalCount,
	}, true
}

// Compute runs the pure calculation over the given mentions. It never touches
// a database; Aggregator.Compute wraps this with the load/persist cycle.
func Compute(threadID string, mentions []MentionInput) Result {
	castWindowAcc := map[string]map[domain.TimeWindow]*accumulator{}
	castOverallAcc := map[string]*accumulator{}
	windowAcc := map[domain.TimeWindow]*accumulator{}

	for _, m := range mentions {
		if m.CastMemberID == "" {
			continue
		}
		window := m.TimeWindow
		if window == "" {
			window = "unspecified"
		}

		if castWindowAcc[m.CastMemberID] == nil {
			castWindowAcc[m.CastMemberID] = map[domain.TimeWindow]*accumulator{}
		}
		if castWindowAcc[m.CastMemberID][window] == nil {
			castWindowAcc[m.CastMemberID][window] = newAccumulator()
		}
		castWindowAcc[m.CastMemberID][window].add(m.SentimentLabel, m.CommentScore, m.Weight)

		if castOverallAcc[m.CastMemberID] == nil {
			castOverallAcc[m.CastMemberID] = newAccumulator()
		}
		castOverallAcc[m.CastMemberID].add(m.SentimentLabel, m.CommentScore, m.Weight)

		if windowAcc[window] == nil {
			windowAcc[window] = newAccumulator()
		}
		windowAcc[window].add(m.SentimentLabel, m.CommentScore, m.Weight)
	}

	finalizedOverall := map[string]Metrics{}
	for castID, acc := range castOverallAcc {
		if metrics, ok := acc.finalize(); ok {
			finalizedOverall[castID] = metrics
		}
	}

	totalMentions := 0
	for _, metrics := range finalizedOverall {
		totalMentions += metrics.MentionCount
	}

	castResults := map[string]CastResult{}
	for castID := range castOverallAcc {
		overallMetrics, hasOverall := finalizedOverall[castID]

		windows := map[domain.TimeWindow]Metrics{}
		for window, acc := range castWindowAcc[castID] {
			if metrics, ok := acc.finalize(); ok {
				windows[window] = metrics
			}
		}

		shareOfVoice := 0.0
		if totalMentions > 0 && hasOverall {
			shareOfVoice = float64(overallMetrics.MentionCount) / float64(totalMentions)
		}

		var overallPtr *Metrics
		if hasOverall {
			m := overallMetrics
			overallPtr = &m
		}

		castResults[castID] = CastResult{
			CastMemberID:    castID,
			ShareOfVoice:    shareOfVoice,
			Overall:         overallPtr,
			Windows:         windows,
			SentimentShifts: sentimentShifts(windows),
		}
	}

	windowMetrics := map[domain.TimeWindow]Metrics{}
	for window, acc := range windowAcc {
		if metrics, ok := acc.finalize(); ok {
			windowMetrics[window] = metrics
		}
	}

	return Result{
		ThreadID:      threadID,
		TotalMentions: totalMentions,
		Cast:          castResults,
		Windows:       windowMetrics,
		WindowShifts:  sentimentShifts(windowMetrics),
	}
}

func sentimentShifts(windows map[domain.TimeWindow]Metrics) map[string]float64 {
	value := func(w domain.TimeWindow) (float64, bool) {
		m, ok := windows[w]
		return m.NetSentiment, ok
	}

	live, hasLive := value(domain.WindowLive)
	dayOf, hasDayOf := value(domain.WindowDayOf)
	after, hasAfter := value(domain.WindowAfter)

	shifts := map[string]float64{}
	if hasLive && hasDayOf {
		shifts["day_of_vs_live"] = dayOf - live
	}
	if hasDayOf && hasAfter {
		shifts["after_vs_day_of"] = after - dayOf
	}
	if hasLive && hasAfter {
		shifts["after_vs_live"] = after - live
	}
	return shifts
}

func normalizeLabel(label domain.SentimentLabel) domain.SentimentLabel {
	switch label {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
		return label
	default:
		return domain.SentimentNeutral
	}
}

func standardError(positivePct, negativePct float64, totalCount int) float64 {
	if totalCount <= 1 {
		return 0
	}
	n := float64(totalCount)
	varPos := positivePct * (1 - positivePct) / n
	varNeg := negativePct * (1 - negativePct) / n
	value := varPos + varNeg
	if value <= 0 {
		return 0
	}
	return math.Sqrt(value)
}

func clamp(value float64) float64 {
	if value < -1 {
		return -1
	}
	if value > 1 {
		return 1
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Aggregator loads mentions for a thread, computes the summary, and performs
// the full-rewrite persist + next-stage enqueue.
type Aggregator struct {
	Mentions   domain.MentionRepository
	Aggregates domain.AggregateRepository
	Queue      domain.Queue
	logger     *slog.Logger
}

// New constructs an Aggregator.
func New(mentions domain.MentionRepository, aggregates domain.AggregateRepository, queue domain.Queue, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{Mentions: mentions, Aggregates: aggregates, Queue: queue, logger: logger}
}

// Run implements compute(thread_id) end to end: load, compute, persist, and
// enqueue the next pipeline stage.
func (a *Aggregator) Run(ctx domain.Context, threadID string) (Result, error) {
	rows, err := a.Mentions.ListForThread(ctx, threadID)
	if err != nil {
		return Result{}, fmt.Errorf("op=aggregator.Run load: %w", err)
	}

	inputs := make([]MentionInput, 0, len(rows))
	for _, row := range rows {
		if row.CastMemberID == "" {
			continue
		}
		inputs = append(inputs, MentionInput{
			CastMemberID:   row.CastMemberID,
			SentimentLabel: row.SentimentLabel,
			CommentScore:   row.CommentScore,
			TimeWindow:     row.TimeWindow,
			Weight:         row.Weight,
		})
	}

	result := Compute(threadID, inputs)

	persistRows := toPersistRows(result)
	if err := a.Aggregates.ReplaceForThread(ctx, threadID, persistRows); err != nil {
		return Result{}, fmt.Errorf("op=aggregator.Run persist: %w", err)
	}

	if a.Queue != nil {
		if _, err := a.Queue.EnqueueCheckAlerts(ctx, threadID); err != nil {
			a.logger.Warn("aggregator: failed to enqueue check_alerts", slog.String("thread_id", threadID), slog.Any("error", err))
		}
	}

	return result, nil
}

func toPersistRows(result Result) []domain.Aggregate {
	var rows []domain.Aggregate
	for castID, cast := range result.Cast {
		if cast.Overall != nil {
			rows = append(rows, toAggregateRow(result.ThreadID, castID, windowOverall, *cast.Overall))
		}
		for window, metrics := range cast.Windows {
			rows = append(rows, toAggregateRow(result.ThreadID, castID, string(window), metrics))
		}
	}
	return rows
}

func toAggregateRow(threadID, castID, window string, m Metrics) domain.Aggregate {
	return domain.Aggregate{
		ThreadID:       threadID,
		CastMemberID:   castID,
		TimeWindow:     window,
		NetSentiment:   m.NetSentiment,
		CILower:        m.CILower,
		CIUpper:        m.CIUpper,
		PositivePct:    m.PositivePct,
		NeutralPct:     m.NeutralPct,
		NegativePct:    m.NegativePct,
		AgreementScore: m.AgreementScore,
		MentionCount:   m.MentionCount,
	}
}
