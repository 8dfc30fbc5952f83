// Package sentiment implements a two-tier sentiment pipeline: a primary
// transformer scorer with a confidence/margin-gated cloud opinion-mining
// fallback and a clause-selection heuristic for multi-target comments.
package sentiment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/therealityreport/socializer/internal/adapter/observability"
	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/pkg/textx"
)

// AnalysisResult is analyze_comment's return shape.
type AnalysisResult struct {
	Final        domain.NormalizedSentiment
	Models       []domain.ModelSentiment
	CombinedScore float64
}

// MentionContext is one per-candidate context string the linker built,
// bundled with the alias set used for opinion-target overlap matching.
type MentionContext struct {
	CastMemberID string
	Context      string
	Aliases      []string
}

// Pipeline holds the scorer handles and gating thresholds.
type Pipeline struct {
	Primary  domain.SentimentScorer
	Fallback domain.OpinionMiner // nil disables the cloud fallback entirely

	MinConfidence float64 // τc, floored to 0.55 at construction
	MinMargin     float64 // τm, floored to 0.10 at construction

	logger *slog.Logger
}

// New constructs a Pipeline, enforcing minimum gating thresholds regardless
// of configuration.
func New(primary domain.SentimentScorer, fallback domain.OpinionMiner, minConfidence, minMargin float64) *Pipeline {
	if minConfidence < 0.55 {
		minConfidence = 0.55
	}
	if minMargin < 0.10 {
		minMargin = 0.10
	}
	return &Pipeline{
		Primary:       primary,
		Fallback:      fallback,
		MinConfidence: minConfidence,
		MinMargin:     minMargin,
		logger:        slog.Default().With(slog.String("component", "sentiment_pipeline")),
	}
}

// Canary performs a one-time fallback connectivity check at pipeline
// construction.
func (p *Pipeline) Canary(ctx context.Context) error {
	if p.Fallback == nil {
		return nil
	}
	start := time.Now()
	err := p.Fallback.Canary(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordSentimentRequest("canary", status, float64(time.Since(start).Milliseconds()))
	return err
}

func (p *Pipeline) needsFallback(pred domain.PrimaryPrediction, primaryErr error) bool {
	if primaryErr != nil {
		return true
	}
	return pred.Score < p.MinConfidence || pred.Margin < p.MinMargin
}

func normalizePrimary(pred domain.PrimaryPrediction) domain.NormalizedSentiment {
	return domain.NormalizedSentiment{
		Label:      pred.Label,
		Score:      pred.Score,
		Confidence: pred.Score,
		Margin:     pred.Margin,
		Source:     "primary",
	}
}

func normalizeFallback(n domain.NormalizedSentiment, source string) domain.NormalizedSentiment {
	n.Source = source
	return n
}

// scorePrimary runs the primary model over text and records observability.
func (p *Pipeline) scorePrimary(ctx context.Context, scope, text string) (domain.PrimaryPrediction, error) {
	start := time.Now()
	pred, err := p.Primary.Score(ctx, text)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordSentimentRequest(scope, status, float64(time.Since(start).Milliseconds()))
	return pred, err
}

func (p *Pipeline) scoreFallbackDocument(ctx context.Context, scope, text string) (domain.OpinionMiningResult, error) {
	start := time.Now()
	res, err := p.Fallback.AnalyzeDocument(ctx, text)
	status := "fallback"
	if err != nil {
		status = "error"
	}
	observability.RecordSentimentRequest(scope, status, float64(time.Since(start).Milliseconds()))
	return res, err
}

// AnalyzeComment implements E's analyze_comment.
func (p *Pipeline) AnalyzeComment(ctx context.Context, text string) (AnalysisResult, error) {
	pred, err := p.scorePrimary(ctx, "comment", text)
	models := []domain.ModelSentiment{}
	if err == nil {
		models = append(models, domain.ModelSentiment{Source: "primary", Label: pred.Label, Score: pred.Score, Margin: pred.Margin})
	}

	if p.Fallback != nil && p.needsFallback(pred, err) {
		observability.RecordSentimentFallback("low_confidence_or_margin")
		doc, ferr := p.scoreFallbackDocument(ctx, "comment", text)
		if ferr != nil {
			if err != nil {
				return AnalysisResult{}, fmt.Errorf("op=sentiment.AnalyzeComment both scorers failed: primary=%v fallback=%w", err, ferr)
			}
			final := normalizePrimary(pred)
			return AnalysisResult{Final: final, Models: models, CombinedScore: final.Score}, nil
		}
		final := normalizeFallback(doc.Document, "opinion_mining")
		models = append(models, domain.ModelSentiment{Source: "opinion_mining", Label: final.Label, Score: final.Score})
		return AnalysisResult{Final: final, Models: models, CombinedScore: sumScores(models)}, nil
	}

	if err != nil {
		p.logger.Warn("primary scorer failed with no fallback configured, returning neutral result", "error", err)
		neutral := domain.NormalizedSentiment{Label: domain.SentimentNeutral, Score: 0, Source: "primary"}
		return AnalysisResult{Final: neutral, Models: models, CombinedScore: 0}, nil
	}
	final := normalizePrimary(pred)
	return AnalysisResult{Final: final, Models: models, CombinedScore: final.Score}, nil
}

func sumScores(models []domain.ModelSentiment) float64 {
	var sum float64
	for _, m := range models {
		sum += m.Score
	}
	return sum
}

// AnalyzeMentions implements E's analyze_mentions, dispatching to
// the single-target or multi-target code path depending on the number of
// distinct cast members among contexts.
func (p *Pipeline) AnalyzeMentions(ctx context.Context, fullText string, contexts []MentionContext) (map[string]domain.NormalizedSentiment, error) {
	distinct := map[string]bool{}
	for _, c := range contexts {
		distinct[c.CastMemberID] = true
	}

	if len(distinct) <= 1 {
		return p.analyzeSingleTarget(ctx, contexts)
	}
	return p.analyzeMultiTarget(ctx, fullText, contexts)
}

func (p *Pipeline) analyzeSingleTarget(ctx context.Context, contexts []MentionContext) (map[string]domain.NormalizedSentiment, error) {
	out := map[string]domain.NormalizedSentiment{}
	var docCache *domain.OpinionMiningResult

	for _, c := range contexts {
		pred, err := p.scorePrimary(ctx, "mention", c.Context)
		if err == nil && !p.needsFallback(pred, nil) {
			out[c.CastMemberID] = normalizePrimary(pred)
			continue
		}
		if p.Fallback == nil {
			if err != nil {
				continue
			}
			out[c.CastMemberID] = normalizePrimary(pred)
			continue
		}
		if docCache == nil {
			observability.RecordSentimentFallback("low_confidence_or_margin")
			doc, ferr := p.scoreFallbackDocument(ctx, "mention", c.Context)
			if ferr != nil {
				if err == nil {
					out[c.CastMemberID] = normalizePrimary(pred)
				}
				continue
			}
			docCache = &doc
		}
		if target, ok := matchOpinionTarget(*docCache, c.Aliases); ok {
			out[c.CastMemberID] = normalizeFallback(target, "opinion_mining")
			continue
		}
		out[c.CastMemberID] = normalizeFallback(docCache.Document, "opinion_mining")
	}
	return out, nil
}

func (p *Pipeline) analyzeMultiTarget(ctx context.Context, fullText string, contexts []MentionContext) (map[string]domain.NormalizedSentiment, error) {
	out := map[string]domain.NormalizedSentiment{}

	var doc *domain.OpinionMiningResult
	if p.Fallback != nil {
		d, err := p.scoreFallbackDocument(ctx, "mention", fullText)
		if err == nil {
			doc = &d
		} else {
			p.logger.Warn("multi-target document-level fallback failed", slog.Any("error", err))
		}
	}

	for _, c := range contexts {
		if doc != nil {
			if target, ok := matchOpinionTarget(*doc, c.Aliases); ok {
				out[c.CastMemberID] = normalizeFallback(target, "opinion_mining")
				continue
			}
		}
		// opinion-mining unavailable or no target match: clause-selection heuristic.
		clause, reason := selectClause(fullText, c.Aliases)
		pred, err := p.scorePrimary(ctx, "mention", clause)
		if err != nil {
			continue
		}
		n := normalizePrimary(pred)
		n.Source = "primary+heuristic"
		_ = reason
		out[c.CastMemberID] = n
	}
	return out, nil
}

// matchOpinionTarget finds a provider-extracted target whose text overlaps
// any of the given aliases.
func matchOpinionTarget(doc domain.OpinionMiningResult, aliases []string) (domain.NormalizedSentiment, bool) {
	for _, target := range doc.Targets {
		lowerTarget := strings.ToLower(target.Text)
		for _, alias := range aliases {
			lowerAlias := strings.ToLower(alias)
			if lowerAlias == "" {
				continue
			}
			if strings.Contains(lowerTarget, lowerAlias) || strings.Contains(lowerAlias, lowerTarget) {
				return target.Sentiment, true
			}
		}
	}
	return domain.NormalizedSentiment{}, false
}

// selectClause implements the clause-selection heuristicE:
// find the sentence containing the alias, split on a contrastive pivot if
// present and pick the alias-bearing clause, else fall back to the whole
// sentence (no dependency-subtree parser available; see ).
func selectClause(text string, aliases []string) (clause, reason string) {
	sentences := textx.SplitSentences(text)
	target := text
	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, alias := range aliases {
			if alias == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(alias)) {
				target = s
				goto found
			}
		}
	}
found:
	before, pivot, after, ok := textx.SplitOnPivot(target)
	if !ok {
		return target, "full sentence, no contrastive pivot found"
	}
	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		lowerAlias := strings.ToLower(alias)
		if strings.Contains(strings.ToLower(before), lowerAlias) {
			return before, fmt.Sprintf("clause before pivot %q", pivot)
		}
	}
	return after, fmt.Sprintf("clause after pivot %q", pivot)
}
