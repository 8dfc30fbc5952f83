package usecase

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/therealityreport/socializer/internal/domain"
	"github.com/therealityreport/socializer/internal/service/entitylinker"
	"github.com/therealityreport/socializer/internal/service/sentiment"
	"github.com/therealityreport/socializer/pkg/textx"
)

// LinkEntities re-links entities: for each classified
// comment, re-derives its mentions from scratch (delete-then-insert), walks
// the parent chain for inherited candidates, scores each candidate's
// per-target sentiment in one Pipeline call, and persists the batch. Once
// every comment in the batch is processed, it enqueues compute_aggregates for
// every distinct thread touched.
func (h *Handlers) LinkEntities(ctx domain.Context, ids []domain.CommentKey) error {
	comments, err := h.Comments.ListByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("op=usecase.LinkEntities load: %w", err)
	}

	threadsTouched := map[string]bool{}
	for _, c := range comments {
		if err := h.linkOneComment(ctx, c); err != nil {
			h.logger.Warn("link_entities failed for comment", "comment_id", c.ID, "error", err)
			continue
		}
		threadsTouched[c.ThreadID] = true
	}

	for threadID := range threadsTouched {
		if _, err := h.Queue.EnqueueComputeAggregates(ctx, threadID); err != nil {
			h.logger.Warn("enqueue compute_aggregates failed", "thread_id", threadID, "error", err)
		}
	}
	return nil
}

func (h *Handlers) linkOneComment(ctx domain.Context, c domain.Comment) error {
	candidates := h.Linker.FindMentions(c.Body)

	if c.ParentRedditID != nil {
		if parent, ok, err := h.Comments.FindByThreadAndRedditID(ctx, c.ThreadID, *c.ParentRedditID); err == nil && ok {
			parentMentions, err := h.Mentions.ListForParent(ctx, parent.ID, parent.Created)
			if err == nil {
				candidates = h.Linker.ApplyParentContext(candidates, toCandidates(parentMentions))
			}
		}
	}

	if err := h.Mentions.DeleteForComment(ctx, c.ID, c.Created); err != nil {
		return fmt.Errorf("delete_for_comment: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	contexts := make([]sentiment.MentionContext, 0, len(candidates))
	for _, cand := range candidates {
		contexts = append(contexts, sentiment.MentionContext{
			CastMemberID: cand.CastMemberID,
			Context:      sentenceContext(c.Body, cand.Quote),
			Aliases:      []string{cand.Quote},
		})
	}

	scored, err := h.Pipeline.AnalyzeMentions(ctx, c.Body, contexts)
	if err != nil {
		return fmt.Errorf("analyze_mentions: %w", err)
	}

	var sarcasmConfidence, toxicConfidence float64
	if c.SarcasmConfidence != nil {
		sarcasmConfidence = *c.SarcasmConfidence
	}
	if c.ToxicityConfidence != nil {
		toxicConfidence = *c.ToxicityConfidence
	}

	mentions := make([]domain.Mention, 0, len(candidates))
	for _, cand := range candidates {
		norm, ok := scored[cand.CastMemberID]
		if !ok {
			continue
		}
		score := sentiment.ApplyAttenuation(norm.Score, c.IsSarcastic, sarcasmConfidence, h.TauSarcasm, c.IsToxic, toxicConfidence, h.TauToxic)
		confidence := norm.Score
		mentions = append(mentions, domain.Mention{
			ID:             uuid.New().String(),
			CommentID:      c.ID,
			CommentCreated: c.Created,
			CastMemberID:   cand.CastMemberID,
			SentimentLabel: norm.Label,
			SentimentScore: &score,
			Confidence:     &confidence,
			Method:         cand.Method,
			Quote:          cand.Quote,
			IsSarcastic:    c.IsSarcastic,
			IsToxic:        c.IsToxic,
		})
	}
	if len(mentions) == 0 {
		return nil
	}
	if err := h.Mentions.InsertBatch(ctx, mentions); err != nil {
		return fmt.Errorf("insert_batch: %w", err)
	}
	return nil
}

// sentenceContext implements the sentence-extraction rule: the sentence
// containing the alias, falling back to the full body when no sentence
// boundary matches (e.g. the alias was inherited from a parent).
func sentenceContext(body, alias string) string {
	if alias == "" {
		return body
	}
	lower := strings.ToLower(alias)
	for _, s := range textx.SplitSentences(body) {
		if strings.Contains(strings.ToLower(s), lower) {
			return s
		}
	}
	return body
}

func toCandidates(mentions []domain.Mention) []entitylinker.MentionCandidate {
	out := make([]entitylinker.MentionCandidate, 0, len(mentions))
	for _, m := range mentions {
		confidence := 0.0
		if m.Confidence != nil {
			confidence = *m.Confidence
		}
		out = append(out, entitylinker.MentionCandidate{
			CastMemberID: m.CastMemberID,
			Confidence:   confidence,
			Method:       m.Method,
			Quote:        m.Quote,
		})
	}
	return out
}
