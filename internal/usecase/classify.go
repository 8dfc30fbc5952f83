package usecase

import (
	"fmt"

	"github.com/therealityreport/socializer/internal/domain"
)

// ClassifyComments scores each comment in the batch, writes back its final
// sentiment fields, and chains link_entities for the same batch.
func (h *Handlers) ClassifyComments(ctx domain.Context, ids []domain.CommentKey) error {
	comments, err := h.Comments.ListByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("op=usecase.ClassifyComments load: %w", err)
	}

	for _, c := range comments {
		result, err := h.Pipeline.AnalyzeComment(ctx, c.Body)
		if err != nil {
			h.logger.Warn("analyze_comment failed", "comment_id", c.ID, "error", err)
			continue
		}
		label := result.Final.Label
		score := result.Final.Score
		c.SentimentLabel = &label
		c.SentimentScore = &score
		c.SentimentBreakdown = &domain.SentimentBreakdown{
			Models:        result.Models,
			CombinedScore: result.CombinedScore,
			FinalLabel:    label,
			FinalSource:   result.Final.Source,
		}
		version := h.Pipeline.Primary.ModelVersion()
		c.ModelVersion = &version
		if err := h.Comments.UpdateSentiment(ctx, c); err != nil {
			h.logger.Warn("persist sentiment failed", "comment_id", c.ID, "error", err)
		}
	}

	if len(ids) > 0 {
		if _, err := h.Queue.EnqueueLinkEntities(ctx, ids); err != nil {
			h.logger.Warn("enqueue link_entities failed", "error", err)
		}
	}
	return nil
}
