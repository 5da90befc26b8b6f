package usecase

import (
	"context"

	messagedomain "phishguard-backend/internal/message/domain"
	"phishguard-backend/pkg/classifier"
)

// Classifier is the outbound classification boundary used by the backfill
// loops. Implementations never return errors; failures surface as the
// "unknown" sentinel result.
type Classifier interface {
	Classify(ctx context.Context, sender, subject, body string) *classifier.Result
}

// toClassification converts a classifier result into the persisted verdict
// block. The sentinel "unknown" verdict is stored as-is so the record stays
// eligible for a later retry.
func toClassification(res *classifier.Result) messagedomain.Classification {
	verdict := res.Verdict
	confidence := res.Confidence
	return messagedomain.Classification{
		Verdict:         &verdict,
		Confidence:      &confidence,
		Reasoning:       res.Reasoning,
		HighlightedText: res.HighlightedText,
		Suggestion:      res.Suggestion,
	}
}
