package scoring

import (
	"context"

	"github.com/reunite-app/reunite/src/types"
)

// Evidence is what a claimant submits in support of a claim.
type Evidence struct {
	Description   string
	SerialNumber  string
	ImageProofURL string
	Answers       []QuestionAnswer
}

// QuestionAnswer pairs a security question id with the claimant's answer.
type QuestionAnswer struct {
	QuestionID uint64
	Answer     string
}

// QuestionScore is a 0-100 score for a single security question.
type QuestionScore struct {
	QuestionID uint64
	Score      int
}

// Result is the advisory trust estimate. Score is always in [0,100];
// DescriptionScore and PerQuestion are only filled by the AI scorer.
type Result struct {
	Score            int
	Rationale        string
	DescriptionScore *int
	PerQuestion      []QuestionScore
}

// Scorer produces a trust score for a claim against a post. Implementations:
// Heuristic (deterministic, never fails) and AIScorer (remote model, may fail
// with a transport error, in which case the caller falls back to Heuristic).
type Scorer interface {
	Score(ctx context.Context, post *types.Post, ev Evidence) (Result, error)
}

func clamp(n float64) int {
	v := int(n + 0.5)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
