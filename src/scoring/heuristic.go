package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/reunite-app/reunite/src/types"
)

// Words too generic to count toward the keyword-overlap bonus.
var ignoreWords = map[string]bool{
	"the": true, "and": true, "is": true, "it": true, "with": true,
	"item": true, "lost": true, "found": true, "a": true, "an": true,
}

// Heuristic is the deterministic rule-based scorer. It is the default and
// the fallback when the AI scorer is unreachable: no I/O, never fails.
type Heuristic struct{}

// Score applies the additive point system: +30 for an image proof, +50 for a
// serial number found verbatim in the post description, up to +20 for keyword
// overlap between the two descriptions. The sum is capped at 100.
func (Heuristic) Score(_ context.Context, post *types.Post, ev Evidence) (Result, error) {
	score := 0
	var logs []string

	if ev.ImageProofURL != "" {
		score += 30
		logs = append(logs, "Image proof provided (+30)")
	} else {
		logs = append(logs, "No image proof provided (0)")
	}

	if ev.SerialNumber != "" && post.Description != "" {
		if strings.Contains(post.Description, ev.SerialNumber) {
			score += 50
			logs = append(logs, "Serial number matched description (+50)")
		}
	}

	if ev.Description != "" && post.Description != "" {
		claimantWords := strings.Fields(strings.ToLower(ev.Description))
		finderWords := strings.ToLower(post.Description)

		matches := 0
		for _, word := range claimantWords {
			if len(word) > 3 && !ignoreWords[word] && strings.Contains(finderWords, word) {
				matches++
			}
		}

		textScore := matches * 5
		if textScore > 20 {
			textScore = 20
		}
		score += textScore
		logs = append(logs, fmt.Sprintf("Description keyword match: %d words found (+%d)", matches, textScore))
	}

	if score > 100 {
		score = 100
	}
	return Result{Score: score, Rationale: strings.Join(logs, "; ")}, nil
}
