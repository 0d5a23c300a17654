// Standalone scoring smoke test: runs the heuristic scorer, and optionally
// the configured AI provider, against a sample post/claim pair.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/reunite-app/reunite/src/ai/providers"

	aicore "github.com/reunite-app/reunite/src/ai/core"
	"github.com/reunite-app/reunite/src/scoring"
	"github.com/reunite-app/reunite/src/types"
)

var (
	providerFlag = flag.String("provider", "", "AI provider to exercise (empty = heuristic only)")
	modelFlag    = flag.String("model", "", "Override model name")
	timeoutFlag  = flag.Duration("timeout", 10*time.Second, "AI call timeout")
	postFlag     = flag.String("post", defaultPostDesc, "Post description")
	claimFlag    = flag.String("claim", defaultClaimDesc, "Claimant description")
	serialFlag   = flag.String("serial", "SN-12345", "Claimant serial number")
	imageFlag    = flag.Bool("image", true, "Pretend an evidence image was attached")
)

const (
	defaultPostDesc  = "Lost a black leather wallet near the riverside market, corner is torn, serial SN-12345 stamped inside."
	defaultClaimDesc = "black leather wallet with torn corner, has my initials and serial SN-12345"
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	post := &types.Post{
		ID:          1,
		Title:       "Lost wallet",
		Description: *postFlag,
		Tags:        "wallet,leather",
	}
	ev := scoring.Evidence{
		Description:  *claimFlag,
		SerialNumber: *serialFlag,
	}
	if *imageFlag {
		ev.ImageProofURL = "http://example.invalid/uploads/proof.jpg"
	}

	res, _ := scoring.Heuristic{}.Score(context.Background(), post, ev)
	fmt.Printf("=== heuristic ===\nscore: %d\nrationale: %s\n", res.Score, res.Rationale)

	if *providerFlag == "" {
		return
	}

	scorer := scoring.NewAIScorer(aicore.FactoryConfig{
		Provider:  *providerFlag,
		Model:     *modelFlag,
		GeminiKey: os.Getenv("GOOGLE_API_KEY"),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	aiRes, err := scorer.Score(ctx, post, ev)
	if err != nil {
		log.Fatalf("[%s] ERROR: %v", *providerFlag, err)
	}
	fmt.Printf("=== %s (%.1fs) ===\nscore: %d\nrationale: %s\n",
		*providerFlag, time.Since(start).Seconds(), aiRes.Score, aiRes.Rationale)
	for _, pq := range aiRes.PerQuestion {
		fmt.Printf("question %d: %d\n", pq.QuestionID, pq.Score)
	}
}
