package claims

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reunite-app/reunite/src/data"
	"github.com/reunite-app/reunite/src/scoring"
	"github.com/reunite-app/reunite/src/types"
)

const DefaultAITimeout = 6500 * time.Millisecond

// SubmitInput is the evidence bundle a claimant submits against a post.
type SubmitInput struct {
	Description      string
	SerialNumber     string
	Image            []byte
	ImageContentType string
	Answers          []scoring.QuestionAnswer
}

// Service owns the claim lifecycle: submission with scoring, reviewer
// decisions, withdrawal, and the read projections.
type Service struct {
	store     Store
	evidence  evidenceStore
	ai        scoring.Scorer
	heuristic scoring.Scorer
	rdb       *redis.Client
	limiter   *RateLimiter
	aiTimeout time.Duration
	now       func() time.Time
}

// evidenceStore mirrors evidence.Store; redeclared locally so tests can fake
// it without importing the adapter package.
type evidenceStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

type ServiceConfig struct {
	Store     Store
	Evidence  evidenceStore
	AI        scoring.Scorer
	Heuristic scoring.Scorer
	Redis     *redis.Client // optional; claim events are skipped when nil
	Limiter   *RateLimiter  // optional; no cooldown when nil
	AITimeout time.Duration
	Now       func() time.Time
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Heuristic == nil {
		cfg.Heuristic = scoring.Heuristic{}
	}
	if cfg.AITimeout == 0 {
		cfg.AITimeout = DefaultAITimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:     cfg.Store,
		evidence:  cfg.Evidence,
		ai:        cfg.AI,
		heuristic: cfg.Heuristic,
		rdb:       cfg.Redis,
		limiter:   cfg.Limiter,
		aiTimeout: cfg.AITimeout,
		now:       cfg.Now,
	}
}

// Submit validates the post, scores the evidence and creates the claim in
// status VERIFICATION_SUBMITTED with its timeline seeded. The claim row is
// only written once both the evidence upload and the scoring have finished;
// readers never see a partially scored claim.
func (s *Service) Submit(ctx context.Context, postID, claimantID uint64, in SubmitInput) (*types.Claim, error) {
	if s.limiter != nil && !s.limiter.CanUse(claimantID) {
		wait := s.limiter.TimeUntilNext(claimantID)
		return nil, NewRateLimitedError(fmt.Sprintf("please wait %s before submitting another claim", wait.Round(time.Second)))
	}

	post, err := s.store.GetPost(ctx, postID)
	if err == ErrRecordNotFound {
		return nil, NewNotFoundError("post not found")
	}
	if err != nil {
		return nil, err
	}

	// Fast-path duplicate check; the storage unique index is the authority.
	if exists, err := s.store.ClaimExists(ctx, postID, claimantID); err != nil {
		return nil, err
	} else if exists {
		return nil, NewConflictError("you have already claimed this item")
	}

	// Evidence upload and scoring are independent; run them concurrently.
	// Upload failures are logged and the claim proceeds without an image.
	uploadCh := make(chan string, 1)
	if len(in.Image) > 0 {
		go func() {
			url, err := s.evidence.Put(ctx, in.Image, in.ImageContentType)
			if err != nil {
				log.Printf("evidence upload failed for post %d claimant %d: %v", postID, claimantID, err)
				uploadCh <- ""
				return
			}
			uploadCh <- url
		}()
	} else {
		uploadCh <- ""
	}

	answers := dedupeAnswers(post, in.Answers)
	ev := scoring.Evidence{
		Description:  in.Description,
		SerialNumber: in.SerialNumber,
		Answers:      answers,
	}

	result, aiErr := s.scoreWithTimeout(ctx, post, ev)
	imageURL := <-uploadCh
	ev.ImageProofURL = imageURL
	if aiErr != nil {
		log.Printf("ai scoring failed for post %d: %v; falling back to heuristic", postID, aiErr)
		result, _ = s.heuristic.Score(ctx, post, ev)
	}

	claim := s.buildClaim(post, claimantID, in, imageURL, answers, result)
	if err := s.store.CreateClaim(ctx, claim); err != nil {
		if err == ErrDuplicateClaim {
			return nil, NewConflictError("you have already claimed this item")
		}
		return nil, err
	}

	s.publishEvent(ctx, "claim_submitted", claim)
	return claim, nil
}

// scoreWithTimeout races the AI scorer against a hard timer. When the timer
// fires first the in-flight call is abandoned; the buffered channel lets the
// goroutine finish without anyone waiting on it.
func (s *Service) scoreWithTimeout(ctx context.Context, post *types.Post, ev scoring.Evidence) (scoring.Result, error) {
	if s.ai == nil {
		return scoring.Result{}, fmt.Errorf("ai scorer not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	type outcome struct {
		res scoring.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := s.ai.Score(ctx, post, ev)
		ch <- outcome{res, err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-time.After(s.aiTimeout):
		return scoring.Result{}, fmt.Errorf("ai scoring timed out after %s", s.aiTimeout)
	}
}

func (s *Service) buildClaim(post *types.Post, claimantID uint64, in SubmitInput, imageURL string, answers []scoring.QuestionAnswer, result scoring.Result) *types.Claim {
	scoreByQuestion := make(map[uint64]int, len(result.PerQuestion))
	for _, pq := range result.PerQuestion {
		scoreByQuestion[pq.QuestionID] = pq.Score
	}

	claimAnswers := make([]types.ClaimAnswer, 0, len(answers))
	for _, a := range answers {
		ca := types.ClaimAnswer{QuestionID: a.QuestionID, Answer: a.Answer}
		if sc, ok := scoreByQuestion[a.QuestionID]; ok {
			v := sc
			ca.Score = &v
		}
		claimAnswers = append(claimAnswers, ca)
	}

	rationale := result.Rationale
	if rationale == "" {
		rationale = "Heuristic score based on image/serial/keywords"
	}

	now := s.now()
	return &types.Claim{
		PostID:                post.ID,
		ClaimantID:            claimantID,
		VerifierID:            post.AuthorID,
		Status:                types.ClaimStatusVerificationSubmitted,
		AdditionalDescription: in.Description,
		SerialNumber:          in.SerialNumber,
		ImageProofURL:         imageURL,
		SystemTrustScore:      result.Score,
		SystemTrustRationale:  rationale,
		DescriptionScore:      result.DescriptionScore,
		Answers:               claimAnswers,
		Timeline: []types.AuditEntry{
			{Action: types.AuditClaimCreated, ActorID: claimantID, CreatedAt: now},
			{Action: types.AuditEvidenceSubmitted, ActorID: claimantID, CreatedAt: now,
				Detail: fmt.Sprintf("Initial Score: %d", result.Score)},
			{Action: types.AuditScoreCalculated, ActorID: claimantID, CreatedAt: now,
				Detail: scoreDetail(result.Score, rationale)},
		},
	}
}

// Decide records the verifier's accept/reject decision. Authorization is
// checked against the verifier snapshot taken at claim creation, not a live
// post lookup; a claim stays decidable by its original verifier even if the
// post is later transferred or deleted. Re-deciding an already decided claim
// overwrites the previous decision.
func (s *Service) Decide(ctx context.Context, claimID, deciderID uint64, decision string) (*types.Claim, error) {
	if decision != types.ClaimStatusAccepted && decision != types.ClaimStatusRejected {
		return nil, NewInvalidError("decision must be ACCEPTED or REJECTED")
	}

	claim, err := s.store.GetClaim(ctx, claimID)
	if err == ErrRecordNotFound {
		return nil, NewNotFoundError("claim not found")
	}
	if err != nil {
		return nil, err
	}
	if claim.VerifierID != deciderID {
		return nil, NewForbiddenError("only the post author can decide this claim")
	}

	entry := &types.AuditEntry{Action: decision, ActorID: deciderID, CreatedAt: s.now()}
	if err := s.store.SetStatus(ctx, claimID, decision, entry); err != nil {
		return nil, err
	}

	claim.Status = decision
	claim.Timeline = append(claim.Timeline, *entry)
	s.publishEvent(ctx, "claim_decided", claim)
	return claim, nil
}

// Withdraw removes the claimant's own claim. Evidence cleanup is best-effort:
// a failed image delete is logged and the record deletion proceeds anyway.
func (s *Service) Withdraw(ctx context.Context, claimID, claimantID uint64) error {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err == ErrRecordNotFound {
		return NewNotFoundError("claim not found")
	}
	if err != nil {
		return err
	}
	if claim.ClaimantID != claimantID {
		return NewForbiddenError("only the claimant can withdraw this claim")
	}

	if claim.ImageProofURL != "" {
		if err := s.evidence.Delete(ctx, claim.ImageProofURL); err != nil {
			log.Printf("evidence delete failed for claim %d: %v", claimID, err)
		}
	}

	return s.store.DeleteClaim(ctx, claimID)
}

// ListForVerifier returns the claims awaiting this verifier, newest first.
func (s *Service) ListForVerifier(ctx context.Context, verifierID uint64) ([]types.Claim, error) {
	return s.store.ListByVerifier(ctx, verifierID)
}

// ListForClaimant returns the claims this user submitted, newest first.
func (s *Service) ListForClaimant(ctx context.Context, claimantID uint64) ([]types.Claim, error) {
	return s.store.ListByClaimant(ctx, claimantID)
}

func (s *Service) publishEvent(ctx context.Context, kind string, claim *types.Claim) {
	if s.rdb == nil {
		return
	}
	err := data.PublishClaimEvent(ctx, s.rdb, map[string]any{
		"kind":     kind,
		"claim_id": claim.ID,
		"post_id":  claim.PostID,
		"claimant": claim.ClaimantID,
		"verifier": claim.VerifierID,
		"status":   claim.Status,
		"score":    claim.SystemTrustScore,
		"time":     s.now().Unix(),
	})
	if err != nil {
		log.Printf("failed to publish %s event for claim %d: %v", kind, claim.ID, err)
	}
}

// dedupeAnswers keeps at most one answer per security question actually
// configured on the post, first occurrence wins.
func dedupeAnswers(post *types.Post, answers []scoring.QuestionAnswer) []scoring.QuestionAnswer {
	known := make(map[uint64]bool, len(post.SecurityQuestions))
	for _, q := range post.SecurityQuestions {
		known[q.ID] = true
	}

	seen := make(map[uint64]bool, len(answers))
	out := make([]scoring.QuestionAnswer, 0, len(answers))
	for _, a := range answers {
		if !known[a.QuestionID] || seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true
		out = append(out, a)
	}
	return out
}

func scoreDetail(score int, rationale string) string {
	detail := fmt.Sprintf("Score %d", score)
	if rationale != "" {
		if len(rationale) > 200 {
			rationale = rationale[:200]
		}
		detail += " | " + rationale
	}
	return detail
}
