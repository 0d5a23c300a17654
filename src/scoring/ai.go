package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/reunite-app/reunite/src/ai/core"
	"github.com/reunite-app/reunite/src/types"
)

// AIScorer asks a hosted language model to compare the claimant's answers
// against the private expected answers and the two descriptions against each
// other. The underlying provider client is built lazily on first use so a
// missing API key fails the first scoring attempt, not process start; the
// caller then falls back to Heuristic like on any other transport error.
type AIScorer struct {
	cfg core.FactoryConfig

	once   sync.Once
	client core.Client
	err    error
}

func NewAIScorer(cfg core.FactoryConfig) *AIScorer {
	return &AIScorer{cfg: cfg}
}

func (s *AIScorer) getClient() (core.Client, error) {
	s.once.Do(func() {
		if s.client != nil {
			return
		}
		s.client, s.err = core.NewClient(s.cfg)
	})
	return s.client, s.err
}

// Score returns an error only for true non-responses (construction failure,
// timeout, transport error). A malformed but present model response is still
// a valid low-confidence result: parseResult degrades it to a neutral 50.
func (s *AIScorer) Score(ctx context.Context, post *types.Post, ev Evidence) (Result, error) {
	client, err := s.getClient()
	if err != nil {
		return Result{}, err
	}

	text, err := client.Generate(ctx, buildPrompt(post, ev), core.Options{})
	if err != nil {
		return Result{}, err
	}
	return parseResult(text), nil
}

func buildPrompt(post *types.Post, ev Evidence) string {
	answersByID := make(map[uint64]string, len(ev.Answers))
	for _, a := range ev.Answers {
		answersByID[a.QuestionID] = a.Answer
	}

	var qa strings.Builder
	for _, q := range post.SecurityQuestions {
		fmt.Fprintf(&qa, "- id:%d required:%t\n  question:%s\n  expected:%s\n  provided:%s\n",
			q.ID, q.Required, q.Question, q.Answer, answersByID[q.ID])
	}

	serial := ev.SerialNumber
	if serial == "" {
		serial = "(none)"
	}
	tags := strings.TrimSpace(post.Tags)
	if tags == "" {
		tags = "(none)"
	}

	return fmt.Sprintf(`You are verifying ownership through security questions and description similarity.
Return STRICT JSON only. Keys: overall (0-100 int), perQuestion (array of {id, score:int}), descScore:int, rationale:string.

Scoring rules:
- Security Q&A (70%% weight): For each question, compare claimant answer to expected.
  * Exact or precise match -> high (85-100); semantic near-match -> 70-85.
  * Vague/off-target -> 30-70; incorrect/contradictory -> 0-30.
  * Required unanswered -> score low (0-20).
- Description (30%% weight): Match distinctive features, place/time consistency; penalize contradictions.

Compute descScore (0-100) and perQuestion scores. Then overall = round(0.7*avg(perQuestion) + 0.3*descScore). Output integers.

Original Title: %s
Original Description:
%s
Claimant Description:
%s
Claimant Serial Number: %s
Post Tags: %s

Questions:
%s`, post.Title, post.Description, ev.Description, serial, tags, qa.String())
}

// aiPayload is the shape the model is instructed to return.
type aiPayload struct {
	Overall     *json.Number `json:"overall"`
	DescScore   *json.Number `json:"descScore"`
	Rationale   string       `json:"rationale"`
	PerQuestion []struct {
		ID    flexID      `json:"id"`
		Score json.Number `json:"score"`
	} `json:"perQuestion"`
}

// flexID tolerates question ids arriving as either a JSON number or a string.
type flexID uint64

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		// Unrecognizable id: drop the entry rather than reject the payload.
		*f = 0
		return nil
	}
	*f = flexID(n)
	return nil
}

// parseResult defensively unwraps the model output: strip any code fences,
// parse between the first '{' and the last '}'. The upstream model is not
// contractually guaranteed to return bare JSON.
func parseResult(text string) Result {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var payload aiPayload
	parsed := false
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil {
			parsed = true
		} else {
			log.Printf("ai scorer: JSON parse error: %v", err)
		}
	}
	if !parsed {
		neutral := 50
		return Result{
			Score:            50,
			Rationale:        "Model returned an invalid payload. Defaulting to 50.",
			DescriptionScore: &neutral,
		}
	}

	descScore := 50
	if payload.DescScore != nil {
		if v, err := payload.DescScore.Float64(); err == nil {
			descScore = clamp(v)
		}
	}

	perQuestion := make([]QuestionScore, 0, len(payload.PerQuestion))
	qaSum := 0
	for _, pq := range payload.PerQuestion {
		if pq.ID == 0 {
			continue
		}
		v, err := pq.Score.Float64()
		if err != nil {
			continue
		}
		sc := clamp(v)
		qaSum += sc
		perQuestion = append(perQuestion, QuestionScore{QuestionID: uint64(pq.ID), Score: sc})
	}

	qaAvg := 0
	if len(perQuestion) > 0 {
		qaAvg = int(float64(qaSum)/float64(len(perQuestion)) + 0.5)
	}
	overall := clamp(0.7*float64(qaAvg) + 0.3*float64(descScore))

	// Prefer the model's own overall figure when it supplies one; the
	// mechanical average stays as the fallback.
	if payload.Overall != nil {
		if v, err := payload.Overall.Float64(); err == nil {
			overall = clamp(v)
		}
	}

	return Result{
		Score:            overall,
		Rationale:        payload.Rationale,
		DescriptionScore: &descScore,
		PerQuestion:      perQuestion,
	}
}
