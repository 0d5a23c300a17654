// Minimal end-to-end integration test for the Reunite claims API.
//
// Requires a running claimsd with at least one post owned by VERIFIER_ID and
// the same JWT_SECRET. The claim is withdrawn at the end so the script can be
// re-run without tripping duplicate prevention.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/reunite-app/reunite/src/webserver"
)

var (
	baseURL   = getenv("API_URL", "http://localhost:8090/v1")
	redisURL  = getenv("REDIS_URL", "redis://localhost:6379/0")
	jwtSecret = getenv("JWT_SECRET", "")
	postID    = mustUint(getenv("POST_ID", "1"))
	claimant  = mustUint(getenv("CLAIMANT_ID", "7"))
	verifier  = mustUint(getenv("VERIFIER_ID", "42"))
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		log.Fatalf("bad numeric env value %q: %v", s, err)
	}
	return v
}

func main() {
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	ctx := context.Background()
	rdb := mustRedis()
	defer rdb.Close()

	claimantTok := mustToken(claimant)
	verifierTok := mustToken(verifier)

	claimID := submitClaim(claimantTok)
	checkMine(claimantTok, claimID)
	checkIncoming(verifierTok, claimID)
	decideClaim(verifierTok, claimID)
	checkEvents(ctx, rdb, claimID)
	withdrawClaim(claimantTok, claimID)

	fmt.Println("✓ all endpoints passed")
}

func mustToken(uid uint64) string {
	tok, err := webserver.IssueToken(uid, []byte(jwtSecret))
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	return tok
}

// ----------------------------- claims

func submitClaim(tok string) uint64 {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("additionalDescription", "integration-test "+uuid.NewString())
	mw.WriteField("serialNumber", "SN-"+uuid.NewString()[:8])
	mw.WriteField("questionAnswers", "[]")
	mw.Close()

	path := fmt.Sprintf("/posts/%d/claims", postID)
	req, _ := http.NewRequest(http.MethodPost, baseURL+path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		log.Fatalf("POST %s: want 201 got %d", path, res.StatusCode)
	}

	var resp struct {
		Claim struct {
			ID               uint64 `json:"id"`
			Status           string `json:"status"`
			SystemTrustScore int    `json:"systemTrustScore"`
		} `json:"claim"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		log.Fatalf("POST %s decode: %v", path, err)
	}
	if resp.Claim.Status != "VERIFICATION_SUBMITTED" {
		log.Fatalf("submit: unexpected status %s", resp.Claim.Status)
	}
	log.Printf("claim %d created, trust score %d", resp.Claim.ID, resp.Claim.SystemTrustScore)
	return resp.Claim.ID
}

func checkMine(tok string, want uint64) {
	if !claimListed(tok, "/claims/mine", want) {
		log.Fatal("mine: submitted claim not listed")
	}
}

func checkIncoming(tok string, want uint64) {
	if !claimListed(tok, "/claims/incoming", want) {
		log.Fatal("incoming: claim not visible to verifier")
	}
}

func claimListed(tok, path string, want uint64) bool {
	var list []struct {
		ID uint64 `json:"id"`
	}
	doAuth(tok, http.MethodGet, path, nil, &list, http.StatusOK)
	for _, c := range list {
		if c.ID == want {
			return true
		}
	}
	return false
}

func decideClaim(tok string, id uint64) {
	var decided struct {
		Status string `json:"status"`
	}
	doAuth(tok, http.MethodPost, fmt.Sprintf("/claims/%d/decision", id), map[string]any{
		"status": "ACCEPTED",
	}, &decided, http.StatusOK)
	if decided.Status != "ACCEPTED" {
		log.Fatalf("decide: unexpected status %s", decided.Status)
	}
}

func withdrawClaim(tok string, id uint64) {
	doAuth(tok, http.MethodDelete, fmt.Sprintf("/claims/%d", id), nil, nil, http.StatusOK)
}

// ----------------------------- events

func checkEvents(ctx context.Context, rdb *redis.Client, claimID uint64) {
	msgs, err := rdb.XRevRangeN(ctx, "reunite.claims", "+", "-", 20).Result()
	if err != nil {
		log.Fatalf("redis xrevrange: %v", err)
	}
	want := strconv.FormatUint(claimID, 10)
	for _, m := range msgs {
		if m.Values["claim_id"] == want {
			return
		}
	}
	log.Fatal("events: no stream entry for the claim")
}

// ----------------------------- helpers

func mustRedis() *redis.Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	return redis.NewClient(opt)
}

func doAuth(token, method, path string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	client := &http.Client{Timeout: 30 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
