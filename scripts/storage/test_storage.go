// Round-trip check against the evidence object store configured in
// EVIDENCE_STORE_URL. Writes a small test image, verifies it is readable at
// the returned URL, then deletes it twice to confirm idempotent removal.
package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/reunite-app/reunite/src/evidence"
)

func main() {
	baseURL := os.Getenv("EVIDENCE_STORE_URL")
	if baseURL == "" {
		log.Fatal("EVIDENCE_STORE_URL must be set")
	}
	store := evidence.NewRemoteStore(baseURL, os.Getenv("EVIDENCE_STORE_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	payload := []byte("reunite evidence store smoke test")
	url, err := store.Put(ctx, payload, "image/jpeg")
	if err != nil {
		log.Fatalf("put: %v", err)
	}
	log.Printf("stored: %s", url)

	resp, err := http.Get(url)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("fetch: status %d", resp.StatusCode)
	}
	if !bytes.Equal(body, payload) {
		log.Fatalf("fetch: content mismatch (%d bytes)", len(body))
	}

	if err := store.Delete(ctx, url); err != nil {
		log.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, url); err != nil {
		log.Fatalf("repeat delete should be a no-op: %v", err)
	}

	log.Println("✓ evidence store round trip passed")
}
