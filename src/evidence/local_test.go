package evidence

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	url, err := store.Put(context.Background(), []byte("jpegdata"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/uploads/") {
		t.Fatalf("unexpected url shape: %s", url)
	}
	if !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("expected .jpg extension, got %s", url)
	}

	key := url[strings.LastIndex(url, "/")+1:]
	data, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if string(data) != "jpegdata" {
		t.Fatalf("stored content mismatch: %q", data)
	}

	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, key)); !os.IsNotExist(err) {
		t.Fatal("file should have been removed")
	}
	// Deleting again is a no-op.
	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("repeat delete must succeed: %v", err)
	}
}

func TestLocalStoreContentAddressing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	a, _ := store.Put(context.Background(), []byte("same bytes"), "image/png")
	b, _ := store.Put(context.Background(), []byte("same bytes"), "image/png")
	if a != b {
		t.Errorf("identical content must map to the same key: %s vs %s", a, b)
	}
	c, _ := store.Put(context.Background(), []byte("other bytes"), "image/png")
	if a == c {
		t.Error("different content must not collide")
	}
	if !strings.HasSuffix(c, ".png") {
		t.Errorf("expected .png extension, got %s", c)
	}
}

func TestLocalStoreDeleteRejectsForeignURLs(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	for _, url := range []string{
		"http://localhost:8080/other/file.jpg",
		"http://localhost:8080/uploads/",
		"http://localhost:8080/uploads/../etc/passwd",
		"http://localhost:8080/uploads/a/b.jpg",
	} {
		if err := store.Delete(context.Background(), url); err == nil {
			t.Errorf("expected error for %s", url)
		}
	}
}
