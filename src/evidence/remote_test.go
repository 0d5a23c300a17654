package evidence

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestRemoteStorePut(t *testing.T) {
	var gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if !strings.HasPrefix(r.URL.Path, "/claims/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, "secret")
	url, err := store.Put(context.Background(), []byte("jpegdata"), "image/jpeg")
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if !strings.HasPrefix(url, srv.URL+"/claims/") || !strings.HasSuffix(url, ".jpg") {
		t.Errorf("unexpected url %s", url)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotType != "image/jpeg" {
		t.Errorf("unexpected content type %q", gotType)
	}
	if string(gotBody) != "jpegdata" {
		t.Errorf("unexpected body %q", gotBody)
	}
}

func TestRemoteStorePutRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, "")
	if _, err := store.Put(context.Background(), []byte("jpegdata"), "image/jpeg"); err != nil {
		t.Fatalf("Put should succeed on the second attempt: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestRemoteStoreDelete(t *testing.T) {
	status := http.StatusOK
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(status)
	}))
	defer srv.Close()

	store := NewRemoteStore(srv.URL, "")
	url := srv.URL + "/claims/0011223344556677.jpg"

	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/claims/0011223344556677.jpg" {
		t.Errorf("unexpected request %s %s", gotMethod, gotPath)
	}

	// Deleting an already gone object succeeds.
	status = http.StatusNotFound
	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("404 delete must succeed: %v", err)
	}

	status = http.StatusInternalServerError
	if err := store.Delete(context.Background(), url); err == nil {
		t.Fatal("server errors must propagate")
	}

	if err := store.Delete(context.Background(), "http://elsewhere/claims/x.jpg"); err == nil {
		t.Fatal("foreign urls must be rejected")
	}
}
