package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		AppID:          "app-id",
		AppKey:         "app-key",
		BaseURL:        srv.URL,
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
	})
}

func TestSubmitPDF(t *testing.T) {
	var gotAppID, gotAppKey string
	var gotBody map[string]any

	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pdf" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAppID = r.Header.Get("app_id")
		gotAppKey = r.Header.Get("app_key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{"pdf_id": "pdf-abc123"})
	})

	id, err := c.SubmitPDF(context.Background(), "https://example.com/exam.pdf")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if id != "pdf-abc123" {
		t.Errorf("job id = %q", id)
	}
	if gotAppID != "app-id" || gotAppKey != "app-key" {
		t.Errorf("auth headers = %q/%q", gotAppID, gotAppKey)
	}
	if gotBody["url"] != "https://example.com/exam.pdf" {
		t.Errorf("submitted url = %v", gotBody["url"])
	}
}

func TestSubmitPDFRetriesTransient(t *testing.T) {
	attempts := 0
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "pdf-retry"})
	})

	id, err := c.SubmitPDF(context.Background(), "https://example.com/exam.pdf")
	if err != nil {
		t.Fatalf("submit failed after retries: %v", err)
	}
	if id != "pdf-retry" {
		t.Errorf("job id = %q", id)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestSubmitPDFTerminalNotRetried(t *testing.T) {
	attempts := 0
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.SubmitPDF(context.Background(), "https://example.com/exam.pdf")
	if !errors.Is(err, ErrProviderTerminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 401)", attempts)
	}
}

func TestSubmitPDFRateLimitTransient(t *testing.T) {
	attempts := 0
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.SubmitPDF(context.Background(), "https://example.com/exam.pdf")
	if !errors.Is(err, ErrProviderTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (retried to exhaustion)", attempts)
	}
}

func TestStatusAndLinesPaths(t *testing.T) {
	var paths []string
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"status": "completed"})
	})

	if _, err := c.Status(context.Background(), "pdf-1"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if _, err := c.Lines(context.Background(), "pdf-1"); err != nil {
		t.Fatalf("lines failed: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/pdf/pdf-1" || paths[1] != "/pdf/pdf-1/lines.json" {
		t.Errorf("paths = %v", paths)
	}
}

func TestProviderJobID(t *testing.T) {
	tests := []struct {
		raw  map[string]any
		want string
	}{
		{map[string]any{"pdf_id": "a"}, "a"},
		{map[string]any{"id": "b"}, "b"},
		{map[string]any{"job_id": "c"}, "c"},
		{map[string]any{"request_id": "d"}, "d"},
		{map[string]any{"pdf_id": "a", "id": "b"}, "a"},
		{map[string]any{}, ""},
	}
	for _, tt := range tests {
		if got := ProviderJobID(tt.raw); got != tt.want {
			t.Errorf("ProviderJobID(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
