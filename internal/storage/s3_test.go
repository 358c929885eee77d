package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		Endpoint:  srv.URL,
		Region:    "ap-northeast-2",
		Bucket:    "mathhub-scans",
		AccessKey: "AKIATEST",
		SecretKey: "secret",
	})
	c.now = func() time.Time {
		return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	}
	return c, srv
}

func TestPutSignsRequest(t *testing.T) {
	var gotPath, gotAuth, gotDate, gotHash, gotBody string

	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDate = r.Header.Get("X-Amz-Date")
		gotHash = r.Header.Get("X-Amz-Content-Sha256")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	})

	err := c.Put(context.Background(), "uploads/doc.pdf", []byte("pdf-bytes"), "application/pdf")
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if gotPath != "/mathhub-scans/uploads/doc.pdf" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKIATEST/20260815/ap-northeast-2/s3/aws4_request") {
		t.Errorf("authorization = %q", gotAuth)
	}
	if !strings.Contains(gotAuth, "SignedHeaders=host;x-amz-content-sha256;x-amz-date") {
		t.Errorf("signed headers missing: %q", gotAuth)
	}
	if !strings.Contains(gotAuth, "Signature=") {
		t.Errorf("signature missing: %q", gotAuth)
	}
	if gotDate != "20260815T120000Z" {
		t.Errorf("amz date = %q", gotDate)
	}
	if gotHash != hashHex([]byte("pdf-bytes")) {
		t.Errorf("payload hash mismatch: %q", gotHash)
	}
	if gotBody != "pdf-bytes" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestGetReturnsBody(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		w.Write([]byte("object-content"))
	})

	body, err := c.Get(context.Background(), "uploads/doc.pdf")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(body) != "object-content" {
		t.Errorf("body = %q", body)
	}
}

func TestGetErrorStatus(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("AccessDenied"))
	})

	if _, err := c.Get(context.Background(), "uploads/doc.pdf"); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestDeleteToleratesMissingObject(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if err := c.Delete(context.Background(), "uploads/ghost.pdf"); err != nil {
		t.Errorf("delete of missing object should succeed: %v", err)
	}
}

func TestPresignGet(t *testing.T) {
	c, srv := testClient(t, func(w http.ResponseWriter, r *http.Request) {})

	signed, err := c.PresignGet("uploads/doc.pdf", 10*time.Minute)
	if err != nil {
		t.Fatalf("presign failed: %v", err)
	}

	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("presigned URL unparseable: %v", err)
	}
	if !strings.HasPrefix(signed, srv.URL+"/mathhub-scans/uploads/doc.pdf?") {
		t.Errorf("unexpected base URL: %s", signed)
	}

	q := u.Query()
	if q.Get("X-Amz-Algorithm") != "AWS4-HMAC-SHA256" {
		t.Errorf("algorithm = %q", q.Get("X-Amz-Algorithm"))
	}
	if q.Get("X-Amz-Expires") != "600" {
		t.Errorf("expires = %q", q.Get("X-Amz-Expires"))
	}
	if q.Get("X-Amz-Signature") == "" {
		t.Error("missing signature")
	}
	if !strings.Contains(q.Get("X-Amz-Credential"), "20260815/ap-northeast-2/s3/aws4_request") {
		t.Errorf("credential = %q", q.Get("X-Amz-Credential"))
	}
}

func TestPresignRejectsExcessiveExpiry(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {})

	if _, err := c.PresignGet("uploads/doc.pdf", 8*24*time.Hour); err == nil {
		t.Fatal("expected error for expiry beyond 7 days")
	}
}

func TestEncodePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b/c.png", "a/b/c.png"},
		{"a b/c.png", "a%20b/c.png"},
		{"a+b.png", "a%2Bb.png"},
		{"dir/file~1.png", "dir/file~1.png"},
	}
	for _, tt := range tests {
		if got := encodePath(tt.in); got != tt.want {
			t.Errorf("encodePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
