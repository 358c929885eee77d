package storage

import (
	"strings"
	"testing"
	"time"
)

func TestBuildAndParseStorageKey(t *testing.T) {
	key := BuildStorageKey("mathhub-scans", "uploads/2026/08/doc.pdf")
	if key != "s3://mathhub-scans/uploads/2026/08/doc.pdf" {
		t.Errorf("unexpected storage key: %s", key)
	}

	bucket, objectKey, err := ParseStorageKey(key)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if bucket != "mathhub-scans" {
		t.Errorf("bucket = %q", bucket)
	}
	if objectKey != "uploads/2026/08/doc.pdf" {
		t.Errorf("object key = %q", objectKey)
	}
}

func TestParseStorageKeyErrors(t *testing.T) {
	tests := []string{
		"upload://legacy/doc.pdf",
		"https://example.com/doc.pdf",
		"s3://bucket-only",
		"s3:///no-bucket/key",
		"",
	}
	for _, in := range tests {
		if _, _, err := ParseStorageKey(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestBuildObjectKey(t *testing.T) {
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	key := BuildObjectKey("uploads", "2026 수능 모의고사(수학).pdf", now)

	if !strings.HasPrefix(key, "uploads/2026/08/15/") {
		t.Errorf("missing date partition: %s", key)
	}
	if strings.ContainsAny(key, "() ") {
		t.Errorf("unsafe characters survived sanitization: %s", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Errorf("extension lost: %s", key)
	}

	// Unique per call even for the same filename.
	if again := BuildObjectKey("uploads", "2026 수능 모의고사(수학).pdf", now); again == key {
		t.Errorf("object keys should be unique: %s", key)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"수학 문제.pdf", "pdf"},
		{"a b/c d.pdf", "c-d.pdf"},
		{"///", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAssetObjectKey(t *testing.T) {
	key := AssetObjectKey("ocr-problem-assets", "job-1", 3, 12, 0, "graph")
	want := "ocr-problem-assets/job-1/page-0003/candidate-012/00-graph.png"
	if key != want {
		t.Errorf("asset key = %q, want %q", key, want)
	}
}
