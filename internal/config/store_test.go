package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parksorry96/mathhub/internal/defra"
)

// mockDefraServer creates a test server that simulates DefraDB responses.
func mockDefraServer(t *testing.T, handler func(query string) map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health-check" {
			w.WriteHeader(http.StatusOK)
			return
		}

		var req defra.GQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		data := handler(req.Query)
		resp := defra.GQLResponse{Data: data}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestDefraStore_Get(t *testing.T) {
	server := mockDefraServer(t, func(query string) map[string]any {
		if strings.Contains(query, `key: {_eq: "providers.ocr.mathpix.type"}`) {
			return map[string]any{
				"Config": []any{
					map[string]any{
						"_docID":      "doc123",
						"key":         "providers.ocr.mathpix.type",
						"value":       `"mathpix"`,
						"description": "OCR provider type",
					},
				},
			}
		}
		return map[string]any{"Config": []any{}}
	})
	defer server.Close()

	client := defra.NewClient(server.URL)
	store := NewStore(client)

	t.Run("existing_key", func(t *testing.T) {
		entry, err := store.Get(t.Context(), "providers.ocr.mathpix.type")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if entry == nil {
			t.Fatal("Get() returned nil for existing key")
		}
		if entry.Key != "providers.ocr.mathpix.type" {
			t.Errorf("Key = %q, want %q", entry.Key, "providers.ocr.mathpix.type")
		}
		if entry.Value != "mathpix" {
			t.Errorf("Value = %v, want %q", entry.Value, "mathpix")
		}
	})

	t.Run("non_existent_key", func(t *testing.T) {
		entry, err := store.Get(t.Context(), "does.not.exist")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if entry != nil {
			t.Errorf("Get() = %v, want nil for non-existent key", entry)
		}
	})
}

func TestDefraStore_GetAll(t *testing.T) {
	server := mockDefraServer(t, func(query string) map[string]any {
		return map[string]any{
			"Config": []any{
				map[string]any{
					"_docID":      "doc1",
					"key":         "providers.ocr.mathpix.type",
					"value":       `"mathpix"`,
					"description": "OCR provider type",
				},
				map[string]any{
					"_docID":      "doc2",
					"key":         "providers.ai.openai.model",
					"value":       `"gpt-4o-mini"`,
					"description": "LLM model name",
				},
			},
		}
	})
	defer server.Close()

	client := defra.NewClient(server.URL)
	store := NewStore(client)

	entries, err := store.GetAll(t.Context())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("GetAll() returned %d entries, want 2", len(entries))
	}

	if _, ok := entries["providers.ocr.mathpix.type"]; !ok {
		t.Error("GetAll() missing key 'providers.ocr.mathpix.type'")
	}
	if _, ok := entries["providers.ai.openai.model"]; !ok {
		t.Error("GetAll() missing key 'providers.ai.openai.model'")
	}
}

func TestDefraStore_GetByPrefix(t *testing.T) {
	server := mockDefraServer(t, func(query string) map[string]any {
		return map[string]any{
			"Config": []any{
				map[string]any{
					"_docID": "doc1",
					"key":    "providers.ocr.mathpix.type",
					"value":  `"mathpix"`,
				},
				map[string]any{
					"_docID": "doc2",
					"key":    "providers.ocr.tesseract.type",
					"value":  `"tesseract"`,
				},
				map[string]any{
					"_docID": "doc3",
					"key":    "providers.ai.openai.type",
					"value":  `"openai"`,
				},
			},
		}
	})
	defer server.Close()

	client := defra.NewClient(server.URL)
	store := NewStore(client)

	entries, err := store.GetByPrefix(t.Context(), "providers.ocr.")
	if err != nil {
		t.Fatalf("GetByPrefix() error = %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("GetByPrefix('providers.ocr.') returned %d entries, want 2", len(entries))
	}

	// Should not include LLM provider
	if _, ok := entries["providers.ai.openai.type"]; ok {
		t.Error("GetByPrefix() should not include non-matching prefix")
	}
}

func TestExtractProviders(t *testing.T) {
	entries := map[string]Entry{
		"providers.ocr.mathpix.type":       {Key: "providers.ocr.mathpix.type", Value: "mathpix"},
		"providers.ocr.mathpix.api_key":    {Key: "providers.ocr.mathpix.api_key", Value: "${MATHPIX_APP_KEY}"},
		"providers.ocr.mathpix.rate_limit": {Key: "providers.ocr.mathpix.rate_limit", Value: float64(6)},
		"providers.ocr.mathpix.enabled":    {Key: "providers.ocr.mathpix.enabled", Value: true},
		"providers.ocr.tesseract.type":     {Key: "providers.ocr.tesseract.type", Value: "tesseract"},
		"providers.ai.openai.type":         {Key: "providers.ai.openai.type", Value: "openai"},
		"defaults.classify_batch_size":     {Key: "defaults.classify_batch_size", Value: float64(10)},
	}

	t.Run("extract_ocr_providers", func(t *testing.T) {
		result := extractProviders(entries, "providers.ocr.")

		if len(result) != 2 {
			t.Errorf("extractProviders() returned %d providers, want 2", len(result))
		}

		mathpix, ok := result["mathpix"]
		if !ok {
			t.Fatal("extractProviders() missing 'mathpix' provider")
		}
		if mathpix["type"] != "mathpix" {
			t.Errorf("mathpix.type = %v, want %q", mathpix["type"], "mathpix")
		}
		if mathpix["enabled"] != true {
			t.Errorf("mathpix.enabled = %v, want true", mathpix["enabled"])
		}
	})

	t.Run("extract_ai_providers", func(t *testing.T) {
		result := extractProviders(entries, "providers.ai.")

		if len(result) != 1 {
			t.Errorf("extractProviders() returned %d providers, want 1", len(result))
		}

		openai, ok := result["openai"]
		if !ok {
			t.Fatal("extractProviders() missing 'openai' provider")
		}
		if openai["type"] != "openai" {
			t.Errorf("openai.type = %v, want %q", openai["type"], "openai")
		}
	})

	t.Run("no_matching_prefix", func(t *testing.T) {
		result := extractProviders(entries, "nonexistent.")
		if len(result) != 0 {
			t.Errorf("extractProviders() with non-matching prefix should return empty map")
		}
	})
}

func TestGetHelpers(t *testing.T) {
	m := map[string]any{
		"string_val": "hello",
		"float_val":  3.14,
		"int_val":    42,
		"bool_val":   true,
	}

	if got := getString(m, "string_val"); got != "hello" {
		t.Errorf("getString() = %q, want %q", got, "hello")
	}
	if got := getString(m, "missing"); got != "" {
		t.Errorf("getString() for missing = %q, want empty", got)
	}

	if got := getFloat(m, "float_val"); got != 3.14 {
		t.Errorf("getFloat() = %v, want %v", got, 3.14)
	}
	if got := getFloat(m, "int_val"); got != 42 {
		t.Errorf("getFloat() for int = %v, want %v", got, 42)
	}

	if got := getBool(m, "bool_val"); got != true {
		t.Errorf("getBool() = %v, want true", got)
	}
	if got := getBool(m, "missing"); got != false {
		t.Errorf("getBool() for missing = %v, want false", got)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid simple key", "foo", false},
		{"valid dotted key", "providers.ocr.mathpix.type", false},
		{"valid with underscore", "defaults.classify_batch_size", false},
		{"valid with hyphen", "my-setting", false},
		{"valid with numbers", "provider1.config2", false},
		{"empty key", "", true},
		{"starts with dot", ".foo", true},
		{"ends with dot", "foo.", true},
		{"contains space", "foo bar", true},
		{"contains special char", "foo@bar", true},
		{"contains slash", "foo/bar", true},
		{"contains colon", "foo:bar", true},
		{"contains quote", "foo\"bar", true},
		{"contains curly brace", "foo{bar}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey(%q) error should wrap ErrInvalidKey, got %v", tt.key, err)
			}
		})
	}
}
