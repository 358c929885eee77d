package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]any{
					"role":    "assistant",
					"content": content,
				},
			},
		},
	})
	return string(b)
}

func newTestAI(t *testing.T, handler http.HandlerFunc) (*AIClassifier, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewAIClassifier(AIConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("NewAIClassifier: %v", err)
	}
	return c, server
}

func TestAIClassifyParsesFencedResponse(t *testing.T) {
	var gotBody string
	c, _ := newTestAI(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		b, _ := json.Marshal(req["messages"])
		gotBody = string(b)

		content := "```json\n" + `{"results":[{"key":"p1","subject_code":"GEOMETRY","points":4,"confidence":85,"is_valid":true,"answer":"3","unit_keywords":["벡터"]}]}` + "\n```"
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(content))
	})

	results, err := c.Classify(context.Background(), []Item{{Key: "p1", Text: "벡터 문제?"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	r := results[0]
	if r.SubjectCode != SubjectGeometry || r.Points != 4 || r.Confidence != 85 || !r.Valid {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Answer != "3" || r.Source != SourceAI {
		t.Errorf("unexpected answer/source: %+v", r)
	}
	if !strings.Contains(gotBody, "벡터 문제?") {
		t.Error("request did not carry the problem text")
	}
}

func TestAIClassifyNormalizesResults(t *testing.T) {
	c, _ := newTestAI(t, func(w http.ResponseWriter, r *http.Request) {
		content := `{"results":[{"key":"p1","subject_code":"PHYSICS","points":9,"confidence":300,"is_valid":true}]}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(content))
	})

	results, err := c.Classify(context.Background(), []Item{{Key: "p1", Text: "문제?"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	r := results[0]
	if r.SubjectCode != "" {
		t.Errorf("subject = %q, want cleared", r.SubjectCode)
	}
	if r.Points != 4 || r.Confidence != 100 {
		t.Errorf("points/confidence not clamped: %+v", r)
	}
}

func TestAIClassifyMissingItemFallsBack(t *testing.T) {
	c, _ := newTestAI(t, func(w http.ResponseWriter, r *http.Request) {
		content := `{"results":[{"key":"p1","subject_code":"CALCULUS","points":3,"confidence":80,"is_valid":true}]}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(content))
	})

	results, err := c.Classify(context.Background(), []Item{
		{Key: "p1", Text: "적분 문제?"},
		{Key: "p2", Text: "벡터 문제?"},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Source != SourceAI {
		t.Errorf("p1 source = %q, want ai", results[0].Source)
	}
	if results[1].Source != SourceHeuristic || results[1].SubjectCode != SubjectGeometry {
		t.Errorf("p2 fallback wrong: %+v", results[1])
	}
}

func TestAIClassifyTransportErrorFallsBack(t *testing.T) {
	c, _ := newTestAI(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	})

	results, err := c.Classify(context.Background(), []Item{{Key: "p1", Text: "확률 문제?"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(results) != 1 || results[0].Source != SourceHeuristic {
		t.Errorf("expected heuristic fallback, got %+v", results)
	}
	if results[0].SubjectCode != SubjectProbStats {
		t.Errorf("subject = %q, want %q", results[0].SubjectCode, SubjectProbStats)
	}
}

func TestAIClassifySchemaViolationFallsBack(t *testing.T) {
	c, _ := newTestAI(t, func(w http.ResponseWriter, r *http.Request) {
		// points as string violates the result schema.
		content := `{"results":[{"key":"p1","subject_code":"CALCULUS","points":"three","confidence":80,"is_valid":true}]}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, chatResponse(content))
	})

	results, err := c.Classify(context.Background(), []Item{{Key: "p1", Text: "적분 문제?"}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if results[0].Source != SourceHeuristic {
		t.Errorf("expected heuristic fallback, got %+v", results[0])
	}
}

func TestAIClassifyEmptyBatch(t *testing.T) {
	c, _ := newTestAI(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty batch")
	})
	results, err := c.Classify(context.Background(), nil)
	if err != nil || results != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", results, err)
	}
}

func TestParseStructuredJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"bare object", `{"results":[]}`, false},
		{"fenced", "```json\n{\"results\":[]}\n```", false},
		{"surrounded by prose", `Here you go: {"results":[]} hope that helps`, false},
		{"empty", "", true},
		{"not json", "no json here", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := parseStructuredJSON(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStructuredJSON: %v", err)
			}
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err != nil {
				t.Errorf("result not valid JSON: %v", err)
			}
		})
	}
}
