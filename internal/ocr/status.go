package ocr

import (
	"fmt"
	"strings"
)

// JobStatus is the provider state normalized to pipeline terms.
type JobStatus struct {
	// State is one of "uploading", "processing", "completed", "failed".
	State string
	// Progress is a percentage in [0,100].
	Progress int
	// Error carries the provider's failure message when State is "failed".
	Error string
	// NumPages and NumPagesCompleted are the provider's own page counters,
	// 0 when absent.
	NumPages          int
	NumPagesCompleted int
}

// MapJobStatus normalizes a raw provider status payload. Providers report
// progress either as a percentage or as a [0,1] ratio; both map to [0,100].
func MapJobStatus(raw map[string]any) JobStatus {
	out := JobStatus{State: "processing"}

	switch strings.ToLower(stringField(raw, "status")) {
	case "completed", "done", "success":
		out.State = "completed"
		out.Progress = 100
	case "error", "failed":
		out.State = "failed"
	case "received", "loaded", "uploading", "queued":
		out.State = "uploading"
	}

	if p, ok := numberField(raw, "percent_done", "progress"); ok {
		if p <= 1 {
			p *= 100
		}
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		if out.State != "completed" {
			out.Progress = int(p)
		}
	}

	out.NumPages = intField(raw, "num_pages")
	out.NumPagesCompleted = intField(raw, "num_pages_completed")

	if out.State == "failed" {
		out.Error = errorMessage(raw)
	}
	return out
}

// errorMessage pulls a failure message out of the shapes providers use:
// a bare string, {"error": {"message": ...}}, or {"error_info": {...}}.
func errorMessage(raw map[string]any) string {
	switch v := raw["error"].(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if msg := stringField(v, "message"); msg != "" {
			return msg
		}
	}
	if info, ok := raw["error_info"].(map[string]any); ok {
		if msg := stringField(info, "message"); msg != "" {
			return msg
		}
		if id := stringField(info, "id"); id != "" {
			return id
		}
	}
	return "provider reported failure"
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func numberField(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			var f float64
			if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func intField(m map[string]any, key string) int {
	if f, ok := numberField(m, key); ok {
		return int(f)
	}
	return 0
}
