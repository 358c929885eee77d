package ocr

import "testing"

func TestMapJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		state    string
		progress int
		hasError bool
	}{
		{
			name:     "completed",
			raw:      map[string]any{"status": "completed"},
			state:    "completed",
			progress: 100,
		},
		{
			name:     "done alias",
			raw:      map[string]any{"status": "done"},
			state:    "completed",
			progress: 100,
		},
		{
			name:     "processing with percent",
			raw:      map[string]any{"status": "split", "percent_done": 45.0},
			state:    "processing",
			progress: 45,
		},
		{
			name:     "ratio progress normalized",
			raw:      map[string]any{"status": "processing", "progress": 0.6},
			state:    "processing",
			progress: 60,
		},
		{
			name:     "received maps to uploading",
			raw:      map[string]any{"status": "received"},
			state:    "uploading",
			progress: 0,
		},
		{
			name:     "error string",
			raw:      map[string]any{"status": "error", "error": "invalid pdf"},
			state:    "failed",
			hasError: true,
		},
		{
			name: "error object",
			raw: map[string]any{
				"status": "failed",
				"error":  map[string]any{"message": "document too large"},
			},
			state:    "failed",
			hasError: true,
		},
		{
			name:     "progress clamped",
			raw:      map[string]any{"status": "processing", "percent_done": 250.0},
			state:    "processing",
			progress: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapJobStatus(tt.raw)
			if got.State != tt.state {
				t.Errorf("state = %q, want %q", got.State, tt.state)
			}
			if got.Progress != tt.progress {
				t.Errorf("progress = %d, want %d", got.Progress, tt.progress)
			}
			if tt.hasError && got.Error == "" {
				t.Error("expected error message")
			}
			if !tt.hasError && got.Error != "" {
				t.Errorf("unexpected error message: %q", got.Error)
			}
		})
	}
}

func TestMapJobStatusPageCounters(t *testing.T) {
	got := MapJobStatus(map[string]any{
		"status":              "processing",
		"num_pages":           8.0,
		"num_pages_completed": 3.0,
	})
	if got.NumPages != 8 || got.NumPagesCompleted != 3 {
		t.Errorf("counters = %d/%d, want 3/8", got.NumPagesCompleted, got.NumPages)
	}
}
