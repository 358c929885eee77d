package problems

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/parksorry96/mathhub/internal/classify"
	"github.com/parksorry96/mathhub/internal/jobs"
)

type stubClassifier struct {
	err   error
	calls [][]classify.Item
}

func (s *stubClassifier) Name() string  { return "stub" }
func (s *stubClassifier) Model() string { return "stub-model" }

func (s *stubClassifier) Classify(_ context.Context, items []classify.Item) ([]classify.Result, error) {
	s.calls = append(s.calls, items)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]classify.Result, 0, len(items))
	for _, it := range items {
		out = append(out, classify.Result{
			Key:          it.Key,
			SubjectCode:  classify.SubjectMathI,
			Points:       3,
			Confidence:   80,
			Valid:        true,
			Answer:       "1",
			UnitKeywords: []string{"수열"},
			Source:       classify.SourceAI,
		})
	}
	return out, nil
}

func seedProcessingJob(fake *fakeDefra, id string, progress float64, workflow map[string]any) {
	row := map[string]any{
		"document_id":  "doc-1",
		"provider":     "mathpix",
		"status":       "processing",
		"progress_pct": progress,
		"requested_at": "2026-08-01T00:00:00Z",
	}
	if workflow != nil {
		raw, _ := json.Marshal(workflow)
		row["workflow"] = string(raw)
	}
	fake.seed("OcrJob", id, row)
}

func jobWorkflow(t *testing.T, fake *fakeDefra, id string) map[string]any {
	t.Helper()
	raw, _ := fake.rows("OcrJob")[id]["workflow"].(string)
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("workflow blob unparseable: %v", err)
	}
	return out
}

func TestClassifyStep(t *testing.T) {
	ctx := context.Background()

	t.Run("steps through candidates in batches", func(t *testing.T) {
		fake := newFakeDefra(t)
		seedProcessingJob(fake, "job-1", 30, nil)
		seedPage(fake, "page-1", "job-1", 1,
			"1. 수열의 극한값을 구하시오?\n2. 적분 값을 구하시오?", nil)
		mgr := jobs.NewManager(fake.client(), nil)
		cls := &stubClassifier{}

		res, err := ClassifyStep(ctx, mgr, "job-1", cls, 1, nil)
		if err != nil {
			t.Fatalf("first step error = %v", err)
		}
		if res.Done || res.Processed != 1 || res.Total != 2 {
			t.Errorf("first step = %+v, want processed 1 of 2", res)
		}
		if res.Provider != "stub" || res.Model != "stub-model" {
			t.Errorf("provider/model = %q/%q", res.Provider, res.Model)
		}
		if len(cls.calls) != 1 || len(cls.calls[0]) != 1 || cls.calls[0][0].Key != "P1:I1" {
			t.Errorf("first batch = %+v, want single item P1:I1", cls.calls)
		}
		if got := fake.rows("OcrJob")["job-1"]["progress_pct"]; got != float64(70) {
			t.Errorf("progress = %v, want 70", got)
		}

		res, err = ClassifyStep(ctx, mgr, "job-1", cls, 1, nil)
		if err != nil {
			t.Fatalf("second step error = %v", err)
		}
		if !res.Done || res.Processed != 2 || res.Accepted != 2 {
			t.Errorf("second step = %+v, want done with 2 accepted", res)
		}
		if cls.calls[1][0].Key != "P1:I2" {
			t.Errorf("second batch key = %q, want P1:I2", cls.calls[1][0].Key)
		}
		if got := fake.rows("OcrJob")["job-1"]["progress_pct"]; got != float64(95) {
			t.Errorf("progress = %v, want 95", got)
		}

		state, _ := jobWorkflow(t, fake, "job-1")["classify"].(map[string]any)
		if state["model"] != "stub-model" {
			t.Errorf("stored model = %v", state["model"])
		}
		results, _ := state["results"].(map[string]any)
		if len(results) != 2 {
			t.Errorf("stored results = %d, want 2", len(results))
		}
	})

	t.Run("finished job is a no-op step", func(t *testing.T) {
		fake := newFakeDefra(t)
		seedProcessingJob(fake, "job-1", 95, map[string]any{
			"classify": map[string]any{
				"total":     1,
				"processed": 1,
				"results": map[string]any{
					"P1:I1": map[string]any{"subject_code": "MATH_I", "is_valid": true, "confidence": 80},
				},
			},
		})
		seedPage(fake, "page-1", "job-1", 1, "1. 수열의 극한값을 구하시오?", nil)
		mgr := jobs.NewManager(fake.client(), nil)
		cls := &stubClassifier{}

		res, err := ClassifyStep(ctx, mgr, "job-1", cls, 10, nil)
		if err != nil {
			t.Fatalf("ClassifyStep() error = %v", err)
		}
		if !res.Done || res.Processed != 1 {
			t.Errorf("step = %+v, want done 1 of 1", res)
		}
		if len(cls.calls) != 0 {
			t.Errorf("classifier calls = %d, want 0", len(cls.calls))
		}
	})

	t.Run("provider failure leaves state untouched", func(t *testing.T) {
		fake := newFakeDefra(t)
		seedProcessingJob(fake, "job-1", 30, nil)
		seedPage(fake, "page-1", "job-1", 1, "1. 수열의 극한값을 구하시오?", nil)
		mgr := jobs.NewManager(fake.client(), nil)
		cls := &stubClassifier{err: errors.New("rate limited")}

		if _, err := ClassifyStep(ctx, mgr, "job-1", cls, 10, nil); err == nil {
			t.Fatal("ClassifyStep() error = nil, want failure")
		}
		if jobWorkflow(t, fake, "job-1") != nil {
			t.Error("workflow state written despite failure")
		}
		if got := fake.rows("OcrJob")["job-1"]["progress_pct"]; got != float64(30) {
			t.Errorf("progress = %v, want unchanged 30", got)
		}
	})

	t.Run("terminal failure states refuse classification", func(t *testing.T) {
		fake := newFakeDefra(t)
		row := map[string]any{
			"status":       "cancelled",
			"requested_at": "2026-08-01T00:00:00Z",
		}
		fake.seed("OcrJob", "job-1", row)
		mgr := jobs.NewManager(fake.client(), nil)

		if _, err := ClassifyStep(ctx, mgr, "job-1", &stubClassifier{}, 10, nil); !errors.Is(err, jobs.ErrInvalidTransition) {
			t.Errorf("ClassifyStep() error = %v, want ErrInvalidTransition", err)
		}
	})

	t.Run("no synchronized pages", func(t *testing.T) {
		fake := newFakeDefra(t)
		seedProcessingJob(fake, "job-1", 30, nil)
		mgr := jobs.NewManager(fake.client(), nil)

		if _, err := ClassifyStep(ctx, mgr, "job-1", &stubClassifier{}, 10, nil); !errors.Is(err, ErrNoPages) {
			t.Errorf("ClassifyStep() error = %v, want ErrNoPages", err)
		}
	})
}
