package problems

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/segment"
)

func seedPage(fake *fakeDefra, id, jobID string, pageNo int, text string, payload map[string]any) {
	row := map[string]any{
		"job_id":  jobID,
		"page_no": pageNo,
		"status":  "completed",
		"text":    text,
	}
	if payload != nil {
		raw, _ := json.Marshal(payload)
		row["raw_payload"] = string(raw)
	}
	fake.seed("OcrPage", id, row)
}

func TestPageFromRecord(t *testing.T) {
	t.Run("restores geometry from payload", func(t *testing.T) {
		rec := &jobs.PageRecord{
			PageNo: 2,
			Text:   "fallback text",
			RawPayload: map[string]any{
				"width":  1240.0,
				"height": 1754.0,
				"lines": []any{
					map[string]any{
						"text": "1. 극한값을 구하시오?",
						"bbox": map[string]any{"x1": 10.0, "y1": 20.0, "x2": 600.0, "y2": 60.0},
					},
					map[string]any{"text": "그래프", "type": "chart"},
				},
			},
		}

		page := pageFromRecord(rec)
		if page.PageNo != 2 || page.Width != 1240 || page.Height != 1754 {
			t.Errorf("page dims = %+v", page)
		}
		if len(page.Lines) != 2 {
			t.Fatalf("lines = %d, want 2", len(page.Lines))
		}
		if page.Lines[0].BBox == nil || page.Lines[0].BBox.X2 != 600 {
			t.Errorf("line bbox = %+v", page.Lines[0].BBox)
		}
		if page.Lines[1].Type != "chart" {
			t.Errorf("line type = %q, want chart", page.Lines[1].Type)
		}
	})

	t.Run("no payload keeps plain text", func(t *testing.T) {
		rec := &jobs.PageRecord{PageNo: 1, Text: "1. 문제?"}
		page := pageFromRecord(rec)
		if page.Text != "1. 문제?" || len(page.Lines) != 0 {
			t.Errorf("page = %+v", page)
		}
	})
}

func TestCandidatesForJob(t *testing.T) {
	ctx := context.Background()

	t.Run("segments each page", func(t *testing.T) {
		fake := newFakeDefra(t)
		seedPage(fake, "page-1", "job-1", 1,
			"1. 수열의 극한값을 구하시오?\n보기\n2. 적분 값을 구하시오?", nil)
		seedPage(fake, "page-2", "job-1", 2, "풀이가 없는 쪽", nil)
		mgr := jobs.NewManager(fake.client(), nil)

		pages, err := CandidatesForJob(ctx, mgr, "job-1")
		if err != nil {
			t.Fatalf("CandidatesForJob() error = %v", err)
		}
		if len(pages) != 2 {
			t.Fatalf("pages = %d, want 2", len(pages))
		}
		if pages[0].PageID != "page-1" {
			t.Errorf("PageID = %q, want page-1", pages[0].PageID)
		}
		if len(pages[0].Candidates) != 2 {
			t.Fatalf("page 1 candidates = %d, want 2", len(pages[0].Candidates))
		}
		first := pages[0].Candidates[0]
		if first.Ordinal != 1 || first.QuestionNo != 1 || first.Strategy != segment.StrategyNumbered {
			t.Errorf("candidate = %+v", first)
		}
		if len(pages[1].Candidates) != 1 || pages[1].Candidates[0].Strategy != segment.StrategyFullPage {
			t.Errorf("page 2 candidates = %+v", pages[1].Candidates)
		}
	})

	t.Run("uses geometry when the payload has it", func(t *testing.T) {
		fake := newFakeDefra(t)
		seedPage(fake, "page-1", "job-1", 1, "", map[string]any{
			"width":  1000.0,
			"height": 1400.0,
			"lines": []any{
				map[string]any{"text": "1. 함수의 극한을 구하시오?", "bbox": map[string]any{"x1": 40.0, "y1": 50.0, "x2": 460.0, "y2": 90.0}},
				map[string]any{"text": "2. 미분하시오?", "bbox": map[string]any{"x1": 40.0, "y1": 120.0, "x2": 460.0, "y2": 160.0}},
			},
		})
		mgr := jobs.NewManager(fake.client(), nil)

		pages, err := CandidatesForJob(ctx, mgr, "job-1")
		if err != nil {
			t.Fatalf("CandidatesForJob() error = %v", err)
		}
		cands := pages[0].Candidates
		if len(cands) != 2 {
			t.Fatalf("candidates = %d, want 2", len(cands))
		}
		if cands[0].BBox == nil {
			t.Error("candidate bbox = nil, want union of line boxes")
		}
	})

	t.Run("no pages", func(t *testing.T) {
		fake := newFakeDefra(t)
		mgr := jobs.NewManager(fake.client(), nil)

		if _, err := CandidatesForJob(ctx, mgr, "job-1"); !errors.Is(err, ErrNoPages) {
			t.Errorf("CandidatesForJob() error = %v, want ErrNoPages", err)
		}
	})
}

func TestCandidateKey(t *testing.T) {
	if got := candidateKey(3, 2); got != "P3:I2" {
		t.Errorf("candidateKey(3, 2) = %q, want P3:I2", got)
	}
}
