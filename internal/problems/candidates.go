package problems

import (
	"context"
	"fmt"

	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/ocr"
	"github.com/parksorry96/mathhub/internal/segment"
)

// PageCandidates pairs a synchronized page with the problem candidates
// segmented out of it.
type PageCandidates struct {
	PageID     string
	Page       ocr.Page
	Candidates []segment.Candidate
}

// CandidatesForJob loads a job's pages and segments each into candidates.
// Classification and materialization both run over this listing, so the
// candidate ordinals they see are identical.
func CandidatesForJob(ctx context.Context, mgr *jobs.Manager, jobID string) ([]PageCandidates, error) {
	records, err := mgr.ListPages(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoPages
	}

	out := make([]PageCandidates, 0, len(records))
	for _, rec := range records {
		page := pageFromRecord(rec)

		var cands []segment.Candidate
		if page.HasGeometry() {
			cands = segment.SplitLines(page.SegmentLines(), page.Width, page.Height)
		} else {
			cands = segment.Split(page.Text)
		}
		out = append(out, PageCandidates{PageID: rec.ID, Page: page, Candidates: cands})
	}
	return out, nil
}

// pageFromRecord rebuilds the normalized page from a stored row. The raw
// payload restores line geometry when the provider supplied it; rows
// without a payload degrade to the plain text column.
func pageFromRecord(rec *jobs.PageRecord) ocr.Page {
	page := ocr.Page{PageNo: rec.PageNo, Text: rec.Text}
	payload := rec.RawPayload
	if payload == nil {
		return page
	}

	if v, ok := payload["width"].(float64); ok {
		page.Width = v
	}
	if v, ok := payload["height"].(float64); ok {
		page.Height = v
	}
	lines, ok := payload["lines"].([]any)
	if !ok {
		return page
	}
	for _, raw := range lines {
		lm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		line := ocr.Line{}
		if v, ok := lm["text"].(string); ok {
			line.Text = v
		}
		if v, ok := lm["type"].(string); ok {
			line.Type = v
		}
		if bm, ok := lm["bbox"].(map[string]any); ok {
			box := &segment.BBox{}
			if v, ok := bm["x1"].(float64); ok {
				box.X1 = v
			}
			if v, ok := bm["y1"].(float64); ok {
				box.Y1 = v
			}
			if v, ok := bm["x2"].(float64); ok {
				box.X2 = v
			}
			if v, ok := bm["y2"].(float64); ok {
				box.Y2 = v
			}
			line.BBox = box
		}
		page.Lines = append(page.Lines, line)
	}
	return page
}

// candidateKey identifies a candidate within its job for classification
// state. Unlike ExternalKey it omits the job and strategy, which keeps the
// workflow blob compact.
func candidateKey(pageNo, ordinal int) string {
	return fmt.Sprintf("P%d:I%d", pageNo, ordinal)
}
