package ocr

import "testing"

func TestExtractPagesFromPagesArray(t *testing.T) {
	raw := map[string]any{
		"pages": []any{
			map[string]any{
				"page":        2.0,
				"text":        "둘째 페이지",
				"page_width":  1000.0,
				"page_height": 1400.0,
			},
			map[string]any{
				"page":     1.0,
				"markdown": "첫 페이지",
			},
		},
	}

	pages := ExtractPages(raw)
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	// Sorted by page number regardless of response order.
	if pages[0].PageNo != 1 || pages[1].PageNo != 2 {
		t.Errorf("page order = %d,%d", pages[0].PageNo, pages[1].PageNo)
	}
	if pages[0].Text != "첫 페이지" {
		t.Errorf("page 1 text = %q", pages[0].Text)
	}
	if pages[1].Width != 1000 || pages[1].Height != 1400 {
		t.Errorf("page 2 dims = %vx%v", pages[1].Width, pages[1].Height)
	}
}

func TestExtractPagesTextPrecedence(t *testing.T) {
	raw := map[string]any{
		"pages": []any{
			map[string]any{
				"page":  1.0,
				"latex": "\\text{latex variant}",
				"text":  "plain variant",
			},
		},
	}

	pages := ExtractPages(raw)
	if len(pages) != 1 {
		t.Fatalf("got %d pages", len(pages))
	}
	if pages[0].Text != "plain variant" {
		t.Errorf("text = %q, want plain text to win over latex", pages[0].Text)
	}
}

func TestExtractPagesFromLineData(t *testing.T) {
	raw := map[string]any{
		"line_data": []any{
			map[string]any{
				"page": 1.0,
				"text": "1. 문항",
				"type": "text",
				"cnt":  []any{[]any{10.0, 20.0}, []any{200.0, 20.0}, []any{200.0, 60.0}, []any{10.0, 60.0}},
			},
			map[string]any{
				"page": 1.0,
				"type": "chart",
				"cnt":  []any{[]any{50.0, 100.0}, []any{300.0, 100.0}, []any{300.0, 400.0}, []any{50.0, 400.0}},
			},
			map[string]any{
				"page": 2.0,
				"text": "2. 다음 문항",
			},
		},
	}

	pages := ExtractPages(raw)
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}

	p1 := pages[0]
	if p1.Text != "1. 문항" {
		t.Errorf("page 1 text = %q", p1.Text)
	}
	if len(p1.Lines) != 2 {
		t.Fatalf("page 1 lines = %d, want 2", len(p1.Lines))
	}
	if p1.Lines[0].BBox == nil {
		t.Fatal("line 1 missing bbox")
	}
	if b := p1.Lines[0].BBox; b.X1 != 10 || b.Y1 != 20 || b.X2 != 200 || b.Y2 != 60 {
		t.Errorf("line 1 bbox = %+v", b)
	}
	if p1.Lines[1].Type != "chart" {
		t.Errorf("line 2 type = %q", p1.Lines[1].Type)
	}
	if !p1.HasGeometry() {
		t.Error("page 1 should report geometry")
	}
}

func TestExtractPagesBareText(t *testing.T) {
	pages := ExtractPages(map[string]any{"text": "전체 텍스트"})
	if len(pages) != 1 {
		t.Fatalf("got %d pages", len(pages))
	}
	if pages[0].PageNo != 1 || pages[0].Text != "전체 텍스트" {
		t.Errorf("page = %+v", pages[0])
	}
}

func TestExtractPagesEmpty(t *testing.T) {
	if got := ExtractPages(nil); got != nil {
		t.Errorf("expected nil for nil input, got %v", got)
	}
	if got := ExtractPages(map[string]any{}); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestMergePagesDetailPrecedence(t *testing.T) {
	summary := []Page{
		{PageNo: 1, Text: "summary page 1"},
		{PageNo: 2, Text: "summary page 2"},
	}
	detail := []Page{
		{
			PageNo: 1,
			Text:   "detail page 1",
			Lines:  []Line{{Text: "detail line"}},
			Width:  1000,
			Height: 1400,
		},
		{PageNo: 3, Text: "detail page 3"},
	}

	merged := MergePages(summary, detail)
	if len(merged) != 3 {
		t.Fatalf("got %d pages, want 3", len(merged))
	}
	if merged[0].Text != "detail page 1" {
		t.Errorf("page 1 text = %q, want detail to win", merged[0].Text)
	}
	if len(merged[0].Lines) != 1 || merged[0].Width != 1000 {
		t.Errorf("page 1 detail fields lost: %+v", merged[0])
	}
	if merged[1].Text != "summary page 2" {
		t.Errorf("page 2 text = %q, want summary preserved", merged[1].Text)
	}
	if merged[2].Text != "detail page 3" {
		t.Errorf("page 3 text = %q, want detail-only page carried", merged[2].Text)
	}
}

func TestMergePagesEmptyDetailKeepsSummary(t *testing.T) {
	summary := []Page{{PageNo: 1, Text: "summary"}}
	detail := []Page{{PageNo: 1}}

	merged := MergePages(summary, detail)
	if merged[0].Text != "summary" {
		t.Errorf("empty detail text should not erase summary: %q", merged[0].Text)
	}
}
