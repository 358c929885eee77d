package ocr

import (
	"sort"

	"github.com/parksorry96/mathhub/internal/segment"
)

// Line is one recognized line with optional geometry and payload type.
type Line struct {
	Text string        `json:"text"`
	Type string        `json:"type,omitempty"` // "text", "chart", "table", "diagram", ...
	BBox *segment.BBox `json:"bbox,omitempty"`
}

// Page is normalized OCR output for a single page.
type Page struct {
	PageNo int     `json:"page_no"`
	Text   string  `json:"text"`
	Lines  []Line  `json:"lines,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// HasGeometry reports whether any line on the page carries a bounding box.
func (p *Page) HasGeometry() bool {
	for _, ln := range p.Lines {
		if ln.BBox != nil {
			return true
		}
	}
	return false
}

// SegmentLines converts page lines for the segmenter.
func (p *Page) SegmentLines() []segment.Line {
	out := make([]segment.Line, 0, len(p.Lines))
	for _, ln := range p.Lines {
		out = append(out, segment.Line{Text: ln.Text, BBox: ln.BBox})
	}
	return out
}

// Text precedence when a page object carries several renderings of the
// same content. Plain text is most faithful to layout; LaTeX is last.
var textKeys = []string{"text", "markdown", "md", "content", "html", "latex_styled", "latex"}

// ExtractPages normalizes the three response shapes the provider returns:
// a pages array, a bare line_data array, or a single text blob.
func ExtractPages(raw map[string]any) []Page {
	if raw == nil {
		return nil
	}

	if pagesRaw, ok := raw["pages"].([]any); ok && len(pagesRaw) > 0 {
		return extractFromPagesArray(pagesRaw)
	}
	if linesRaw, ok := raw["line_data"].([]any); ok && len(linesRaw) > 0 {
		return extractFromLineData(linesRaw)
	}
	if text := stringField(raw, "text"); text != "" {
		return []Page{{PageNo: 1, Text: text}}
	}
	return nil
}

func extractFromPagesArray(pagesRaw []any) []Page {
	var out []Page
	for i, pr := range pagesRaw {
		pm, ok := pr.(map[string]any)
		if !ok {
			continue
		}

		page := Page{PageNo: pageNumber(pm, i)}
		for _, key := range textKeys {
			if text := stringField(pm, key); text != "" {
				page.Text = text
				break
			}
		}
		if w, ok := numberField(pm, "page_width", "width"); ok {
			page.Width = w
		}
		if h, ok := numberField(pm, "page_height", "height"); ok {
			page.Height = h
		}

		linesRaw, ok := pm["lines"].([]any)
		if !ok {
			linesRaw, _ = pm["line_data"].([]any)
		}
		for _, lr := range linesRaw {
			if lm, ok := lr.(map[string]any); ok {
				page.Lines = append(page.Lines, parseLine(lm))
			}
		}

		out = append(out, page)
	}
	sortPages(out)
	return out
}

// extractFromLineData groups a flat line array by page and joins line text
// in order as the page text.
func extractFromLineData(linesRaw []any) []Page {
	byPage := make(map[int]*Page)
	var order []int

	for _, lr := range linesRaw {
		lm, ok := lr.(map[string]any)
		if !ok {
			continue
		}
		pageNo := intField(lm, "page")
		if pageNo <= 0 {
			pageNo = 1
		}

		page, ok := byPage[pageNo]
		if !ok {
			page = &Page{PageNo: pageNo}
			byPage[pageNo] = page
			order = append(order, pageNo)
		}

		line := parseLine(lm)
		page.Lines = append(page.Lines, line)
		if line.Text != "" {
			if page.Text != "" {
				page.Text += "\n"
			}
			page.Text += line.Text
		}
		if w, ok := numberField(lm, "page_width"); ok && w > page.Width {
			page.Width = w
		}
		if h, ok := numberField(lm, "page_height"); ok && h > page.Height {
			page.Height = h
		}
	}

	out := make([]Page, 0, len(order))
	for _, pageNo := range order {
		out = append(out, *byPage[pageNo])
	}
	sortPages(out)
	return out
}

func parseLine(lm map[string]any) Line {
	line := Line{
		Text: stringField(lm, "text"),
		Type: stringField(lm, "type"),
	}
	if cnt, ok := lm["cnt"].([]any); ok {
		line.BBox = boxFromPolygon(cnt)
	}
	return line
}

// boxFromPolygon converts a contour polygon ([[x,y], ...]) to its
// bounding box.
func boxFromPolygon(cnt []any) *segment.BBox {
	var box *segment.BBox
	for _, ptRaw := range cnt {
		pt, ok := ptRaw.([]any)
		if !ok || len(pt) < 2 {
			continue
		}
		x, xok := toFloat(pt[0])
		y, yok := toFloat(pt[1])
		if !xok || !yok {
			continue
		}
		if box == nil {
			box = &segment.BBox{X1: x, Y1: y, X2: x, Y2: y}
			continue
		}
		if x < box.X1 {
			box.X1 = x
		}
		if y < box.Y1 {
			box.Y1 = y
		}
		if x > box.X2 {
			box.X2 = x
		}
		if y > box.Y2 {
			box.Y2 = y
		}
	}
	return box
}

// pageNumber reads the page number under its known key names, falling
// back to the array position (1-based).
func pageNumber(pm map[string]any, index int) int {
	for _, key := range []string{"page", "page_no", "page_number"} {
		if n := intField(pm, key); n > 0 {
			return n
		}
	}
	if n := intField(pm, "index"); n > 0 || pm["index"] != nil {
		return n + 1
	}
	return index + 1
}

// MergePages overlays detail pages (line-level endpoint) onto summary
// pages (status endpoint). Detail wins wherever both carry a value; pages
// present in only one source pass through.
func MergePages(summary, detail []Page) []Page {
	byNo := make(map[int]Page, len(summary))
	var order []int
	for _, p := range summary {
		byNo[p.PageNo] = p
		order = append(order, p.PageNo)
	}

	for _, d := range detail {
		base, ok := byNo[d.PageNo]
		if !ok {
			byNo[d.PageNo] = d
			order = append(order, d.PageNo)
			continue
		}
		if d.Text != "" {
			base.Text = d.Text
		}
		if len(d.Lines) > 0 {
			base.Lines = d.Lines
		}
		if d.Width > 0 {
			base.Width = d.Width
		}
		if d.Height > 0 {
			base.Height = d.Height
		}
		byNo[d.PageNo] = base
	}

	out := make([]Page, 0, len(order))
	for _, pageNo := range order {
		out = append(out, byNo[pageNo])
	}
	sortPages(out)
	return out
}

func sortPages(pages []Page) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNo < pages[j].PageNo })
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
