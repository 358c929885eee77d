package assets

import (
	"strings"

	"github.com/parksorry96/mathhub/internal/ocr"
	"github.com/parksorry96/mathhub/internal/segment"
)

// Asset categories a candidate can carry.
const (
	CategoryGraph = "graph"
	CategoryTable = "table"
	CategoryImage = "image"
)

// Hint sources, in decreasing order of geometric precision.
const (
	SourcePayloadNode   = "payload_node"
	SourceStatementText = "statement_text"
	SourceCandidateBBox = "candidate_bbox"
)

const (
	maxHintsPerCategory = 2
	maxHintsTotal       = 6
)

// Hint names a visual region worth extracting for a problem candidate.
type Hint struct {
	Category string        `json:"category"`
	Source   string        `json:"source"`
	BBox     *segment.BBox `json:"bbox,omitempty"`
}

// nodeCategory maps provider line types to asset categories.
func nodeCategory(lineType string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(lineType)) {
	case "chart", "graph", "plot":
		return CategoryGraph, true
	case "table":
		return CategoryTable, true
	case "diagram", "figure", "image", "picture":
		return CategoryImage, true
	default:
		return "", false
	}
}

// statement-text keywords per category, checked only when no payload node
// supplied geometry for the candidate.
var textKeywordCategories = []struct {
	category string
	keywords []string
}{
	{CategoryGraph, []string{"그래프", "좌표", "축"}},
	{CategoryTable, []string{"표"}},
	{CategoryImage, []string{"그림", "도형"}},
}

// CollectHints gathers visual-region hints for a single candidate on a page.
// Payload nodes with geometry bind to the candidate when their box overlaps
// the candidate's box; when the candidate carries no geometry every visual
// node on the page is attached. Statement-text keywords are a fallback used
// only when no geometric hint was found. Results are capped per category and
// in total.
func CollectHints(page ocr.Page, cand segment.Candidate) []Hint {
	var hints []Hint

	for _, line := range page.Lines {
		cat, ok := nodeCategory(line.Type)
		if !ok || line.BBox == nil {
			continue
		}
		if cand.BBox != nil && cand.BBox.OverlapArea(*line.BBox) <= 0 {
			continue
		}
		hints = append(hints, Hint{Category: cat, Source: SourcePayloadNode, BBox: line.BBox})
	}

	if len(hints) == 0 {
		for _, kc := range textKeywordCategories {
			if !containsAny(cand.Text, kc.keywords) {
				continue
			}
			h := Hint{Category: kc.category, Source: SourceStatementText}
			if cand.BBox != nil {
				h.Source = SourceCandidateBBox
				h.BBox = cand.BBox
			}
			hints = append(hints, h)
		}
	}

	return capHints(hints)
}

func capHints(hints []Hint) []Hint {
	if len(hints) == 0 {
		return nil
	}
	perCategory := make(map[string]int)
	out := make([]Hint, 0, len(hints))
	for _, h := range hints {
		if len(out) >= maxHintsTotal {
			break
		}
		if perCategory[h.Category] >= maxHintsPerCategory {
			continue
		}
		perCategory[h.Category]++
		out = append(out, h)
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
