// Package segment splits OCR page text into question candidates.
//
// The same splitter runs on the server and in any client-side fallback
// path, so everything here is pure: no I/O, no clocks, deterministic
// output for a given input.
package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// Split strategies recorded on each candidate.
const (
	StrategyNumbered     = "numbered"
	StrategyBracketed    = "bracketed"
	StrategyMunhang      = "munhang"
	StrategyBeon         = "beon"
	StrategyColumnLayout = "column_layout"
	StrategyFullPage     = "full_page_fallback"
)

// BBox is an axis-aligned box in page pixel coordinates, (x1,y1) top-left
// and (x2,y2) bottom-right.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal span of the box.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical span of the box.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	out := b
	if o.X1 < out.X1 {
		out.X1 = o.X1
	}
	if o.Y1 < out.Y1 {
		out.Y1 = o.Y1
	}
	if o.X2 > out.X2 {
		out.X2 = o.X2
	}
	if o.Y2 > out.Y2 {
		out.Y2 = o.Y2
	}
	return out
}

// OverlapArea returns the intersection area of two boxes, 0 if disjoint.
func (b BBox) OverlapArea(o BBox) float64 {
	x1 := max64(b.X1, o.X1)
	y1 := max64(b.Y1, o.Y1)
	x2 := min64(b.X2, o.X2)
	y2 := min64(b.Y2, o.Y2)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	return (x2 - x1) * (y2 - y1)
}

// Line is one OCR text line, optionally with page-pixel geometry.
type Line struct {
	Text string
	BBox *BBox
}

// Candidate is a contiguous region of a page believed to hold one question.
type Candidate struct {
	// Ordinal is the 1-based position of the candidate on its page.
	Ordinal int `json:"ordinal"`
	// QuestionNo is the question number parsed from the boundary marker,
	// 0 when the marker carried none (full page fallback).
	QuestionNo int `json:"question_no"`
	// Text is the raw candidate text.
	Text string `json:"text"`
	// Strategy names the boundary pattern that produced this candidate.
	Strategy string `json:"strategy"`
	// BBox is the union of the candidate's line boxes, nil without geometry.
	BBox *BBox `json:"bbox,omitempty"`
}

// pattern is a boundary marker style seen in Korean math exam layouts.
type pattern struct {
	strategy string
	re       *regexp.Regexp
}

// Boundary patterns in precedence order. Each must capture the question
// number as group 1 and anchor at the start of a line.
var patterns = []pattern{
	{StrategyNumbered, regexp.MustCompile(`^\s*(\d{1,2})\s*[.)]\s+`)},
	{StrategyBracketed, regexp.MustCompile(`^\s*\[\s*(\d{1,3})\s*\]`)},
	{StrategyMunhang, regexp.MustCompile(`^\s*문항\s*(\d{1,3})`)},
	{StrategyBeon, regexp.MustCompile(`^\s*(\d{1,3})\s*번(?:\s|[.)]|$)`)},
}

// Split segments raw page text without geometry.
func Split(text string) []Candidate {
	rawLines := strings.Split(text, "\n")
	lines := make([]Line, len(rawLines))
	for i, t := range rawLines {
		lines[i] = Line{Text: t}
	}
	return split(lines, "", nil)
}

// SplitLines segments a page using line geometry when available. Pages laid
// out in two columns are re-ordered column-by-column before boundary
// detection, and candidates carry the union box of their lines. Lines
// without geometry degrade to plain text splitting.
func SplitLines(lines []Line, pageWidth, pageHeight float64) []Candidate {
	if len(lines) == 0 {
		return nil
	}

	ordered, columnar := orderByLayout(lines, pageWidth)

	var pageBox *BBox
	if pageWidth > 0 && pageHeight > 0 {
		pageBox = &BBox{X1: 0, Y1: 0, X2: pageWidth, Y2: pageHeight}
	}

	strategy := ""
	if columnar {
		strategy = StrategyColumnLayout
	}
	return split(ordered, strategy, pageBox)
}

// split runs boundary detection over ordered lines and groups them into
// candidates. forceStrategy overrides the recorded strategy (layout mode);
// fallbackBox is used for the full-page candidate when no boundary matches.
func split(lines []Line, forceStrategy string, fallbackBox *BBox) []Candidate {
	best, boundaries := bestPattern(lines)
	if best == nil {
		return fullPageCandidate(lines, fallbackBox)
	}

	strategy := best.strategy
	if forceStrategy != "" {
		strategy = forceStrategy
	}

	var out []Candidate
	for i, start := range boundaries {
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].index
		}
		group := lines[start.index:end]

		c := Candidate{
			Ordinal:    i + 1,
			QuestionNo: start.number,
			Text:       joinLines(group),
			Strategy:   strategy,
		}
		c.BBox = unionBoxes(group)
		out = append(out, c)
	}
	return out
}

type boundary struct {
	index  int
	number int
}

// bestPattern scores every boundary pattern against the lines and returns
// the winner with its boundary positions. Score is the match count plus a
// sequence-plausibility bonus: one point per adjacent pair of matched
// numbers that increases by at most 3. Question numbering runs forward in
// small steps, so stray digits (answer choices, point values) rarely earn
// the bonus. Returns nil when nothing matches.
func bestPattern(lines []Line) (*pattern, []boundary) {
	var best *pattern
	var bestBoundaries []boundary
	bestScore := 0

	for i := range patterns {
		p := &patterns[i]
		var bs []boundary
		for idx, ln := range lines {
			m := p.re.FindStringSubmatch(ln.Text)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			bs = append(bs, boundary{index: idx, number: n})
		}
		if len(bs) == 0 {
			continue
		}

		score := len(bs) + sequenceBonus(bs)
		if score > bestScore {
			best = p
			bestBoundaries = bs
			bestScore = score
		}
	}

	return best, bestBoundaries
}

func sequenceBonus(bs []boundary) int {
	bonus := 0
	for i := 1; i < len(bs); i++ {
		step := bs[i].number - bs[i-1].number
		if step >= 1 && step <= 3 {
			bonus++
		}
	}
	return bonus
}

func fullPageCandidate(lines []Line, pageBox *BBox) []Candidate {
	text := strings.TrimSpace(joinLines(lines))
	if text == "" {
		return nil
	}
	c := Candidate{
		Ordinal:  1,
		Text:     text,
		Strategy: StrategyFullPage,
		BBox:     pageBox,
	}
	if c.BBox == nil {
		c.BBox = unionBoxes(lines)
	}
	return []Candidate{c}
}

// orderByLayout sorts lines for reading order. When the page splits into
// two populated columns, lines are ordered left column top-to-bottom then
// right column, and the second return value is true.
func orderByLayout(lines []Line, pageWidth float64) ([]Line, bool) {
	if pageWidth <= 0 {
		return lines, false
	}

	var left, right, loose []Line
	mid := pageWidth / 2
	for _, ln := range lines {
		if ln.BBox == nil {
			loose = append(loose, ln)
			continue
		}
		center := (ln.BBox.X1 + ln.BBox.X2) / 2
		if center < mid {
			left = append(left, ln)
		} else {
			right = append(right, ln)
		}
	}

	// A real second column has enough lines to hold a question; a handful
	// of right-leaning lines is just ragged layout.
	if len(left) < 3 || len(right) < 3 || len(loose) > 0 {
		return lines, false
	}

	sortByTop(left)
	sortByTop(right)
	ordered := make([]Line, 0, len(left)+len(right))
	ordered = append(ordered, left...)
	ordered = append(ordered, right...)
	return ordered, true
}

func sortByTop(lines []Line) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].BBox.Y1 < lines[j-1].BBox.Y1; j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

func unionBoxes(lines []Line) *BBox {
	var out *BBox
	for _, ln := range lines {
		if ln.BBox == nil {
			continue
		}
		if out == nil {
			b := *ln.BBox
			out = &b
			continue
		}
		u := out.Union(*ln.BBox)
		out = &u
	}
	return out
}

func joinLines(lines []Line) string {
	parts := make([]string, len(lines))
	for i, ln := range lines {
		parts[i] = ln.Text
	}
	return strings.TrimRight(strings.Join(parts, "\n"), "\n")
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
