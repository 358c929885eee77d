package problems

import (
	"fmt"
	"strings"

	"github.com/parksorry96/mathhub/internal/classify"
	"github.com/parksorry96/mathhub/internal/curriculum"
	"github.com/parksorry96/mathhub/internal/segment"
)

// Decision is the outcome of running one candidate through the
// materialization rules. A skipped candidate carries only Skip and Reason.
type Decision struct {
	Skip   bool
	Reason string

	Content      string
	SubjectCode  string
	UnitCode     string
	PointValue   int
	Confidence   float64
	AnswerKey    string
	ResponseType string
}

// Decide applies the acceptance rules to one classified candidate. The
// rules run in a fixed order: invalid or low-confidence classifications
// first, then candidates whose statement cleans down to nothing, then
// candidates that cannot be filed under any curriculum unit.
func Decide(cand segment.Candidate, res classify.Result, hasVisual bool, dir *curriculum.Directory, minConfidence int, opts segment.Options) Decision {
	res = classify.Normalize(res)

	if !res.Valid || res.Confidence < minConfidence {
		return Decision{Skip: true, Reason: SkipLowConfidence}
	}

	content := segment.CleanForClassification(cand.Text, hasVisual, opts)
	if strings.TrimSpace(content) == "" {
		return Decision{Skip: true, Reason: SkipEmptyContent}
	}

	if res.SubjectCode == "" {
		return Decision{Skip: true, Reason: SkipUnmappedSubject}
	}
	unit, ok := dir.Match(res.SubjectCode, res.UnitKeywords)
	if !ok {
		unit, ok = dir.DefaultLeaf(res.SubjectCode)
	}
	if !ok {
		return Decision{Skip: true, Reason: SkipUnmappedSubject}
	}

	answerKey := res.Answer
	responseType, reviewFlag := classify.ResolveAnswer(res.Answer)
	if reviewFlag == classify.ReviewPending {
		answerKey = classify.ReviewPending
	}

	return Decision{
		Content:      content,
		SubjectCode:  res.SubjectCode,
		UnitCode:     unit.Code,
		PointValue:   res.Points,
		Confidence:   float64(res.Confidence),
		AnswerKey:    answerKey,
		ResponseType: responseType,
	}
}

// sourceLabel renders the human-facing problem number label. Candidates
// produced by the full-page fallback have no parsed number and no label.
func sourceLabel(questionNo int) string {
	if questionNo <= 0 {
		return ""
	}
	return fmt.Sprintf("%d번", questionNo)
}
