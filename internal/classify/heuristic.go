package classify

import (
	"context"
	"strings"
)

// subjectKeywords is checked in order; the first subject with a keyword hit
// wins. MATH_II is the default when nothing matches.
var subjectKeywords = []struct {
	subject  string
	keywords []string
}{
	{SubjectGeometry, []string{"벡터", "포물선", "타원", "쌍곡선", "공간좌표"}},
	{SubjectProbStats, []string{"확률", "통계", "조합", "이항정리", "조건부"}},
	{SubjectCalculus, []string{"적분", "미분", "급수", "도함수"}},
	{SubjectMathI, []string{"지수", "로그", "삼각함수", "수열"}},
}

// difficultyMarkers push a problem to the maximum point value.
var difficultyMarkers = []string{"킬러", "최고난도"}

// structureMarkers indicate well-formed exam phrasing and raise confidence.
var structureMarkers = []string{"보기", "다음", "옳은"}

const (
	shortStatementRunes = 80
	minValidRunes       = 30

	baseConfidence      = 35
	structureConfidence = 55
)

// Heuristic is a deterministic keyword classifier. It never errs, which
// makes it the terminal fallback in a classifier chain.
type Heuristic struct{}

func (Heuristic) Name() string { return SourceHeuristic }

func (h Heuristic) Classify(_ context.Context, items []Item) ([]Result, error) {
	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, h.classifyOne(item))
	}
	return results, nil
}

func (Heuristic) classifyOne(item Item) Result {
	text := item.Text
	runes := len([]rune(text))

	subject := SubjectMathII
	var hits []string
	for _, sk := range subjectKeywords {
		for _, kw := range sk.keywords {
			if strings.Contains(text, kw) {
				subject = sk.subject
				hits = append(hits, kw)
				break
			}
		}
		if hits != nil {
			break
		}
	}

	points := 3
	switch {
	case containsAny(text, difficultyMarkers):
		points = 4
	case runes < shortStatementRunes:
		points = 2
	}

	confidence := baseConfidence
	if containsAny(text, structureMarkers) {
		confidence = structureConfidence
	}

	return Result{
		Key:          item.Key,
		SubjectCode:  subject,
		Points:       points,
		Confidence:   confidence,
		Valid:        runes >= minValidRunes && strings.Contains(text, "?"),
		UnitKeywords: hits,
		Source:       SourceHeuristic,
	}
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

var _ Classifier = Heuristic{}
