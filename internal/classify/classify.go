// Package classify assigns curriculum metadata to OCR-extracted problem
// candidates. An AI classifier handles the general case; a deterministic
// keyword heuristic serves as its fallback so a provider outage never
// blocks a pipeline run.
package classify

import "context"

// Subject codes of the Korean high-school math curriculum.
const (
	SubjectMathI     = "MATH_I"
	SubjectMathII    = "MATH_II"
	SubjectProbStats = "PROB_STATS"
	SubjectCalculus  = "CALCULUS"
	SubjectGeometry  = "GEOMETRY"
)

// Classification sources recorded on results.
const (
	SourceAI        = "ai"
	SourceHeuristic = "heuristic"
)

// Response types derived from a problem's answer.
const (
	ResponseFiveChoice  = "five_choice"
	ResponseShortAnswer = "short_answer"
)

// ReviewPending marks problems whose answer could not be resolved.
const ReviewPending = "PENDING_REVIEW"

// allowedSubjects is the closed set of subject codes results may carry.
var allowedSubjects = map[string]bool{
	SubjectMathI:     true,
	SubjectMathII:    true,
	SubjectProbStats: true,
	SubjectCalculus:  true,
	SubjectGeometry:  true,
}

// Item is one candidate statement to classify. Key ties the result back to
// its candidate and must be unique within a batch.
type Item struct {
	Key       string `json:"key"`
	Text      string `json:"text"`
	HasVisual bool   `json:"has_visual"`
}

// Result is the classification of a single item.
type Result struct {
	Key          string   `json:"key"`
	SubjectCode  string   `json:"subject_code"`
	Points       int      `json:"points"`
	Confidence   int      `json:"confidence"`
	Valid        bool     `json:"is_valid"`
	Answer       string   `json:"answer,omitempty"`
	UnitKeywords []string `json:"unit_keywords,omitempty"`
	Source       string   `json:"source"`
}

// Classifier turns a batch of items into per-item results. Implementations
// must return one result per input item, keyed to it.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, items []Item) ([]Result, error)
}

// Normalize clamps a result into the ranges downstream consumers rely on.
// Subject codes outside the curriculum set are cleared rather than guessed,
// which later causes the candidate to be skipped instead of mis-filed.
func Normalize(r Result) Result {
	if !allowedSubjects[r.SubjectCode] {
		r.SubjectCode = ""
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 100 {
		r.Confidence = 100
	}
	if r.Points < 2 {
		r.Points = 2
	}
	if r.Points > 4 {
		r.Points = 4
	}
	return r
}

// ResolveAnswer maps an answer string to a response type and review status.
// Answers "1" through "5" are multiple choice, anything else non-empty is a
// short answer, and a missing answer flags the problem for manual review.
func ResolveAnswer(answer string) (responseType, reviewStatus string) {
	switch answer {
	case "":
		return ResponseShortAnswer, ReviewPending
	case "1", "2", "3", "4", "5":
		return ResponseFiveChoice, ""
	default:
		return ResponseShortAnswer, ""
	}
}
