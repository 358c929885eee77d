// Package problems materializes classified OCR candidates into the problem
// bank and serves the review workflow over the stored rows.
package problems

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a problem lookup comes back empty.
	ErrNotFound = errors.New("problem not found")
	// ErrClassifyIncomplete is returned when materialization is requested
	// before every candidate has a classification result.
	ErrClassifyIncomplete = errors.New("classification incomplete")
	// ErrNoPages is returned when a job has no synchronized pages to
	// classify or materialize.
	ErrNoPages = errors.New("job has no synchronized pages")
	// ErrInvalidReview is returned for an unknown review action or an
	// oversized note.
	ErrInvalidReview = errors.New("invalid review request")
)

// Review states a stored problem moves through.
const (
	ReviewPending  = "pending"
	ReviewApproved = "approved"
	ReviewRejected = "rejected"
)

// Reasons a candidate is skipped during materialization.
const (
	SkipLowConfidence   = "confidence_below_threshold"
	SkipEmptyContent    = "empty_content"
	SkipUnmappedSubject = "unmapped_subject"
)

// maxReviewNote caps the stored reviewer note length in runes.
const maxReviewNote = 1000

// ExternalKey builds the stable identity of a materialized candidate. The
// key survives re-runs of the pipeline, so repeated materialization updates
// rows instead of duplicating them.
func ExternalKey(jobID string, pageNo, ordinal int, strategy string) string {
	return fmt.Sprintf("OCR:%s:P%d:I%d:%s", jobID, pageNo, ordinal, strategy)
}

// Problem is one row of the Problem collection.
type Problem struct {
	ID                 string     `json:"_docID,omitempty"`
	ExternalProblemKey string     `json:"external_problem_key"`
	JobID              string     `json:"job_id"`
	PageID             string     `json:"page_id,omitempty"`
	SourceProblemNo    int        `json:"source_problem_no,omitempty"`
	SourceProblemLabel string     `json:"source_problem_label,omitempty"`
	Content            string     `json:"content"`
	PointValue         int        `json:"point_value"`
	SubjectCode        string     `json:"subject_code"`
	UnitCode           string     `json:"unit_code"`
	AnswerKey          string     `json:"answer_key,omitempty"`
	ResponseType       string     `json:"response_type"`
	ReviewStatus       string     `json:"review_status"`
	ReviewNote         string     `json:"review_note,omitempty"`
	Confidence         float64    `json:"confidence"`
	AIReviewed         bool       `json:"ai_reviewed"`
	AIProvider         string     `json:"ai_provider,omitempty"`
	AIModel            string     `json:"ai_model,omitempty"`
	IsVerified         bool       `json:"is_verified"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	Revision           int        `json:"revision"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at,omitempty"`
}

// problemFields is the selection set shared by problem reads.
const problemFields = `_docID
		external_problem_key
		job_id
		page_id
		source_problem_no
		source_problem_label
		content
		point_value
		subject_code
		unit_code
		answer_key
		response_type
		review_status
		review_note
		confidence
		ai_reviewed
		ai_provider
		ai_model
		is_verified
		verified_at
		revision
		created_at
		updated_at`

// parseProblem maps a DefraDB response document onto a Problem.
func parseProblem(data map[string]any) *Problem {
	p := &Problem{}

	if v, ok := data["_docID"].(string); ok {
		p.ID = v
	}
	if v, ok := data["external_problem_key"].(string); ok {
		p.ExternalProblemKey = v
	}
	if v, ok := data["job_id"].(string); ok {
		p.JobID = v
	}
	if v, ok := data["page_id"].(string); ok {
		p.PageID = v
	}
	if v, ok := data["source_problem_no"].(float64); ok {
		p.SourceProblemNo = int(v)
	}
	if v, ok := data["source_problem_label"].(string); ok {
		p.SourceProblemLabel = v
	}
	if v, ok := data["content"].(string); ok {
		p.Content = v
	}
	if v, ok := data["point_value"].(float64); ok {
		p.PointValue = int(v)
	}
	if v, ok := data["subject_code"].(string); ok {
		p.SubjectCode = v
	}
	if v, ok := data["unit_code"].(string); ok {
		p.UnitCode = v
	}
	if v, ok := data["answer_key"].(string); ok {
		p.AnswerKey = v
	}
	if v, ok := data["response_type"].(string); ok {
		p.ResponseType = v
	}
	if v, ok := data["review_status"].(string); ok {
		p.ReviewStatus = v
	}
	if v, ok := data["review_note"].(string); ok {
		p.ReviewNote = v
	}
	if v, ok := data["confidence"].(float64); ok {
		p.Confidence = v
	}
	if v, ok := data["ai_reviewed"].(bool); ok {
		p.AIReviewed = v
	}
	if v, ok := data["ai_provider"].(string); ok {
		p.AIProvider = v
	}
	if v, ok := data["ai_model"].(string); ok {
		p.AIModel = v
	}
	if v, ok := data["is_verified"].(bool); ok {
		p.IsVerified = v
	}
	if v, ok := data["verified_at"].(string); ok && v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.VerifiedAt = &t
		}
	}
	if v, ok := data["revision"].(float64); ok {
		p.Revision = int(v)
	}
	if v, ok := data["created_at"].(string); ok && v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.CreatedAt = t
		}
	}
	if v, ok := data["updated_at"].(string); ok && v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.UpdatedAt = t
		}
	}
	return p
}

// StoredAsset is one row of the ProblemAsset collection.
type StoredAsset struct {
	ID          string `json:"_docID,omitempty"`
	ProblemID   string `json:"problem_id"`
	AssetType   string `json:"asset_type"`
	AssetSource string `json:"asset_source,omitempty"`
	StorageKey  string `json:"storage_key"`
	PageNo      int    `json:"page_no"`
	BBox        string `json:"bbox,omitempty"`
}

func parseStoredAsset(data map[string]any) *StoredAsset {
	a := &StoredAsset{}
	if v, ok := data["_docID"].(string); ok {
		a.ID = v
	}
	if v, ok := data["problem_id"].(string); ok {
		a.ProblemID = v
	}
	if v, ok := data["asset_type"].(string); ok {
		a.AssetType = v
	}
	if v, ok := data["asset_source"].(string); ok {
		a.AssetSource = v
	}
	if v, ok := data["storage_key"].(string); ok {
		a.StorageKey = v
	}
	if v, ok := data["page_no"].(float64); ok {
		a.PageNo = int(v)
	}
	if v, ok := data["bbox"].(string); ok {
		a.BBox = v
	}
	return a
}

// marshalBBox serializes a bounding box value for the bbox column. Nil
// boxes store as the empty string.
func marshalBBox(box any) string {
	if box == nil {
		return ""
	}
	raw, err := json.Marshal(box)
	if err != nil || string(raw) == "null" {
		return ""
	}
	return string(raw)
}
