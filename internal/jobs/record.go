// Package jobs manages the OCR job lifecycle: the job/document/page records
// in DefraDB, provider submission, and page synchronization. Long-running
// work is driven by external callers invoking Sync and the classification
// steps repeatedly; there is no background worker pool.
package jobs

import (
	"encoding/json"
	"errors"
	"time"
)

// Sentinel errors surfaced by the job lifecycle.
var (
	// ErrNotFound marks a missing job or document.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidDocument marks a document registration that fails
	// validation.
	ErrInvalidDocument = errors.New("invalid document input")

	// ErrUnsupportedSource marks a document reference the provider cannot
	// fetch (legacy upload:// keys, unknown schemes).
	ErrUnsupportedSource = errors.New("unsupported document source")

	// ErrAlreadySubmitted marks a second submission attempt for a job that
	// already holds a provider job id.
	ErrAlreadySubmitted = errors.New("job already submitted to provider")

	// ErrNotSubmitted marks a sync attempt before submission.
	ErrNotSubmitted = errors.New("job has no provider job id")

	// ErrSyncTimeout marks a poll loop that exhausted its attempt budget
	// without observing a terminal status. The job is not failed; the
	// provider may still complete it later.
	ErrSyncTimeout = errors.New("sync attempts exhausted")

	// ErrInvalidTransition marks a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status represents the lifecycle state of an OCR job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// AllStatuses lists every valid job status.
var AllStatuses = []Status{
	StatusQueued,
	StatusUploading,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// transitions maps each status to the statuses reachable from it.
var transitions = map[Status][]Status{
	StatusQueued:     {StatusUploading, StatusProcessing, StatusFailed, StatusCancelled},
	StatusUploading:  {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether a job may move from one status to another.
// Terminal states have no outgoing transitions.
func CanTransition(from, to Status) bool {
	for _, v := range transitions[from] {
		if v == to {
			return true
		}
	}
	return false
}

// Document is a source file registered for OCR, stored in the OcrDocument
// collection. Documents are deduplicated by content hash: re-creating a job
// for the same bytes reuses the existing row.
type Document struct {
	ID               string    `json:"_docID,omitempty"`
	StorageKey       string    `json:"storage_key"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	FileSizeBytes    int64     `json:"file_size_bytes"`
	SHA256           string    `json:"sha256"`
	CreatedAt        time.Time `json:"created_at"`
}

// Record is an OCR job row in the OcrJob collection.
type Record struct {
	ID            string         `json:"_docID,omitempty"`
	DocumentID    string         `json:"document_id"`
	Provider      string         `json:"provider"`
	ProviderJobID string         `json:"provider_job_id,omitempty"`
	Status        Status         `json:"status"`
	Progress      float64        `json:"progress_pct"`
	ErrorCode     string         `json:"error_code,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Workflow      map[string]any `json:"workflow,omitempty"`
	RequestedAt   time.Time      `json:"requested_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty"`
}

// PageRecord is a synchronized page row in the OcrPage collection,
// unique per (job, page_no).
type PageRecord struct {
	ID         string         `json:"_docID,omitempty"`
	JobID      string         `json:"job_id"`
	PageNo     int            `json:"page_no"`
	Status     string         `json:"status"`
	Text       string         `json:"text,omitempty"`
	MathMarkup string         `json:"math_markup,omitempty"`
	RawPayload map[string]any `json:"raw_payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

// parseRecord maps a DefraDB response document onto a Record.
func parseRecord(data map[string]any) *Record {
	rec := &Record{}

	if id, ok := data["_docID"].(string); ok {
		rec.ID = id
	}
	if v, ok := data["document_id"].(string); ok {
		rec.DocumentID = v
	}
	if v, ok := data["provider"].(string); ok {
		rec.Provider = v
	}
	if v, ok := data["provider_job_id"].(string); ok {
		rec.ProviderJobID = v
	}
	if v, ok := data["status"].(string); ok {
		rec.Status = Status(v)
	}
	if v, ok := data["progress_pct"].(float64); ok {
		rec.Progress = v
	}
	if v, ok := data["error_code"].(string); ok {
		rec.ErrorCode = v
	}
	if v, ok := data["error_message"].(string); ok {
		rec.ErrorMessage = v
	}
	if v, ok := data["workflow"].(string); ok && v != "" {
		var wf map[string]any
		if err := json.Unmarshal([]byte(v), &wf); err == nil {
			rec.Workflow = wf
		}
	}
	if t, ok := parseTime(data, "requested_at"); ok {
		rec.RequestedAt = t
	}
	if t, ok := parseTime(data, "started_at"); ok {
		rec.StartedAt = &t
	}
	if t, ok := parseTime(data, "finished_at"); ok {
		rec.FinishedAt = &t
	}
	if t, ok := parseTime(data, "updated_at"); ok {
		rec.UpdatedAt = t
	}
	return rec
}

// parseDocument maps a DefraDB response document onto a Document.
func parseDocument(data map[string]any) *Document {
	doc := &Document{}

	if id, ok := data["_docID"].(string); ok {
		doc.ID = id
	}
	if v, ok := data["storage_key"].(string); ok {
		doc.StorageKey = v
	}
	if v, ok := data["original_filename"].(string); ok {
		doc.OriginalFilename = v
	}
	if v, ok := data["mime_type"].(string); ok {
		doc.MimeType = v
	}
	if v, ok := data["file_size_bytes"].(float64); ok {
		doc.FileSizeBytes = int64(v)
	}
	if v, ok := data["sha256"].(string); ok {
		doc.SHA256 = v
	}
	if t, ok := parseTime(data, "created_at"); ok {
		doc.CreatedAt = t
	}
	return doc
}

// parsePageRecord maps a DefraDB response document onto a PageRecord.
func parsePageRecord(data map[string]any) *PageRecord {
	page := &PageRecord{}

	if id, ok := data["_docID"].(string); ok {
		page.ID = id
	}
	if v, ok := data["job_id"].(string); ok {
		page.JobID = v
	}
	if v, ok := data["page_no"].(float64); ok {
		page.PageNo = int(v)
	}
	if v, ok := data["status"].(string); ok {
		page.Status = v
	}
	if v, ok := data["text"].(string); ok {
		page.Text = v
	}
	if v, ok := data["math_markup"].(string); ok {
		page.MathMarkup = v
	}
	if v, ok := data["raw_payload"].(string); ok && v != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(v), &payload); err == nil {
			page.RawPayload = payload
		}
	}
	if t, ok := parseTime(data, "created_at"); ok {
		page.CreatedAt = t
	}
	if t, ok := parseTime(data, "updated_at"); ok {
		page.UpdatedAt = t
	}
	return page
}

func parseTime(data map[string]any, key string) (time.Time, bool) {
	s, ok := data[key].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
