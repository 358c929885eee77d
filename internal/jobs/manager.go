package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parksorry96/mathhub/internal/defra"
	"github.com/parksorry96/mathhub/internal/ocr"
	"github.com/parksorry96/mathhub/internal/storage"
)

// jobFields is the selection set for OcrJob queries.
const jobFields = `_docID
			document_id
			provider
			provider_job_id
			status
			progress_pct
			error_code
			error_message
			workflow
			requested_at
			started_at
			finished_at
			updated_at`

// Manager handles job, document, and page record operations in DefraDB.
// It owns persistence only; provider calls live in Submit and Sync.
type Manager struct {
	defra  *defra.Client
	logger *slog.Logger
}

// NewManager creates a new job manager.
func NewManager(client *defra.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		defra:  client,
		logger: logger,
	}
}

// DocumentInput describes the source file for a new job.
type DocumentInput struct {
	StorageKey       string
	OriginalFilename string
	MimeType         string
	FileSizeBytes    int64
	SHA256           string
}

func (d DocumentInput) validate() error {
	if d.StorageKey == "" {
		return fmt.Errorf("%w: storage_key is required", ErrInvalidDocument)
	}
	if d.OriginalFilename == "" {
		return fmt.Errorf("%w: original_filename is required", ErrInvalidDocument)
	}
	if len(d.SHA256) != 64 {
		return fmt.Errorf("%w: sha256 must be a 64-character hex digest", ErrInvalidDocument)
	}
	return nil
}

// CreateJob registers the document (deduplicated by sha256) and creates a
// queued job for it.
func (m *Manager) CreateJob(ctx context.Context, input DocumentInput, provider string) (*Record, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if provider == "" {
		provider = ocr.MathpixName
	}

	doc, err := m.findDocumentBySHA256(ctx, input.SHA256)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if doc == nil {
		docID, err := m.defra.Create(ctx, "OcrDocument", map[string]any{
			"storage_key":       input.StorageKey,
			"original_filename": input.OriginalFilename,
			"mime_type":         input.MimeType,
			"file_size_bytes":   int(input.FileSizeBytes),
			"sha256":            strings.ToLower(input.SHA256),
			"created_at":        now.Format(time.RFC3339),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		doc = &Document{ID: docID}
		m.logger.Info("document registered", "id", docID, "filename", input.OriginalFilename)
	} else {
		m.logger.Info("document reused", "id", doc.ID, "sha256", input.SHA256)
	}

	jobID, err := m.defra.Create(ctx, "OcrJob", map[string]any{
		"document_id":  doc.ID,
		"provider":     provider,
		"status":       string(StatusQueued),
		"progress_pct": 0.0,
		"requested_at": now.Format(time.RFC3339),
		"updated_at":   now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	m.logger.Info("job created", "id", jobID, "provider", provider)
	return m.Get(ctx, jobID)
}

// Get returns a job by ID.
func (m *Manager) Get(ctx context.Context, jobID string) (*Record, error) {
	if _, err := defra.SafeID(jobID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	query := fmt.Sprintf(`{
		OcrJob(docID: %q) {
			%s
		}
	}`, jobID, jobFields)

	resp, err := m.defra.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, ok := resp.Data["OcrJob"].([]any)
	if !ok || len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	data, ok := docs[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return parseRecord(data), nil
}

// GetDocument returns a document by ID.
func (m *Manager) GetDocument(ctx context.Context, docID string) (*Document, error) {
	if _, err := defra.SafeID(docID); err != nil {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, docID)
	}

	query := fmt.Sprintf(`{
		OcrDocument(docID: %q) {
			_docID
			storage_key
			original_filename
			mime_type
			file_size_bytes
			sha256
			created_at
		}
	}`, docID)

	resp, err := m.defra.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, ok := resp.Data["OcrDocument"].([]any)
	if !ok || len(docs) == 0 {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, docID)
	}
	data, ok := docs[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document %s", ErrNotFound, docID)
	}
	return parseDocument(data), nil
}

func (m *Manager) findDocumentBySHA256(ctx context.Context, sha string) (*Document, error) {
	resp, err := defra.SafeQuery(ctx, m.defra, "OcrDocument", "sha256", strings.ToLower(sha),
		"_docID", "storage_key", "original_filename", "mime_type", "file_size_bytes", "sha256", "created_at")
	if err != nil {
		return nil, err
	}
	docs, ok := resp.Data["OcrDocument"].([]any)
	if !ok || len(docs) == 0 {
		return nil, nil
	}
	data, ok := docs[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	return parseDocument(data), nil
}

// ListFilter specifies criteria for listing jobs.
type ListFilter struct {
	Status Status // filter by status (empty = all)
	Query  string // substring match on document filename or job id
	Limit  int    // max results (0 = default 100)
	Offset int
}

// List returns jobs matching the filter, newest first.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	filterStr := ""
	if filter.Status != "" {
		filterStr = fmt.Sprintf(`filter: {status: {_eq: %q}}, `, filter.Status)
	}

	query := fmt.Sprintf(`{
		OcrJob(%sorder: {requested_at: DESC}, limit: %d, offset: %d) {
			%s
		}
	}`, filterStr, limit, filter.Offset, jobFields)

	resp, err := m.defra.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	docs, ok := resp.Data["OcrJob"].([]any)
	if !ok {
		return []*Record{}, nil
	}

	records := make([]*Record, 0, len(docs))
	for _, d := range docs {
		data, ok := d.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, parseRecord(data))
	}

	if filter.Query != "" {
		records, err = m.filterByQuery(ctx, records, filter.Query)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// filterByQuery keeps jobs whose id or document filename contains the
// query, case-insensitively.
func (m *Manager) filterByQuery(ctx context.Context, records []*Record, q string) ([]*Record, error) {
	q = strings.ToLower(q)
	out := make([]*Record, 0, len(records))
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.ID), q) {
			out = append(out, rec)
			continue
		}
		if rec.DocumentID == "" {
			continue
		}
		doc, err := m.GetDocument(ctx, rec.DocumentID)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(doc.OriginalFilename), q) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// StatusCounts returns the number of jobs per status.
func (m *Manager) StatusCounts(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int, len(AllStatuses))
	for _, status := range AllStatuses {
		query := fmt.Sprintf(`{
			OcrJob(filter: {status: {_eq: %q}}) {
				_docID
			}
		}`, status)
		resp, err := m.defra.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		if docs, ok := resp.Data["OcrJob"].([]any); ok {
			counts[status] = len(docs)
		}
	}
	return counts, nil
}

// SetStatus moves a job to a new status, validating the transition and
// stamping started_at/finished_at. Error code and message are recorded
// when the status is failed.
func (m *Manager) SetStatus(ctx context.Context, jobID string, status Status, errCode, errMsg string) error {
	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.Status != status && !CanTransition(rec.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, status)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	input := map[string]any{
		"status":     string(status),
		"updated_at": now,
	}
	switch status {
	case StatusUploading, StatusProcessing:
		if rec.StartedAt == nil {
			input["started_at"] = now
		}
	case StatusCompleted, StatusFailed, StatusCancelled:
		input["finished_at"] = now
	}
	if status == StatusCompleted {
		input["progress_pct"] = 100.0
	}
	if errCode != "" {
		input["error_code"] = errCode
	}
	if errMsg != "" {
		input["error_message"] = errMsg
	}

	if err := m.defra.Update(ctx, "OcrJob", jobID, input); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	m.logger.Info("job status updated", "id", jobID, "status", status)
	return nil
}

// SetProgress raises a job's progress percentage. Progress is monotonic:
// a value at or below the current one is a no-op.
func (m *Manager) SetProgress(ctx context.Context, jobID string, pct float64) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if pct <= rec.Progress {
		return nil
	}

	return m.defra.Update(ctx, "OcrJob", jobID, map[string]any{
		"progress_pct": pct,
		"updated_at":   time.Now().UTC().Format(time.RFC3339),
	})
}

// SetProviderJobID records the provider's job id after submission.
func (m *Manager) SetProviderJobID(ctx context.Context, jobID, providerJobID string) error {
	return m.defra.Update(ctx, "OcrJob", jobID, map[string]any{
		"provider_job_id": providerJobID,
		"updated_at":      time.Now().UTC().Format(time.RFC3339),
	})
}

// UpdateWorkflow merges the given keys into the job's workflow state blob.
func (m *Manager) UpdateWorkflow(ctx context.Context, jobID string, updates map[string]any) error {
	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return err
	}

	wf := rec.Workflow
	if wf == nil {
		wf = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		wf[k] = v
	}

	wfJSON, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow state: %w", err)
	}
	return m.defra.Update(ctx, "OcrJob", jobID, map[string]any{
		"workflow":   string(wfJSON),
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// Cancel moves a non-terminal job to cancelled. Results from in-flight
// provider calls are discarded on the next sync.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, StatusCancelled)
	}
	return m.SetStatus(ctx, jobID, StatusCancelled, "", "")
}

// SourceDeleter removes source objects from storage.
type SourceDeleter interface {
	Delete(ctx context.Context, objectKey string) error
}

// DeleteOptions controls the delete-job cascade.
type DeleteOptions struct {
	// DeleteSource also removes the document's object from storage.
	DeleteSource bool
	// Storage performs the source deletion; required when DeleteSource is set.
	Storage SourceDeleter
}

// Delete removes a job and its page rows. The document row is removed when
// no other job references it; with DeleteSource the stored object goes too.
// Materialized problems keep their rows.
func (m *Manager) Delete(ctx context.Context, jobID string, opts DeleteOptions) error {
	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return err
	}

	pages, err := m.ListPages(ctx, jobID)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if err := m.defra.Delete(ctx, "OcrPage", page.ID); err != nil {
			return fmt.Errorf("failed to delete page %d: %w", page.PageNo, err)
		}
	}

	if err := m.defra.Delete(ctx, "OcrJob", jobID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	if rec.DocumentID != "" {
		orphaned, err := m.documentOrphaned(ctx, rec.DocumentID)
		if err != nil {
			return err
		}
		if orphaned {
			doc, err := m.GetDocument(ctx, rec.DocumentID)
			if err == nil {
				if err := m.defra.Delete(ctx, "OcrDocument", doc.ID); err != nil {
					return fmt.Errorf("failed to delete document: %w", err)
				}
				if opts.DeleteSource && opts.Storage != nil && doc.StorageKey != "" {
					if _, objectKey, err := storage.ParseStorageKey(doc.StorageKey); err == nil {
						if err := opts.Storage.Delete(ctx, objectKey); err != nil {
							m.logger.Warn("failed to delete source object",
								"storage_key", doc.StorageKey, "error", err)
						}
					}
				}
			}
		}
	}

	m.logger.Info("job deleted", "id", jobID, "pages", len(pages))
	return nil
}

// documentOrphaned reports whether no remaining job references the document.
func (m *Manager) documentOrphaned(ctx context.Context, docID string) (bool, error) {
	resp, err := defra.SafeQuery(ctx, m.defra, "OcrJob", "document_id", docID, "_docID")
	if err != nil {
		return false, err
	}
	docs, ok := resp.Data["OcrJob"].([]any)
	return !ok || len(docs) == 0, nil
}

// UpsertPage inserts or replaces one synchronized page, keyed by
// (job, page_no).
func (m *Manager) UpsertPage(ctx context.Context, jobID string, page ocr.Page) error {
	now := time.Now().UTC().Format(time.RFC3339)

	payload := map[string]any{
		"page_no": page.PageNo,
		"width":   page.Width,
		"height":  page.Height,
	}
	if len(page.Lines) > 0 {
		payload["lines"] = page.Lines
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal page payload: %w", err)
	}

	filter := map[string]any{
		"job_id":  map[string]any{"_eq": jobID},
		"page_no": map[string]any{"_eq": page.PageNo},
	}
	create := map[string]any{
		"job_id":      jobID,
		"page_no":     page.PageNo,
		"status":      "completed",
		"text":        page.Text,
		"raw_payload": string(payloadJSON),
		"created_at":  now,
		"updated_at":  now,
	}
	update := map[string]any{
		"status":      "completed",
		"text":        page.Text,
		"raw_payload": string(payloadJSON),
		"updated_at":  now,
	}

	if _, err := m.defra.Upsert(ctx, "OcrPage", filter, create, update); err != nil {
		return fmt.Errorf("failed to upsert page %d: %w", page.PageNo, err)
	}
	return nil
}

// ListPages returns a job's synchronized pages in page order.
func (m *Manager) ListPages(ctx context.Context, jobID string) ([]*PageRecord, error) {
	resp, err := defra.NewQuery("OcrPage").
		Filter("job_id", jobID).
		Fields("_docID", "job_id", "page_no", "status", "text", "math_markup", "raw_payload", "created_at", "updated_at").
		OrderBy("page_no", "ASC").
		Execute(ctx, m.defra)
	if err != nil {
		return nil, err
	}

	docs, ok := resp.Data["OcrPage"].([]any)
	if !ok {
		return []*PageRecord{}, nil
	}

	pages := make([]*PageRecord, 0, len(docs))
	for _, d := range docs {
		data, ok := d.(map[string]any)
		if !ok {
			continue
		}
		pages = append(pages, parsePageRecord(data))
	}
	return pages, nil
}
