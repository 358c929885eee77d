package problems

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parksorry96/mathhub/internal/assets"
	"github.com/parksorry96/mathhub/internal/defra"
)

// Repository reads and writes problem rows. Single-row writes go straight
// through the client; asset rows fan out through the write sink so a
// materialization run batches them.
type Repository struct {
	defra  *defra.Client
	sink   *defra.Sink
	logger *slog.Logger
}

// NewRepository wires a repository over the given client and sink. The
// sink is optional; without one asset writes fall back to direct creates.
func NewRepository(client *defra.Client, sink *defra.Sink, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{defra: client, sink: sink, logger: logger}
}

// Get returns a single problem by document ID.
func (r *Repository) Get(ctx context.Context, id string) (*Problem, error) {
	safeID, err := defra.SafeID(id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`query {
	Problem(docID: %q) {
		%s
	}
}`, safeID, problemFields)

	resp, err := r.defra.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	docs, ok := resp.Data["Problem"].([]any)
	if !ok || len(docs) == 0 {
		return nil, ErrNotFound
	}
	data, ok := docs[0].(map[string]any)
	if !ok {
		return nil, ErrNotFound
	}
	return parseProblem(data), nil
}

// findByExternalKey returns the stored problem for a candidate identity,
// or nil when the candidate has never been materialized.
func (r *Repository) findByExternalKey(ctx context.Context, key string) (*Problem, error) {
	resp, err := defra.SafeQuery(ctx, r.defra, "Problem", "external_problem_key", key,
		strings.Fields(problemFields)...)
	if err != nil {
		return nil, err
	}
	docs, ok := resp.Data["Problem"].([]any)
	if !ok || len(docs) == 0 {
		return nil, nil
	}
	data, ok := docs[0].(map[string]any)
	if !ok {
		return nil, nil
	}
	return parseProblem(data), nil
}

// Upsert writes a problem keyed by its external problem key. A fresh key
// creates a pending row at revision 1. An existing row is updated in place;
// the revision increments only when the statement content changed, so
// re-runs that reproduce identical text leave review state untouched.
func (r *Repository) Upsert(ctx context.Context, p *Problem) (docID string, created bool, err error) {
	existing, err := r.findByExternalKey(ctx, p.ExternalProblemKey)
	if err != nil {
		return "", false, err
	}
	now := time.Now().UTC().Format(time.RFC3339)

	if existing == nil {
		input := map[string]any{
			"external_problem_key": p.ExternalProblemKey,
			"job_id":               p.JobID,
			"page_id":              p.PageID,
			"source_problem_no":    p.SourceProblemNo,
			"source_problem_label": p.SourceProblemLabel,
			"content":              p.Content,
			"point_value":          p.PointValue,
			"subject_code":         p.SubjectCode,
			"unit_code":            p.UnitCode,
			"answer_key":           p.AnswerKey,
			"response_type":        p.ResponseType,
			"review_status":        ReviewPending,
			"confidence":           p.Confidence,
			"ai_reviewed":          p.AIReviewed,
			"ai_provider":          p.AIProvider,
			"ai_model":             p.AIModel,
			"is_verified":          false,
			"revision":             1,
			"created_at":           now,
			"updated_at":           now,
		}
		id, err := r.defra.Create(ctx, "Problem", input)
		if err != nil {
			return "", false, fmt.Errorf("failed to create problem: %w", err)
		}
		return id, true, nil
	}

	revision := existing.Revision
	if revision < 1 {
		revision = 1
	}
	if existing.Content != p.Content {
		revision++
	}
	update := map[string]any{
		"content":       p.Content,
		"point_value":   p.PointValue,
		"subject_code":  p.SubjectCode,
		"unit_code":     p.UnitCode,
		"answer_key":    p.AnswerKey,
		"response_type": p.ResponseType,
		"confidence":    p.Confidence,
		"ai_reviewed":   p.AIReviewed,
		"ai_provider":   p.AIProvider,
		"ai_model":      p.AIModel,
		"revision":      revision,
		"updated_at":    now,
	}
	if err := r.defra.Update(ctx, "Problem", existing.ID, update); err != nil {
		return "", false, fmt.Errorf("failed to update problem: %w", err)
	}
	return existing.ID, false, nil
}

// SetPrimaryUnit makes unitCode the problem's primary unit mapping,
// demoting any other mapping currently marked primary. The mapping row is
// created if the problem has never been filed under the unit.
func (r *Repository) SetPrimaryUnit(ctx context.Context, problemID, unitCode string) error {
	resp, err := defra.SafeQuery(ctx, r.defra, "ProblemUnitMap", "problem_id", problemID,
		"_docID", "unit_code", "is_primary")
	if err != nil {
		return err
	}

	found := false
	if docs, ok := resp.Data["ProblemUnitMap"].([]any); ok {
		for _, d := range docs {
			data, ok := d.(map[string]any)
			if !ok {
				continue
			}
			id, _ := data["_docID"].(string)
			code, _ := data["unit_code"].(string)
			primary, _ := data["is_primary"].(bool)

			switch {
			case code == unitCode:
				found = true
				if !primary {
					if err := r.defra.Update(ctx, "ProblemUnitMap", id, map[string]any{"is_primary": true}); err != nil {
						return err
					}
				}
			case primary:
				if err := r.defra.Update(ctx, "ProblemUnitMap", id, map[string]any{"is_primary": false}); err != nil {
					return err
				}
			}
		}
	}

	if !found {
		input := map[string]any{
			"problem_id": problemID,
			"unit_code":  unitCode,
			"is_primary": true,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		}
		if _, err := r.defra.Create(ctx, "ProblemUnitMap", input); err != nil {
			return fmt.Errorf("failed to map problem to unit: %w", err)
		}
	}
	return nil
}

// ReplaceAssets swaps a problem's asset rows for the extractor's latest
// crops. Creates go through the sink so a full materialization run batches
// asset writes across problems.
func (r *Repository) ReplaceAssets(ctx context.Context, problemID string, pageNo int, extracted []assets.Asset) error {
	resp, err := defra.SafeQuery(ctx, r.defra, "ProblemAsset", "problem_id", problemID, "_docID")
	if err != nil {
		return err
	}
	if docs, ok := resp.Data["ProblemAsset"].([]any); ok {
		for _, d := range docs {
			data, ok := d.(map[string]any)
			if !ok {
				continue
			}
			id, _ := data["_docID"].(string)
			if id == "" {
				continue
			}
			if err := r.defra.Delete(ctx, "ProblemAsset", id); err != nil {
				return err
			}
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range extracted {
		doc := map[string]any{
			"problem_id":   problemID,
			"asset_type":   a.Category,
			"asset_source": a.Source,
			"storage_key":  a.StorageKey,
			"page_no":      pageNo,
			"bbox":         marshalBBox(a.NormalizedBBox),
			"created_at":   now,
		}
		if r.sink != nil {
			if _, err := r.sink.SendSync(ctx, defra.WriteOp{
				Collection: "ProblemAsset",
				Document:   doc,
				Op:         defra.OpCreate,
			}); err != nil {
				return fmt.Errorf("failed to store asset %s: %w", a.StorageKey, err)
			}
			continue
		}
		if _, err := r.defra.Create(ctx, "ProblemAsset", doc); err != nil {
			return fmt.Errorf("failed to store asset %s: %w", a.StorageKey, err)
		}
	}
	return nil
}

// ListAssets returns a problem's stored asset rows.
func (r *Repository) ListAssets(ctx context.Context, problemID string) ([]*StoredAsset, error) {
	resp, err := defra.SafeQuery(ctx, r.defra, "ProblemAsset", "problem_id", problemID,
		"_docID", "problem_id", "asset_type", "asset_source", "storage_key", "page_no", "bbox")
	if err != nil {
		return nil, err
	}
	docs, ok := resp.Data["ProblemAsset"].([]any)
	if !ok {
		return []*StoredAsset{}, nil
	}
	out := make([]*StoredAsset, 0, len(docs))
	for _, d := range docs {
		data, ok := d.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, parseStoredAsset(data))
	}
	return out, nil
}

// ListFilter narrows a problem listing.
type ListFilter struct {
	JobID        string
	ReviewStatus string
	// AIReviewed filters on the classification source when set.
	AIReviewed *bool
	// Query keeps problems whose content or external key contains the
	// string, matched case-insensitively in memory.
	Query  string
	Limit  int
	Offset int
}

// List returns problems newest-first along with review counts. The counts
// cover every problem matching the non-status filters, so a reviewer sees
// the full pending backlog even while paging an approved-only view.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*Problem, map[string]int, error) {
	inMemory := filter.Query != "" || filter.AIReviewed != nil
	limit, offset := filter.Limit, filter.Offset
	if inMemory {
		limit, offset = 0, 0
	}
	rows, err := r.queryProblems(ctx, filter.JobID, filter.ReviewStatus, limit, offset)
	if err != nil {
		return nil, nil, err
	}
	rows = filterProblems(rows, filter)
	if inMemory {
		if filter.Offset > 0 {
			if filter.Offset >= len(rows) {
				rows = nil
			} else {
				rows = rows[filter.Offset:]
			}
		}
		if filter.Limit > 0 && len(rows) > filter.Limit {
			rows = rows[:filter.Limit]
		}
	}

	counts := map[string]int{ReviewPending: 0, ReviewApproved: 0, ReviewRejected: 0}
	all, err := r.queryProblems(ctx, filter.JobID, "", 0, 0)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range filterProblems(all, ListFilter{Query: filter.Query, AIReviewed: filter.AIReviewed}) {
		counts[p.ReviewStatus]++
	}
	return rows, counts, nil
}

func (r *Repository) queryProblems(ctx context.Context, jobID, reviewStatus string, limit, offset int) ([]*Problem, error) {
	q := defra.NewQuery("Problem").
		Fields(strings.Fields(problemFields)...).
		OrderBy("created_at", "DESC")
	if jobID != "" {
		q = q.Filter("job_id", jobID)
	}
	if reviewStatus != "" {
		q = q.Filter("review_status", reviewStatus)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}

	resp, err := q.Execute(ctx, r.defra)
	if err != nil {
		return nil, err
	}
	docs, ok := resp.Data["Problem"].([]any)
	if !ok {
		return []*Problem{}, nil
	}
	out := make([]*Problem, 0, len(docs))
	for _, d := range docs {
		data, ok := d.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, parseProblem(data))
	}
	return out, nil
}

// filterProblems applies the in-memory parts of a filter: full-text query
// and the AI-reviewed flag.
func filterProblems(rows []*Problem, filter ListFilter) []*Problem {
	if filter.Query == "" && filter.AIReviewed == nil {
		return rows
	}
	needle := strings.ToLower(filter.Query)
	out := make([]*Problem, 0, len(rows))
	for _, p := range rows {
		if filter.AIReviewed != nil && p.AIReviewed != *filter.AIReviewed {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Content), needle) &&
			!strings.Contains(strings.ToLower(p.ExternalProblemKey), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Review actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Review applies a reviewer verdict to a problem. Approval marks the row
// verified and stamps the verification time; rejection clears both. The
// optional note is stored either way.
func (r *Repository) Review(ctx context.Context, id, action, note string) (*Problem, error) {
	if len([]rune(note)) > maxReviewNote {
		return nil, fmt.Errorf("%w: note exceeds %d characters", ErrInvalidReview, maxReviewNote)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	update := map[string]any{
		"review_note": note,
		"updated_at":  now,
	}
	switch action {
	case ActionApprove:
		update["review_status"] = ReviewApproved
		update["is_verified"] = true
		update["verified_at"] = now
	case ActionReject:
		update["review_status"] = ReviewRejected
		update["is_verified"] = false
		update["verified_at"] = ""
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidReview, action)
	}

	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.defra.Update(ctx, "Problem", p.ID, update); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}
