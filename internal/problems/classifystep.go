package problems

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parksorry96/mathhub/internal/assets"
	"github.com/parksorry96/mathhub/internal/classify"
	"github.com/parksorry96/mathhub/internal/jobs"
)

// Classification progress occupies the upper half of the job's progress
// range, starting where page synchronization leaves off.
const (
	classifyBaseProgress = 45.0
	classifySpan         = 50.0
)

// DefaultClassifyBatch is the per-step batch size when none is configured.
const DefaultClassifyBatch = 10

// workflowClassifyKey is where classification state lives in the job's
// workflow blob.
const workflowClassifyKey = "classify"

// StepResult reports one classification step. Done flips when every
// candidate of the job has a stored result.
type StepResult struct {
	Done      bool   `json:"done"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Accepted  int    `json:"accepted"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
}

// modeler is implemented by classifiers that can name their model.
type modeler interface {
	Model() string
}

// ClassifyStep classifies the next batch of a job's candidates and stores
// the results in the job's workflow state. Calls are resumable: candidates
// with a stored result are never re-sent, so a provider failure mid-job
// costs only the failed batch. Progress advances with the processed ratio.
func ClassifyStep(ctx context.Context, mgr *jobs.Manager, jobID string, cls classify.Classifier, batchSize int, logger *slog.Logger) (*StepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = DefaultClassifyBatch
	}

	rec, err := mgr.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status == jobs.StatusCancelled || rec.Status == jobs.StatusFailed {
		return nil, fmt.Errorf("%w: job is %s", jobs.ErrInvalidTransition, rec.Status)
	}

	pages, err := CandidatesForJob(ctx, mgr, jobID)
	if err != nil {
		return nil, err
	}

	results := storedResults(rec.Workflow)
	total := 0
	var batch []classify.Item
	for _, pc := range pages {
		for _, cand := range pc.Candidates {
			total++
			key := candidateKey(pc.Page.PageNo, cand.Ordinal)
			if _, done := results[key]; done {
				continue
			}
			if len(batch) >= batchSize {
				continue
			}
			hasVisual := len(assets.CollectHints(pc.Page, cand)) > 0
			batch = append(batch, classify.Item{Key: key, Text: cand.Text, HasVisual: hasVisual})
		}
	}
	if total == 0 {
		return nil, ErrNoPages
	}

	provider := cls.Name()
	model := ""
	if m, ok := cls.(modeler); ok {
		model = m.Model()
	}

	if len(batch) > 0 {
		classified, err := cls.Classify(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("classification batch failed: %w", err)
		}
		for _, res := range classified {
			results[res.Key] = classify.Normalize(res)
		}

		state := map[string]any{
			"total":      total,
			"processed":  len(results),
			"provider":   provider,
			"model":      model,
			"results":    results,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		}
		if err := mgr.UpdateWorkflow(ctx, jobID, map[string]any{workflowClassifyKey: state}); err != nil {
			return nil, err
		}
	}

	processed := len(results)
	if processed > total {
		processed = total
	}
	pct := classifyBaseProgress + classifySpan*float64(processed)/float64(total)
	if err := mgr.SetProgress(ctx, jobID, pct); err != nil {
		logger.Warn("failed to advance progress", "job_id", jobID, "error", err)
	}

	accepted := 0
	for _, res := range results {
		if res.Valid && res.SubjectCode != "" {
			accepted++
		}
	}

	return &StepResult{
		Done:      processed >= total,
		Processed: processed,
		Total:     total,
		Accepted:  accepted,
		Provider:  provider,
		Model:     model,
	}, nil
}

// storedResults decodes classification results from the workflow blob. The
// blob round-trips through JSON, so stored results come back as generic
// maps and are rebuilt field by field.
func storedResults(workflow map[string]any) map[string]classify.Result {
	out := map[string]classify.Result{}
	state, ok := workflow[workflowClassifyKey].(map[string]any)
	if !ok {
		return out
	}
	raw, ok := state["results"].(map[string]any)
	if !ok {
		return out
	}
	for key, v := range raw {
		rm, ok := v.(map[string]any)
		if !ok {
			continue
		}
		res := classify.Result{Key: key}
		if s, ok := rm["subject_code"].(string); ok {
			res.SubjectCode = s
		}
		if n, ok := rm["points"].(float64); ok {
			res.Points = int(n)
		}
		if n, ok := rm["confidence"].(float64); ok {
			res.Confidence = int(n)
		}
		if b, ok := rm["is_valid"].(bool); ok {
			res.Valid = b
		}
		if s, ok := rm["answer"].(string); ok {
			res.Answer = s
		}
		if kws, ok := rm["unit_keywords"].([]any); ok {
			for _, kw := range kws {
				if s, ok := kw.(string); ok {
					res.UnitKeywords = append(res.UnitKeywords, s)
				}
			}
		}
		if s, ok := rm["source"].(string); ok {
			res.Source = s
		}
		out[key] = res
	}
	return out
}
