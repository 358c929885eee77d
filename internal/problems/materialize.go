package problems

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parksorry96/mathhub/internal/assets"
	"github.com/parksorry96/mathhub/internal/classify"
	"github.com/parksorry96/mathhub/internal/curriculum"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/segment"
)

// Candidate outcomes recorded per materialization result.
const (
	OutcomeInserted = "inserted"
	OutcomeUpdated  = "updated"
	OutcomeSkipped  = "skipped"
)

// Result is the per-candidate outcome of a materialization run.
type Result struct {
	PageNo      int    `json:"page_no"`
	Ordinal     int    `json:"ordinal"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	ProblemID   string `json:"problem_id,omitempty"`
	ExternalKey string `json:"external_key,omitempty"`
}

// Summary totals a materialization run.
type Summary struct {
	Total    int      `json:"total"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Results  []Result `json:"results"`
}

// DefaultMinConfidence is the acceptance threshold applied when a run
// does not set its own.
const DefaultMinConfidence = 60

// MaterializeOptions tunes a run.
type MaterializeOptions struct {
	// MinConfidence is the acceptance threshold in percent, 0 for the
	// default.
	MinConfidence int
	// MinAxisArtifacts forwards to the statement cleaner.
	MinAxisArtifacts int
	// PDFPath points at the job's source document on local disk. When set
	// and an extractor is wired, visual regions are cropped and stored as
	// problem assets. Empty skips asset extraction.
	PDFPath string
}

// Materializer turns a classified job into problem rows.
type Materializer struct {
	repo      *Repository
	jobs      *jobs.Manager
	units     *curriculum.Directory
	extractor *assets.Extractor
	logger    *slog.Logger
}

// NewMaterializer wires a materializer. The extractor is optional.
func NewMaterializer(repo *Repository, mgr *jobs.Manager, units *curriculum.Directory, extractor *assets.Extractor, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{repo: repo, jobs: mgr, units: units, extractor: extractor, logger: logger}
}

// Materialize writes every accepted candidate of a job into the problem
// bank. The run is idempotent: candidates keep their external key across
// runs, so a re-run updates rows in place. Classification must already
// cover every candidate.
func (m *Materializer) Materialize(ctx context.Context, jobID string, opts MaterializeOptions) (*Summary, error) {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}

	rec, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status != jobs.StatusCompleted && rec.Status != jobs.StatusProcessing {
		return nil, fmt.Errorf("%w: job is %s", jobs.ErrInvalidTransition, rec.Status)
	}

	pages, err := CandidatesForJob(ctx, m.jobs, jobID)
	if err != nil {
		return nil, err
	}
	results := storedResults(rec.Workflow)

	total := 0
	for _, pc := range pages {
		total += len(pc.Candidates)
	}
	if len(results) < total {
		return nil, fmt.Errorf("%w: %d of %d candidates classified", ErrClassifyIncomplete, len(results), total)
	}

	if m.extractor != nil && opts.PDFPath != "" {
		maxPage := 0
		for _, pc := range pages {
			if pc.Page.PageNo > maxPage {
				maxPage = pc.Page.PageNo
			}
		}
		if err := assets.ValidateSource(opts.PDFPath, maxPage); err != nil {
			m.logger.Warn("source document unusable, skipping asset extraction",
				"job_id", jobID, "path", opts.PDFPath, "error", err)
			opts.PDFPath = ""
		}
	}

	cleanOpts := segment.Options{MinAxisArtifacts: opts.MinAxisArtifacts}
	summary := &Summary{Total: total}

	for _, pc := range pages {
		for _, cand := range pc.Candidates {
			key := candidateKey(pc.Page.PageNo, cand.Ordinal)
			res, ok := results[key]
			if !ok {
				// Guard against workflow state written by an older run
				// over a different segmentation.
				heuristic, _ := classify.Heuristic{}.Classify(ctx, []classify.Item{{Key: key, Text: cand.Text}})
				if len(heuristic) > 0 {
					res = heuristic[0]
				}
			}

			outcome := m.materializeOne(ctx, rec, pc, cand, res, cleanOpts, opts)
			summary.Results = append(summary.Results, outcome)
			switch outcome.Outcome {
			case OutcomeInserted:
				summary.Inserted++
			case OutcomeUpdated:
				summary.Updated++
			default:
				summary.Skipped++
			}
		}
	}

	state := map[string]any{
		"inserted":    summary.Inserted,
		"updated":     summary.Updated,
		"skipped":     summary.Skipped,
		"finished_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := m.jobs.UpdateWorkflow(ctx, jobID, map[string]any{"materialize": state}); err != nil {
		m.logger.Warn("failed to record materialization state", "job_id", jobID, "error", err)
	}
	if err := m.jobs.SetProgress(ctx, jobID, 100); err != nil {
		m.logger.Warn("failed to advance progress", "job_id", jobID, "error", err)
	}
	return summary, nil
}

func (m *Materializer) materializeOne(ctx context.Context, rec *jobs.Record, pc PageCandidates, cand segment.Candidate, res classify.Result, cleanOpts segment.Options, opts MaterializeOptions) Result {
	out := Result{PageNo: pc.Page.PageNo, Ordinal: cand.Ordinal}

	hints := assets.CollectHints(pc.Page, cand)
	decision := Decide(cand, res, len(hints) > 0, m.units, opts.MinConfidence, cleanOpts)
	if decision.Skip {
		out.Outcome = OutcomeSkipped
		out.Reason = decision.Reason
		return out
	}

	key := ExternalKey(rec.ID, pc.Page.PageNo, cand.Ordinal, cand.Strategy)
	problem := &Problem{
		ExternalProblemKey: key,
		JobID:              rec.ID,
		PageID:             pc.PageID,
		SourceProblemNo:    cand.QuestionNo,
		SourceProblemLabel: sourceLabel(cand.QuestionNo),
		Content:            decision.Content,
		PointValue:         decision.PointValue,
		SubjectCode:        decision.SubjectCode,
		UnitCode:           decision.UnitCode,
		AnswerKey:          decision.AnswerKey,
		ResponseType:       decision.ResponseType,
		Confidence:         decision.Confidence,
		AIReviewed:         res.Source == classify.SourceAI,
		AIProvider:         res.Source,
	}
	if problem.AIReviewed {
		problem.AIModel = modelFromWorkflow(rec.Workflow)
	}

	id, created, err := m.repo.Upsert(ctx, problem)
	if err != nil {
		m.logger.Error("failed to upsert problem", "external_key", key, "error", err)
		out.Outcome = OutcomeSkipped
		out.Reason = "write_failed"
		return out
	}
	out.ProblemID = id
	out.ExternalKey = key
	if created {
		out.Outcome = OutcomeInserted
	} else {
		out.Outcome = OutcomeUpdated
	}

	if err := m.repo.SetPrimaryUnit(ctx, id, decision.UnitCode); err != nil {
		m.logger.Warn("failed to map unit", "problem_id", id, "unit", decision.UnitCode, "error", err)
	}

	if m.extractor != nil && opts.PDFPath != "" && len(hints) > 0 {
		extracted, err := m.extractor.ExtractCandidate(ctx, opts.PDFPath, rec.ID, pc.Page, cand, hints)
		if err != nil {
			m.logger.Warn("asset extraction failed", "problem_id", id, "page", pc.Page.PageNo, "error", err)
		} else if len(extracted) > 0 {
			if err := m.repo.ReplaceAssets(ctx, id, pc.Page.PageNo, extracted); err != nil {
				m.logger.Warn("failed to store assets", "problem_id", id, "error", err)
			}
		}
	}
	return out
}

// modelFromWorkflow pulls the classifier model recorded by the
// classification steps.
func modelFromWorkflow(workflow map[string]any) string {
	state, ok := workflow[workflowClassifyKey].(map[string]any)
	if !ok {
		return ""
	}
	model, _ := state["model"].(string)
	return model
}
