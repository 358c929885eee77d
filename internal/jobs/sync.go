package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/parksorry96/mathhub/internal/ocr"
)

// progressSynced is the floor once page content has been persisted.
const progressSynced = 25.0

// StatusProvider reads processing state and page detail from the OCR
// provider.
type StatusProvider interface {
	Status(ctx context.Context, providerJobID string) (map[string]any, error)
	Lines(ctx context.Context, providerJobID string) (map[string]any, error)
}

// Sync polls the provider once and applies the result: page rows are
// upserted by (job, page_no), job status/progress/error updated. Safe to
// call repeatedly. Results for a job cancelled in the meantime are
// discarded.
func (m *Manager) Sync(ctx context.Context, jobID string, provider StatusProvider) (*Record, error) {
	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusCancelled {
		return rec, nil
	}
	if rec.ProviderJobID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotSubmitted, jobID)
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	raw, err := provider.Status(ctx, rec.ProviderJobID)
	if err != nil {
		return nil, fmt.Errorf("provider status failed: %w", err)
	}

	st := ocr.MapJobStatus(raw)
	pages := ocr.ExtractPages(raw)

	if st.State == "completed" {
		detail, err := provider.Lines(ctx, rec.ProviderJobID)
		if err != nil {
			return nil, fmt.Errorf("provider detail failed: %w", err)
		}
		pages = ocr.MergePages(pages, ocr.ExtractPages(detail))
	}

	// The job may have been cancelled while the provider calls were in
	// flight; discard the results in that case.
	rec, err = m.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusCancelled {
		m.logger.Info("sync results discarded for cancelled job", "id", jobID)
		return rec, nil
	}

	for _, page := range pages {
		if err := m.UpsertPage(ctx, jobID, page); err != nil {
			return nil, err
		}
	}

	switch st.State {
	case "completed":
		if err := m.SetProgress(ctx, jobID, max(progressSynced, float64(st.Progress))); err != nil {
			return nil, err
		}
		if err := m.SetStatus(ctx, jobID, StatusCompleted, "", ""); err != nil {
			return nil, err
		}
	case "failed":
		if err := m.SetStatus(ctx, jobID, StatusFailed, "PROVIDER_ERROR", st.Error); err != nil {
			return nil, err
		}
	default:
		if err := m.SetProgress(ctx, jobID, syncProgress(st, len(pages))); err != nil {
			return nil, err
		}
	}

	return m.Get(ctx, jobID)
}

// SyncOptions bounds the poll loop.
type SyncOptions struct {
	// Attempts is the maximum number of polls (default 60).
	Attempts int
	// Interval is the delay between polls (default 5s).
	Interval time.Duration
}

// SyncUntilDone polls Sync until the job reaches a terminal status.
// Exhausting the attempt budget surfaces ErrSyncTimeout without marking
// the job failed; the provider may still finish later.
func (m *Manager) SyncUntilDone(ctx context.Context, jobID string, provider StatusProvider, opts SyncOptions) (*Record, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 60
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}

	var rec *Record
	stillRunning := errors.New("job still running")

	err := retry.Do(
		func() error {
			var err error
			rec, err = m.Sync(ctx, jobID, provider)
			if err != nil {
				return err
			}
			if !rec.Status.Terminal() {
				return stillRunning
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(opts.Attempts)),
		retry.Delay(opts.Interval),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, stillRunning) || errors.Is(err, ocr.ErrProviderTransient)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, stillRunning) || errors.Is(err, ocr.ErrProviderTransient) {
			return rec, fmt.Errorf("%w: after %d attempts", ErrSyncTimeout, opts.Attempts)
		}
		return rec, err
	}
	return rec, nil
}

// syncProgress derives a percentage for a still-processing job: the
// provider's own figure when present, otherwise its page counters.
func syncProgress(st ocr.JobStatus, pagesSynced int) float64 {
	if pagesSynced > 0 {
		return max(progressSynced, float64(st.Progress))
	}
	if st.Progress > 0 {
		return float64(st.Progress)
	}
	if st.NumPages > 0 {
		return 100 * float64(st.NumPagesCompleted) / float64(st.NumPages)
	}
	return 0
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
