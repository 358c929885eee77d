package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/parksorry96/mathhub/internal/storage"
)

// Progress milestones for the submission phase.
const (
	progressAccepted  = 2.0
	progressSubmitted = 8.0
)

// presignTTL is how long a presigned source URL stays valid for the
// provider's fetch.
const presignTTL = time.Hour

// Submitter sends a document to the OCR provider.
type Submitter interface {
	Name() string
	SubmitPDF(ctx context.Context, documentURL string) (string, error)
}

// Presigner produces a time-limited GET URL for a stored object.
type Presigner interface {
	PresignGet(objectKey string, expires time.Duration) (string, error)
}

// Submit resolves the job's document to a provider-fetchable URL and
// submits it. A job that already holds a provider job id is rejected with
// ErrAlreadySubmitted; legacy upload:// references fail with
// ErrUnsupportedSource before any provider call.
func (m *Manager) Submit(ctx context.Context, jobID string, provider Submitter, presigner Presigner) (*Record, error) {
	rec, err := m.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec.ProviderJobID != "" {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubmitted, rec.ProviderJobID)
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: job is %s", ErrInvalidTransition, rec.Status)
	}

	doc, err := m.GetDocument(ctx, rec.DocumentID)
	if err != nil {
		return nil, err
	}

	documentURL, err := resolveSourceURL(doc.StorageKey, presigner)
	if err != nil {
		return nil, err
	}

	if err := m.SetStatus(ctx, jobID, StatusUploading, "", ""); err != nil {
		return nil, err
	}
	if err := m.SetProgress(ctx, jobID, progressAccepted); err != nil {
		return nil, err
	}

	providerJobID, err := provider.SubmitPDF(ctx, documentURL)
	if err != nil {
		submitErr := fmt.Errorf("provider submit failed: %w", err)
		if statusErr := m.SetStatus(ctx, jobID, StatusFailed, "SUBMIT_ERROR", submitErr.Error()); statusErr != nil {
			m.logger.Warn("failed to record submit failure", "id", jobID, "error", statusErr)
		}
		return nil, submitErr
	}

	if err := m.SetProviderJobID(ctx, jobID, providerJobID); err != nil {
		return nil, err
	}
	if err := m.SetStatus(ctx, jobID, StatusProcessing, "", ""); err != nil {
		return nil, err
	}
	if err := m.SetProgress(ctx, jobID, progressSubmitted); err != nil {
		return nil, err
	}

	m.logger.Info("job submitted", "id", jobID,
		"provider", provider.Name(), "provider_job_id", providerJobID)
	return m.Get(ctx, jobID)
}

// resolveSourceURL turns a document reference into a URL the provider can
// fetch: http(s) URLs pass through, s3:// keys are presigned, anything
// else (notably legacy upload:// references) is rejected.
func resolveSourceURL(ref string, presigner Presigner) (string, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref, nil
	case strings.HasPrefix(ref, storage.Scheme+"://"):
		if presigner == nil {
			return "", fmt.Errorf("%w: no storage configured for %s", ErrUnsupportedSource, ref)
		}
		_, objectKey, err := storage.ParseStorageKey(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, ref)
		}
		url, err := presigner.PresignGet(objectKey, presignTTL)
		if err != nil {
			return "", fmt.Errorf("failed to presign source: %w", err)
		}
		return url, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSource, ref)
	}
}
