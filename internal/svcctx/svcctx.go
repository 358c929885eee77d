// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/parksorry96/mathhub/internal/classify"
	"github.com/parksorry96/mathhub/internal/config"
	"github.com/parksorry96/mathhub/internal/curriculum"
	"github.com/parksorry96/mathhub/internal/defra"
	"github.com/parksorry96/mathhub/internal/home"
	"github.com/parksorry96/mathhub/internal/jobs"
	"github.com/parksorry96/mathhub/internal/ocr"
	"github.com/parksorry96/mathhub/internal/problems"
	"github.com/parksorry96/mathhub/internal/storage"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	DefraClient  *defra.Client
	DefraSink    *defra.Sink
	JobManager   *jobs.Manager
	OCRClient    *ocr.Client
	Classifier   classify.Classifier
	Storage      *storage.Client
	Problems     *problems.Repository
	Materializer *problems.Materializer
	Curriculum   *curriculum.Directory
	ConfigStore  config.Store
	Logger       *slog.Logger
	Home         *home.Dir
	UploadPrefix string
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// DefraClientFrom extracts the DefraDB client from context.
func DefraClientFrom(ctx context.Context) *defra.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraClient
	}
	return nil
}

// DefraSinkFrom extracts the DefraDB write sink from context.
func DefraSinkFrom(ctx context.Context) *defra.Sink {
	if s := ServicesFrom(ctx); s != nil {
		return s.DefraSink
	}
	return nil
}

// JobManagerFrom extracts the job manager from context.
func JobManagerFrom(ctx context.Context) *jobs.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.JobManager
	}
	return nil
}

// OCRClientFrom extracts the OCR provider client from context.
func OCRClientFrom(ctx context.Context) *ocr.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.OCRClient
	}
	return nil
}

// ClassifierFrom extracts the candidate classifier from context.
func ClassifierFrom(ctx context.Context) classify.Classifier {
	if s := ServicesFrom(ctx); s != nil {
		return s.Classifier
	}
	return nil
}

// StorageFrom extracts the object storage client from context.
func StorageFrom(ctx context.Context) *storage.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Storage
	}
	return nil
}

// ProblemsFrom extracts the problem repository from context.
func ProblemsFrom(ctx context.Context) *problems.Repository {
	if s := ServicesFrom(ctx); s != nil {
		return s.Problems
	}
	return nil
}

// MaterializerFrom extracts the problem materializer from context.
func MaterializerFrom(ctx context.Context) *problems.Materializer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Materializer
	}
	return nil
}

// CurriculumFrom extracts the curriculum directory from context.
func CurriculumFrom(ctx context.Context) *curriculum.Directory {
	if s := ServicesFrom(ctx); s != nil {
		return s.Curriculum
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// UploadPrefixFrom extracts the configured upload key prefix from context.
func UploadPrefixFrom(ctx context.Context) string {
	if s := ServicesFrom(ctx); s != nil {
		return s.UploadPrefix
	}
	return ""
}

// ConfigStoreFrom extracts the config store from context.
func ConfigStoreFrom(ctx context.Context) config.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigStore
	}
	return nil
}
