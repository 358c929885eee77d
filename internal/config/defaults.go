package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// DefaultEntries returns the default configuration entries.
// These are seeded into DefraDB on first run.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// OCR Provider
		// ===================
		{
			Key:         "providers.ocr.mathpix.type",
			Value:       "mathpix",
			Description: "OCR provider type",
		},
		{
			Key:         "providers.ocr.mathpix.app_id",
			Value:       "${MATHPIX_APP_ID}",
			Description: "Mathpix app id (uses environment variable)",
		},
		{
			Key:         "providers.ocr.mathpix.app_key",
			Value:       "${MATHPIX_APP_KEY}",
			Description: "Mathpix app key (uses environment variable)",
		},
		{
			Key:         "providers.ocr.mathpix.enabled",
			Value:       true,
			Description: "Whether the Mathpix OCR provider is enabled",
		},
		{
			Key:         "providers.ocr.mathpix.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for OCR requests",
		},
		{
			Key:         "providers.ocr.mathpix.max_retries",
			Value:       3,
			Description: "Maximum retry attempts for transient OCR failures",
		},

		// ===================
		// AI Classifier
		// ===================
		{
			Key:         "providers.ai.openai.type",
			Value:       "openai",
			Description: "AI classification provider type",
		},
		{
			Key:         "providers.ai.openai.model",
			Value:       "gpt-4o-mini",
			Description: "Default model for problem classification",
		},
		{
			Key:         "providers.ai.openai.api_key",
			Value:       "${OPENAI_API_KEY}",
			Description: "OpenAI API key (uses environment variable)",
		},
		{
			Key:         "providers.ai.openai.enabled",
			Value:       true,
			Description: "Whether the AI classifier is enabled",
		},

		// ===================
		// Object Storage
		// ===================
		{
			Key:         "storage.bucket",
			Value:       "mathhub-scans",
			Description: "S3 bucket holding scanned documents and extracted assets",
		},
		{
			Key:         "storage.region",
			Value:       "ap-northeast-2",
			Description: "S3 region",
		},
		{
			Key:         "storage.asset_prefix",
			Value:       "ocr-problem-assets",
			Description: "Object-key prefix for extracted problem assets",
		},
		{
			Key:         "storage.upload_prefix",
			Value:       "ocr-uploads",
			Description: "Object-key prefix for presigned PDF uploads",
		},

		// ===================
		// Pipeline Defaults
		// ===================
		{
			Key:         "defaults.min_confidence",
			Value:       60,
			Description: "Minimum classification confidence for materialization (0-100)",
		},
		{
			Key:         "defaults.classify_batch_size",
			Value:       10,
			Description: "Candidates classified per step",
		},
		{
			Key:         "defaults.sync_poll_attempts",
			Value:       60,
			Description: "Maximum provider status polls per sync",
		},
		{
			Key:         "defaults.sync_poll_seconds",
			Value:       5,
			Description: "Delay between provider status polls",
		},
		{
			Key:         "defaults.min_axis_artifacts",
			Value:       3,
			Description: "Minimum axis-noise lines before the cleanup filter engages",
		},
		{
			Key:         "defaults.curriculum_code",
			Value:       "2015",
			Description: "Curriculum revision problems are filed under",
		},
	}
}

// SeedDefaults seeds default configuration entries into the store.
// This is idempotent - existing entries are not overwritten.
func SeedDefaults(ctx context.Context, store Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultEntries()
	seeded := 0
	skipped := 0

	for _, entry := range defaults {
		// Check if key already exists
		existing, err := store.Get(ctx, entry.Key)
		if err != nil {
			return fmt.Errorf("failed to check key %q: %w", entry.Key, err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Create the entry
		if err := store.Set(ctx, entry.Key, entry.Value, entry.Description); err != nil {
			return fmt.Errorf("failed to seed key %q: %w", entry.Key, err)
		}
		seeded++
	}

	if seeded > 0 {
		logger.Info("seeded default config entries", "seeded", seeded, "skipped", skipped)
	}
	return nil
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// ResetToDefault resets a config key to its default value.
// Returns ErrNoDefault if no default exists for the key.
func ResetToDefault(ctx context.Context, store Store, key string) error {
	def := GetDefault(key)
	if def == nil {
		return fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return store.Set(ctx, key, def.Value, def.Description)
}
