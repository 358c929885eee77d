// Package ocr talks to a Mathpix-compatible PDF OCR service and normalizes
// its responses into page records the rest of the pipeline consumes.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	MathpixName    = "mathpix"
	MathpixBaseURL = "https://api.mathpix.com/v3"
)

// Sentinel errors distinguishing retryable provider failures from dead ends.
var (
	// ErrProviderTransient marks failures worth retrying (rate limits,
	// 5xx, network errors).
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderTerminal marks failures that will not succeed on retry
	// (bad credentials, invalid document, 4xx).
	ErrProviderTerminal = errors.New("terminal provider error")
)

// Config holds settings for the Mathpix client.
type Config struct {
	AppID   string
	AppKey  string
	BaseURL string
	Timeout time.Duration
	// MaxRetries bounds transparent retries of transient failures (default: 3).
	MaxRetries int
	// RetryDelayBase is the base for exponential backoff (default: 2s).
	RetryDelayBase time.Duration
}

// Client is a Mathpix PDF OCR API client.
type Client struct {
	appID          string
	appKey         string
	baseURL        string
	maxRetries     int
	retryDelayBase time.Duration
	client         *http.Client
}

// NewClient creates a new Mathpix client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = MathpixBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase == 0 {
		cfg.RetryDelayBase = 2 * time.Second
	}
	return &Client{
		appID:          cfg.AppID,
		appKey:         cfg.AppKey,
		baseURL:        cfg.BaseURL,
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		client:         &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return MathpixName
}

// SubmitPDF submits a document by URL for OCR processing and returns the
// provider's job id.
func (c *Client) SubmitPDF(ctx context.Context, documentURL string) (string, error) {
	reqBody := map[string]any{
		"url": documentURL,
		"conversion_formats": map[string]any{
			"md": true,
		},
		"math_inline_delimiters": []string{"$", "$"},
		"rm_spaces":              true,
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/pdf", reqBody)
	if err != nil {
		return "", err
	}

	id := ProviderJobID(raw)
	if id == "" {
		return "", fmt.Errorf("%w: no job id in submit response", ErrProviderTerminal)
	}
	return id, nil
}

// Status fetches the raw processing status for a provider job.
func (c *Client) Status(ctx context.Context, providerJobID string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodGet, "/pdf/"+providerJobID, nil)
}

// Lines fetches line-level OCR detail, including geometry, for a
// completed provider job.
func (c *Client) Lines(ctx context.Context, providerJobID string) (map[string]any, error) {
	return c.doJSON(ctx, http.MethodGet, "/pdf/"+providerJobID+"/lines.json", nil)
}

// ProviderJobID extracts the job identifier from a provider response,
// whichever of the known key names it came under.
func ProviderJobID(raw map[string]any) string {
	for _, key := range []string{"pdf_id", "id", "job_id", "request_id"} {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// doJSON performs a request with auth headers and transient-failure
// retries, decoding the JSON response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var result map[string]any

	err := retry.Do(
		func() error {
			raw, err := c.doOnce(ctx, method, path, body)
			if err != nil {
				return err
			}
			result = raw
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelayBase),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrProviderTransient)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("app_id", c.appID)
	req.Header.Set("app_key", c.appKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrProviderTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderTransient, resp.StatusCode, truncate(respBody))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderTerminal, resp.StatusCode, truncate(respBody))
	}

	var raw map[string]any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %v", ErrProviderTerminal, err)
	}
	return raw, nil
}

func truncate(b []byte) string {
	const limit = 512
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
