package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	AIName         = "openai"
	defaultAIModel = "gpt-4o-mini"
)

const systemPrompt = `You classify Korean high-school math exam problems.
For each problem, decide:
- subject_code: one of MATH_I, MATH_II, PROB_STATS, CALCULUS, GEOMETRY
- points: 2 (easy), 3 (standard), 4 (hard)
- confidence: 0-100, how certain you are of the subject
- is_valid: whether the text is a complete, answerable problem statement
- answer: the answer if it is stated in the text, otherwise ""
- unit_keywords: curriculum keywords found in the statement
Respond ONLY with JSON matching {"results":[{"key","subject_code","points","confidence","is_valid","answer","unit_keywords"}]}.
Return exactly one result per input, echoing each input's key.`

// AIConfig holds configuration for the AI classifier.
type AIConfig struct {
	APIKey     string
	Model      string        // "gpt-4o-mini" (default)
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// AIClassifier classifies candidate batches through the OpenAI chat API and
// validates the response against the embedded result schema. Items the model
// skips or mangles fall back to the keyword heuristic so every input gets a
// result.
type AIClassifier struct {
	model    string
	client   openai.Client
	schema   *jsonschema.Schema
	fallback Heuristic
	logger   *slog.Logger
}

// NewAIClassifier creates a classifier backed by the OpenAI SDK.
func NewAIClassifier(cfg AIConfig) (*AIClassifier, error) {
	if cfg.Model == "" {
		cfg.Model = defaultAIModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	return &AIClassifier{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
		schema: schema,
		logger: cfg.Logger,
	}, nil
}

func (c *AIClassifier) Name() string { return AIName }

// Model returns the chat model the classifier sends batches to.
func (c *AIClassifier) Model() string { return c.model }

// Classify sends the batch in a single request. On transport failure or an
// unusable response the whole batch is classified heuristically; on a
// partial response only the missing items are.
func (c *AIClassifier) Classify(ctx context.Context, items []Item) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}

	byKey, err := c.classifyBatch(ctx, items)
	if err != nil {
		c.logger.Warn("ai classification failed, using heuristic", "items", len(items), "error", err)
		return c.fallback.Classify(ctx, items)
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		if r, ok := byKey[item.Key]; ok {
			results = append(results, r)
			continue
		}
		c.logger.Warn("ai response missing item, using heuristic", "key", item.Key)
		results = append(results, c.fallback.classifyOne(item))
	}
	return results, nil
}

func (c *AIClassifier) classifyBatch(ctx context.Context, items []Item) (map[string]Result, error) {
	payload, err := json.Marshal(map[string]any{"problems": items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch: %w", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(payload)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	parsed, err := parseStructuredJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(parsed, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode classification JSON: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("classification output does not match schema: %w", err)
	}

	var batch struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(parsed, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode classification results: %w", err)
	}

	byKey := make(map[string]Result, len(batch.Results))
	for _, r := range batch.Results {
		r.Source = SourceAI
		byKey[r.Key] = Normalize(r)
	}
	return byKey, nil
}

var _ Classifier = (*AIClassifier)(nil)
