package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/time/rate"

	"github.com/kirillkom/news-curator/internal/core/domain"
	"github.com/kirillkom/news-curator/internal/infrastructure/resilience"
)

const (
	apiVersion           = "2023-06-01"
	structuredOutputBeta = "structured-outputs-2025-11-13"
	defaultMaxTokens     = 1024
)

type Config struct {
	BaseURL           string
	APIKey            string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	Executor          *resilience.Executor
}

// Client talks to the Anthropic messages API with structured JSON output.
// Every call is rate-limited, retried with backoff, and schema-validated
// before the text is handed back to a stage.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
}

func New(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	executor := cfg.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// CompletionRequest is one structured-output evaluation request. Schema is
// the compiled validator applied to the response text; RawSchema is the same
// schema as sent to the service.
type CompletionRequest struct {
	Operation string
	Model     string
	System    string
	Prompt    string
	MaxTokens int
	Schema    *gojsonschema.Schema
	RawSchema json.RawMessage
}

// Completion carries the validated response text plus the metrics of the
// successful attempt only; failed attempts never leak into latency or
// token counts.
type Completion struct {
	Text      string
	TokensIn  int
	TokensOut int
	LatencyMS int64
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := messagesRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: 0,
		System:      req.System,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	}
	if len(req.RawSchema) > 0 {
		body.OutputFormat = &outputFormat{Type: "json_schema", Schema: req.RawSchema}
	}

	var out Completion
	call := func(callCtx context.Context) error {
		if err := c.limiter.Wait(callCtx); err != nil {
			return err
		}

		start := time.Now()
		var resp messagesResponse
		if err := c.postJSON(callCtx, "/v1/messages", body, &resp, req.Operation); err != nil {
			return err
		}
		latency := time.Since(start).Milliseconds()

		text, err := resp.text()
		if err != nil {
			return domain.WrapError(domain.ErrSchemaInvalid, req.Operation, err)
		}
		if req.Schema != nil {
			if err := validateAgainstSchema(req.Schema, text); err != nil {
				return domain.WrapError(domain.ErrSchemaInvalid, req.Operation, err)
			}
		}

		out = Completion{
			Text:      text,
			TokensIn:  resp.Usage.InputTokens,
			TokensOut: resp.Usage.OutputTokens,
			LatencyMS: latency,
		}
		return nil
	}

	if err := c.executor.Execute(ctx, req.Operation, call, classifyAnthropicError); err != nil {
		return Completion{}, wrapTemporaryIfNeeded(req.Operation, err)
	}
	return out, nil
}

func validateAgainstSchema(schema *gojsonschema.Schema, text string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		return fmt.Errorf("validate response: %w", err)
	}
	if result.Valid() {
		return nil
	}
	descs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		descs = append(descs, desc.String())
	}
	return fmt.Errorf("response does not match stage schema: %s", strings.Join(descs, "; "))
}
