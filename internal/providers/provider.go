// Package providers contains the hosted LLM clients used for extraction.
//
// Each provider wraps one hosted API behind the ModelClient interface:
// submit a prompt with PDF attachments, get text (or JSON) back. Generation
// parameters are fixed at construction so that every call in a batch run uses
// identical settings.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// ModelClient is the interface for a hosted extraction model.
type ModelClient interface {
	// Query sends a prompt with file attachments and returns the response.
	Query(ctx context.Context, req *QueryRequest) (*QueryResult, error)

	// Name returns the provider identifier (e.g., "anthropic").
	Name() string

	// Model returns the configured model identifier.
	Model() string
}

// GenerationParams control token sampling. Nil pointer fields mean "use the
// API default". For reproducible extraction use Temperature=0 and leave the
// rest unset.
type GenerationParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	MaxTokens   int      `json:"max_tokens"`
}

// Validate checks parameter ranges shared by both providers.
func (p GenerationParams) Validate() error {
	if p.Temperature != nil && (*p.Temperature < 0.0 || *p.Temperature > 1.0) {
		return fmt.Errorf("temperature must be between 0.0 and 1.0, got %v", *p.Temperature)
	}
	if p.TopP != nil && (*p.TopP < 0.0 || *p.TopP > 1.0) {
		return fmt.Errorf("top_p must be between 0.0 and 1.0, got %v", *p.TopP)
	}
	if p.TopK != nil && *p.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", *p.TopK)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", p.MaxTokens)
	}
	return nil
}

// Config holds the constructor settings shared by all providers.
type Config struct {
	Model  string
	APIKey string

	// System is the optional system instruction text.
	System string

	Params GenerationParams

	// Timeout for a single HTTP request (PDF uploads can be slow).
	Timeout time.Duration

	// Retry policy for rate-limited and server-errored calls.
	MaxRetries int
	RetryDelay time.Duration

	// BaseURL overrides the API endpoint (used in tests).
	BaseURL string
}

// QueryRequest is one extraction request.
type QueryRequest struct {
	// Prompt is the full markdown prompt text.
	Prompt string

	// Schema is an optional JSON schema for the expected response.
	// Providers that support response schemas enforce it server-side;
	// otherwise callers validate locally (see ValidateAgainstSchema).
	Schema json.RawMessage

	// Files are paths to PDF attachments.
	Files []string

	// RequestID tracks the call through logs and the call log.
	RequestID string
}

// QueryResult is the response for one extraction request.
type QueryResult struct {
	// Content is the raw text response.
	Content string `json:"content"`

	// ParsedJSON is set when the content parses as JSON (best effort).
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"`

	// Token counts as reported by the provider.
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID     string        `json:"request_id"`
	Attempts      int           `json:"attempts"`
	ExecutionTime time.Duration `json:"execution_time"`
}
