package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const MockName = "mock"

// MockClient is a ModelClient for testing.
type MockClient struct {
	// Configurable behavior
	ModelName    string
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// ResponseFor overrides ResponseText per prompt name when the prompt
	// text contains the key. Useful for multi-prompt batch tests.
	ResponseFor map[string]string

	mu       sync.Mutex
	requests []QueryRequest

	requestCount atomic.Int64
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ModelName:    "mock-extractor",
		Latency:      time.Millisecond,
		ResponseText: `{"mock": true}`,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockName
}

// Model returns the configured model identifier.
func (c *MockClient) Model() string {
	return c.ModelName
}

// Query returns the scripted response.
func (c *MockClient) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	text := c.ResponseText
	for key, resp := range c.ResponseFor {
		if strings.Contains(req.Prompt, key) {
			text = resp
			break
		}
	}

	result := &QueryResult{
		Content:       text,
		Provider:      MockName,
		ModelUsed:     c.ModelName,
		RequestID:     req.RequestID,
		Attempts:      1,
		ExecutionTime: time.Since(start),

		PromptTokens:     len(req.Prompt) / 4,
		CompletionTokens: len(text) / 4,
	}
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	if result.RequestID == "" {
		result.RequestID = fmt.Sprintf("mock-%d", count)
	}

	if parsed, err := ParseStructuredJSON(text); err == nil {
		result.ParsedJSON = parsed
	}

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of all recorded requests.
func (c *MockClient) Requests() []QueryRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]QueryRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset resets the request counter and recorded requests.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ ModelClient = (*MockClient)(nil)
