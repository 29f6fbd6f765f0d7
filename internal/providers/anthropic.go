package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	AnthropicName    = "anthropic"
	AnthropicBaseURL = "https://api.anthropic.com/v1"

	anthropicVersion   = "2023-06-01"
	anthropicFilesBeta = "files-api-2025-04-14"
)

// AnthropicClient implements ModelClient using the Anthropic Messages API.
// PDFs are uploaded through the Files API and referenced as document blocks.
type AnthropicClient struct {
	model      string
	apiKey     string
	system     string
	params     GenerationParams
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingAPIKey, AnthropicName)
	}
	if cfg.Params.MaxTokens == 0 {
		cfg.Params.MaxTokens = 4096
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = AnthropicBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &AnthropicClient{
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		system:     cfg.System,
		params:     cfg.Params,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the provider identifier.
func (c *AnthropicClient) Name() string {
	return AnthropicName
}

// Model returns the configured model identifier.
func (c *AnthropicClient) Model() string {
	return c.model
}

// Query uploads the attachments and sends one message request.
// The schema, when present, is enforced by local validation only; the
// Messages API has no response-schema parameter.
func (c *AnthropicClient) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	fileIDs := make([]string, 0, len(req.Files))
	for _, path := range req.Files {
		id, err := c.uploadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}
		fileIDs = append(fileIDs, id)
	}

	content := make([]anthropicContentBlock, 0, len(fileIDs)+1)
	for _, id := range fileIDs {
		content = append(content, anthropicContentBlock{
			Type:   "document",
			Source: &anthropicFileSource{Type: "file", FileID: id},
		})
	}
	content = append(content, anthropicContentBlock{Type: "text", Text: req.Prompt})

	msgReq := anthropicMessagesRequest{
		Model:       c.model,
		MaxTokens:   c.params.MaxTokens,
		System:      c.system,
		Temperature: c.params.Temperature,
		TopP:        c.params.TopP,
		TopK:        c.params.TopK,
		Messages: []anthropicMessage{
			{Role: "user", Content: content},
		},
	}

	attempts := 0
	var msgResp *anthropicMessagesResponse
	err := doWithRetry(ctx, c.maxRetries, c.retryDelay, func() error {
		attempts++
		var err error
		msgResp, err = c.createMessage(ctx, &msgReq)
		return err
	})
	if err != nil {
		return nil, err
	}

	if msgResp.StopReason == "refusal" {
		return nil, fmt.Errorf("%w: model refused to answer", ErrContentRejected)
	}

	text := ""
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in response (stop_reason: %s)", msgResp.StopReason)
	}

	result := &QueryResult{
		Content:          text,
		PromptTokens:     msgResp.Usage.InputTokens,
		CompletionTokens: msgResp.Usage.OutputTokens,
		TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		Provider:         AnthropicName,
		ModelUsed:        msgResp.Model,
		RequestID:        requestID,
		Attempts:         attempts,
		ExecutionTime:    time.Since(start),
	}

	if parsed, err := ParseStructuredJSON(text); err == nil {
		result.ParsedJSON = parsed
	}

	return result, nil
}

// uploadFile uploads a PDF through the Files API and returns the file ID.
func (c *AnthropicClient) uploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write multipart: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart: %w", err)
	}

	var uploaded anthropicFileResponse
	err = doWithRetry(ctx, c.maxRetries, c.retryDelay, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/files", bytes.NewReader(body.Bytes()))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", writer.FormDataContentType())
		c.setHeaders(httpReq)

		respBody, err := c.do(httpReq)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(respBody, &uploaded); err != nil {
			return fmt.Errorf("failed to unmarshal upload response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if uploaded.ID == "" {
		return "", fmt.Errorf("upload response missing file id")
	}
	return uploaded.ID, nil
}

// createMessage sends one Messages API request.
func (c *AnthropicClient) createMessage(ctx context.Context, req *anthropicMessagesRequest) (*anthropicMessagesResponse, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var msgResp anthropicMessagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &msgResp, nil
}

func (c *AnthropicClient) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("anthropic-beta", anthropicFilesBeta)
}

func (c *AnthropicClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(AnthropicName, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// Anthropic API types

type anthropicMessagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	TopK        *int               `json:"top_k,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type   string               `json:"type"`
	Text   string               `json:"text,omitempty"`
	Source *anthropicFileSource `json:"source,omitempty"`
}

type anthropicFileSource struct {
	Type   string `json:"type"` // "file"
	FileID string `json:"file_id"`
}

type anthropicFileResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

type anthropicMessagesResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ ModelClient = (*AnthropicClient)(nil)
