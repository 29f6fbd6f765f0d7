package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	GeminiName    = "gemini"
	GeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// GeminiClient implements ModelClient using the Generative Language API.
// PDFs are uploaded through the media endpoint and referenced as file_data
// parts. When a schema is present, the response is constrained server-side
// via generationConfig.responseJsonSchema.
type GeminiClient struct {
	model      string
	apiKey     string
	system     string
	params     GenerationParams
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg Config) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w for %s", ErrMissingAPIKey, GeminiName)
	}
	if cfg.Params.MaxTokens == 0 {
		cfg.Params.MaxTokens = 4096
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = GeminiBaseURL
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

	return &GeminiClient{
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
func (c *GeminiClient) Name() string {
	return GeminiName
}

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string {
	return c.model
}

// Query uploads the attachments and sends one generateContent request.
func (c *GeminiClient) Query(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	parts := make([]geminiPart, 0, len(req.Files)+1)
	for _, path := range req.Files {
		uri, err := c.uploadFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}
		parts = append(parts, geminiPart{
			FileData: &geminiFileData{MimeType: "application/pdf", FileURI: uri},
		})
	}
	parts = append(parts, geminiPart{Text: req.Prompt})

	genCfg := geminiGenerationConfig{
		Temperature:     c.params.Temperature,
		TopP:            c.params.TopP,
		TopK:            c.params.TopK,
		MaxOutputTokens: c.params.MaxTokens,
	}
	if len(req.Schema) > 0 {
		genCfg.ResponseMimeType = "application/json"
		genCfg.ResponseJSONSchema = req.Schema
	}

	genReq := geminiGenerateRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: parts},
		},
		GenerationConfig: &genCfg,
	}
	if c.system != "" {
		genReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: c.system}},
		}
	}

	attempts := 0
	var genResp *geminiGenerateResponse
	err := doWithRetry(ctx, c.maxRetries, c.retryDelay, func() error {
		attempts++
		var err error
		genResp, err = c.generateContent(ctx, &genReq)
		return err
	})
	if err != nil {
		return nil, err
	}

	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrContentRejected, genResp.PromptFeedback.BlockReason)
	}
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	text := ""
	for _, part := range genResp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in response (finish_reason: %s)",
			genResp.Candidates[0].FinishReason)
	}

	result := &QueryResult{
		Content:       text,
		Provider:      GeminiName,
		ModelUsed:     c.model,
		RequestID:     requestID,
		Attempts:      attempts,
		ExecutionTime: time.Since(start),
	}
	if genResp.UsageMetadata != nil {
		result.PromptTokens = genResp.UsageMetadata.PromptTokenCount
		result.CompletionTokens = genResp.UsageMetadata.CandidatesTokenCount
		result.TotalTokens = genResp.UsageMetadata.TotalTokenCount
	}

	if parsed, err := ParseStructuredJSON(text); err == nil {
		result.ParsedJSON = parsed
	}

	return result, nil
}

// uploadFile uploads a PDF via the raw media upload endpoint and returns the
// file URI used in file_data parts.
func (c *GeminiClient) uploadFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var uploaded geminiFileResponse
	err = doWithRetry(ctx, c.maxRetries, c.retryDelay, func() error {
		url := fmt.Sprintf("%s/upload/v1beta/files?key=%s", c.baseURL, c.apiKey)
		httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/pdf")
		httpReq.Header.Set("X-Goog-Upload-Protocol", "raw")

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
	if uploaded.File.URI == "" {
		return "", fmt.Errorf("upload response missing file uri")
	}
	return uploaded.File.URI, nil
}

// generateContent sends one generateContent request.
func (c *GeminiClient) generateContent(ctx context.Context, req *geminiGenerateRequest) (*geminiGenerateResponse, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var genResp geminiGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &genResp, nil
}

func (c *GeminiClient) do(req *http.Request) ([]byte, error) {
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
		return nil, newAPIError(GeminiName, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// Generative Language API types

type geminiGenerateRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text     string          `json:"text,omitempty"`
	FileData *geminiFileData `json:"fileData,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type geminiGenerationConfig struct {
	Temperature        *float64        `json:"temperature,omitempty"`
	TopP               *float64        `json:"topP,omitempty"`
	TopK               *int            `json:"topK,omitempty"`
	MaxOutputTokens    int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType   string          `json:"responseMimeType,omitempty"`
	ResponseJSONSchema json.RawMessage `json:"responseJsonSchema,omitempty"`
}

type geminiFileResponse struct {
	File struct {
		Name     string `json:"name"`
		URI      string `json:"uri"`
		MimeType string `json:"mimeType"`
	} `json:"file"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

// Verify interface
var _ ModelClient = (*GeminiClient)(nil)
