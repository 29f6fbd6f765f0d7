package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestPDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("%PDF-1.7\nfake body"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnthropicClient_Query(t *testing.T) {
	t.Run("upload then message", func(t *testing.T) {
		var capturedReq anthropicMessagesRequest
		uploads := 0

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("x-api-key"); key != "test-key" {
				t.Errorf("unexpected api key: %s", key)
			}
			if beta := r.Header.Get("anthropic-beta"); beta != anthropicFilesBeta {
				t.Errorf("unexpected beta header: %s", beta)
			}

			switch r.URL.Path {
			case "/files":
				uploads++
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("failed to parse multipart: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{"id": "file_abc"})
			case "/messages":
				json.NewDecoder(r.Body).Decode(&capturedReq)
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"id":          "msg_1",
					"model":       "claude-sonnet-4-5",
					"stop_reason": "end_turn",
					"content": []map[string]string{
						{"type": "text", "text": `{"title": "A Trial"}`},
					},
					"usage": map[string]int{"input_tokens": 120, "output_tokens": 30},
				})
			default:
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
		}))
		defer server.Close()

		client, err := NewAnthropicClient(Config{
			Model:   "claude-sonnet-4-5",
			APIKey:  "test-key",
			System:  "be precise",
			BaseURL: server.URL,
		})
		if err != nil {
			t.Fatalf("NewAnthropicClient() error = %v", err)
		}

		pdf := writeTestPDF(t, t.TempDir(), "paper.pdf")
		result, err := client.Query(context.Background(), &QueryRequest{
			Prompt: "Extract the title.",
			Files:  []string{pdf},
		})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}

		if uploads != 1 {
			t.Errorf("uploads = %d, want 1", uploads)
		}
		if result.Content != `{"title": "A Trial"}` {
			t.Errorf("Content = %q", result.Content)
		}
		if result.ParsedJSON == nil {
			t.Error("expected ParsedJSON to be set")
		}
		if result.TotalTokens != 150 {
			t.Errorf("TotalTokens = %d, want 150", result.TotalTokens)
		}

		// Request shape: document block first, then the prompt text.
		if capturedReq.System != "be precise" {
			t.Errorf("System = %q", capturedReq.System)
		}
		if len(capturedReq.Messages) != 1 {
			t.Fatalf("got %d messages, want 1", len(capturedReq.Messages))
		}
		content := capturedReq.Messages[0].Content
		if len(content) != 2 {
			t.Fatalf("got %d content blocks, want 2", len(content))
		}
		if content[0].Type != "document" || content[0].Source.FileID != "file_abc" {
			t.Errorf("unexpected document block: %+v", content[0])
		}
		if content[1].Type != "text" || content[1].Text != "Extract the title." {
			t.Errorf("unexpected text block: %+v", content[1])
		}
	})

	t.Run("invalid key surfaces without retry", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"message": "invalid x-api-key"}}`))
		}))
		defer server.Close()

		client, _ := NewAnthropicClient(Config{
			Model:      "claude-sonnet-4-5",
			APIKey:     "bad-key",
			BaseURL:    server.URL,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		})

		_, err := client.Query(context.Background(), &QueryRequest{Prompt: "hi"})
		if !errors.Is(err, ErrInvalidAPIKey) {
			t.Fatalf("expected ErrInvalidAPIKey, got %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1 (auth errors must not retry)", calls)
		}
	})

	t.Run("rate limit retries then surfaces", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
		}))
		defer server.Close()

		client, _ := NewAnthropicClient(Config{
			Model:      "claude-sonnet-4-5",
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		})

		_, err := client.Query(context.Background(), &QueryRequest{Prompt: "hi"})
		if !errors.Is(err, ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("server error retried until success", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"model":       "claude-sonnet-4-5",
				"stop_reason": "end_turn",
				"content":     []map[string]string{{"type": "text", "text": "ok"}},
				"usage":       map[string]int{"input_tokens": 1, "output_tokens": 1},
			})
		}))
		defer server.Close()

		client, _ := NewAnthropicClient(Config{
			Model:      "claude-sonnet-4-5",
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 5,
			RetryDelay: time.Millisecond,
		})

		result, err := client.Query(context.Background(), &QueryRequest{Prompt: "hi"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if result.Content != "ok" {
			t.Errorf("Content = %q", result.Content)
		}
		if result.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", result.Attempts)
		}
	})

	t.Run("refusal maps to content rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"model":       "claude-sonnet-4-5",
				"stop_reason": "refusal",
				"content":     []map[string]string{},
				"usage":       map[string]int{},
			})
		}))
		defer server.Close()

		client, _ := NewAnthropicClient(Config{
			Model:   "claude-sonnet-4-5",
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		_, err := client.Query(context.Background(), &QueryRequest{Prompt: "hi"})
		if !errors.Is(err, ErrContentRejected) {
			t.Fatalf("expected ErrContentRejected, got %v", err)
		}
	})
}

func TestNewAnthropicClient_Validation(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewAnthropicClient(Config{Model: "claude-sonnet-4-5"})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Fatalf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("bad temperature", func(t *testing.T) {
		temp := 1.5
		_, err := NewAnthropicClient(Config{
			Model:  "claude-sonnet-4-5",
			APIKey: "k",
			Params: GenerationParams{Temperature: &temp},
		})
		if err == nil {
			t.Fatal("expected error for temperature > 1.0")
		}
	})

	t.Run("bad top_k", func(t *testing.T) {
		topK := 0
		_, err := NewAnthropicClient(Config{
			Model:  "claude-sonnet-4-5",
			APIKey: "k",
			Params: GenerationParams{TopK: &topK},
		})
		if err == nil {
			t.Fatal("expected error for top_k < 1")
		}
	})
}
