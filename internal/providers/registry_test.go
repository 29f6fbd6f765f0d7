package providers

import (
	"errors"
	"strings"
	"testing"
)

func TestProviderForModel(t *testing.T) {
	tests := []struct {
		model   string
		want    string
		wantErr bool
	}{
		{model: "claude-sonnet-4-5-20250929", want: AnthropicName},
		{model: "claude-opus-4-1", want: AnthropicName},
		{model: "gemini-2.0-flash", want: GeminiName},
		{model: "gemini-2.5-pro", want: GeminiName},
		{model: "mock-extractor", want: MockName},
		{model: "Claude-Sonnet-4-5", want: AnthropicName}, // case-insensitive
		{model: "gpt-4o", wantErr: true},
		{model: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := ProviderForModel(tt.model)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				if !strings.Contains(err.Error(), "unknown model") {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ProviderForModel() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestForModel(t *testing.T) {
	t.Run("anthropic", func(t *testing.T) {
		client, err := ForModel("claude-sonnet-4-5", Config{APIKey: "k"})
		if err != nil {
			t.Fatalf("ForModel() error = %v", err)
		}
		if client.Name() != AnthropicName {
			t.Errorf("Name() = %s", client.Name())
		}
		if client.Model() != "claude-sonnet-4-5" {
			t.Errorf("Model() = %s", client.Model())
		}
	})

	t.Run("gemini", func(t *testing.T) {
		client, err := ForModel("gemini-2.0-flash", Config{APIKey: "k"})
		if err != nil {
			t.Fatalf("ForModel() error = %v", err)
		}
		if client.Name() != GeminiName {
			t.Errorf("Name() = %s", client.Name())
		}
	})

	t.Run("mock needs no key", func(t *testing.T) {
		client, err := ForModel("mock-extractor", Config{})
		if err != nil {
			t.Fatalf("ForModel() error = %v", err)
		}
		if client.Name() != MockName {
			t.Errorf("Name() = %s", client.Name())
		}
		if client.Model() != "mock-extractor" {
			t.Errorf("Model() = %s", client.Model())
		}
	})

	t.Run("missing key surfaces", func(t *testing.T) {
		_, err := ForModel("claude-sonnet-4-5", Config{})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Fatalf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("unknown model", func(t *testing.T) {
		_, err := ForModel("llama-3", Config{APIKey: "k"})
		if err == nil {
			t.Fatal("expected error for unknown model")
		}
	})
}
