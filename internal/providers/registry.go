package providers

import (
	"fmt"
	"strings"
)

// providerForModel maps a model-name prefix to its provider.
var providerForModel = []struct {
	prefix   string
	provider string
}{
	{"claude", AnthropicName},
	{"gemini", GeminiName},
	{"mock", MockName},
}

// ProviderForModel returns the provider name for a model identifier
// (e.g. "claude-sonnet-4-5-20250929" -> "anthropic").
func ProviderForModel(model string) (string, error) {
	lower := strings.ToLower(model)
	for _, m := range providerForModel {
		if strings.HasPrefix(lower, m.prefix) {
			return m.provider, nil
		}
	}
	return "", fmt.Errorf("unknown model: %s (expected prefix: %s)", model, knownPrefixes())
}

// ForModel constructs the ModelClient for a model identifier.
func ForModel(model string, cfg Config) (ModelClient, error) {
	provider, err := ProviderForModel(model)
	if err != nil {
		return nil, err
	}
	cfg.Model = model

	switch provider {
	case AnthropicName:
		return NewAnthropicClient(cfg)
	case GeminiName:
		return NewGeminiClient(cfg)
	case MockName:
		c := NewMockClient()
		c.ModelName = model
		return c, nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

func knownPrefixes() string {
	prefixes := make([]string, len(providerForModel))
	for i, m := range providerForModel {
		prefixes[i] = m.prefix
	}
	return strings.Join(prefixes, ", ")
}
