package config

// Config is the top-level llmde configuration.
type Config struct {
	// APIKeys maps provider names to API keys (supports ${ENV_VAR} syntax).
	APIKeys map[string]string `mapstructure:"api_keys" yaml:"api_keys"`

	// Defaults holds generation and batch parameters.
	Defaults Defaults `mapstructure:"defaults" yaml:"defaults"`
}

// Defaults holds default generation and batch parameters.
// Generation parameters are fixed at client construction so that a batch run
// is reproducible end to end.
type Defaults struct {
	// Model is the default model identifier (claude-* or gemini-*).
	Model string `mapstructure:"model" yaml:"model"`

	// Temperature for token selection. 0.0 for deterministic extraction.
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// MaxTokens caps response length. Set high enough for the JSON payload.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`

	// RateLimitRPM paces batch model calls (requests per minute).
	RateLimitRPM int `mapstructure:"rate_limit_rpm" yaml:"rate_limit_rpm"`

	// MaxRetries for rate-limited or server-errored API calls.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// TimeoutSeconds is the HTTP timeout for a single model call.
	// Large PDFs can take minutes to process.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIKeys: map[string]string{
			"anthropic": "${LLMDE_CLAUDE_API_KEY}",
			"gemini":    "${LLMDE_GEMINI_API_KEY}",
		},
		Defaults: Defaults{
			Model:          "gemini-2.0-flash",
			Temperature:    0.0,
			MaxTokens:      4096,
			RateLimitRPM:   2,
			MaxRetries:     3,
			TimeoutSeconds: 300,
		},
	}
}
