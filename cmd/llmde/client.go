package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmde/llmde/internal/config"
	"github.com/llmde/llmde/internal/prompts"
	"github.com/llmde/llmde/internal/providers"
)

// modelFlags is the flag set shared by the prompt and run commands. The
// sampling parameters distinguish "not set" from "set to zero" through
// cobra's Changed tracking, so a flag left alone never overrides the
// provider's server-side default.
type modelFlags struct {
	model       string
	apiKey      string
	system      string
	temperature float64
	topP        float64
	topK        int
	maxTokens   int
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", "", "model identifier (claude-* or gemini-*; default from config)")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key (default from config / environment)")
	cmd.Flags().StringVar(&f.system, "system-instruction", "", "system instruction: built-in name or file path")
	cmd.Flags().Float64Var(&f.temperature, "temperature", 0, "sampling temperature (0.0-1.0)")
	cmd.Flags().Float64Var(&f.topP, "top-p", 0, "nucleus sampling cutoff (0.0-1.0)")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "top-k sampling cutoff")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum response tokens")
}

// buildClient resolves flags against config defaults and constructs the
// model client. Generation parameters are fixed here so every call in a
// batch runs with identical settings.
func (f *modelFlags) buildClient(cmd *cobra.Command, cfg *config.Config) (providers.ModelClient, error) {
	model := f.model
	if model == "" {
		model = cfg.Defaults.Model
	}
	if model == "" {
		return nil, fmt.Errorf("no model specified (use --model or set defaults.model in config)")
	}

	provider, err := providers.ProviderForModel(model)
	if err != nil {
		return nil, err
	}

	apiKey := f.apiKey
	if apiKey == "" {
		apiKey = cfg.ResolveAPIKey(provider)
	}

	system := ""
	if f.system != "" {
		system, err = prompts.ResolveSystem(f.system)
		if err != nil {
			return nil, err
		}
	}

	params := providers.GenerationParams{MaxTokens: cfg.Defaults.MaxTokens}
	if cmd.Flags().Changed("temperature") {
		params.Temperature = &f.temperature
	} else {
		temp := cfg.Defaults.Temperature
		params.Temperature = &temp
	}
	if cmd.Flags().Changed("top-p") {
		params.TopP = &f.topP
	}
	if cmd.Flags().Changed("top-k") {
		params.TopK = &f.topK
	}
	if cmd.Flags().Changed("max-tokens") {
		params.MaxTokens = f.maxTokens
	}

	return providers.ForModel(model, providers.Config{
		APIKey:     apiKey,
		System:     system,
		Params:     params,
		Timeout:    time.Duration(cfg.Defaults.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Defaults.MaxRetries,
	})
}
