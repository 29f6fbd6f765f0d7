package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/llmde/llmde/internal/config"
	"github.com/llmde/llmde/internal/home"
	"github.com/llmde/llmde/version"
)

var (
	cfgFile  string
	homeDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "llmde",
	Short: "LLM-powered data extraction from research papers",
	Long: `llmde sends structured extraction prompts, with PDF papers attached,
to hosted LLM APIs (Anthropic Claude and Google Gemini) and persists
the JSON results.

It ships built-in prompts for randomized controlled trials:
  - Bibliographic metadata
  - Study methods and design
  - Participant characteristics
  - PEDro methodological quality scale

Single papers go through 'llmde prompt'; whole directories through
'llmde run', which resumes interrupted batches from where they stopped.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.llmde/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "llmde home directory (default: ~/.llmde)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)

	// Set up logging before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(logLevel),
		})))
	}

	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig resolves the home directory and loads configuration.
func loadConfig() (*home.Dir, *config.Manager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}

	cm, err := config.NewManager(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return h, cm, nil
}
