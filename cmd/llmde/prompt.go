package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/llmde/llmde/internal/pdf"
	"github.com/llmde/llmde/internal/prompts"
	"github.com/llmde/llmde/internal/providers"
)

var (
	promptModelFlags modelFlags
	promptName       string
	promptFiles      []string
	promptOutput     string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Send a single prompt with PDF attachments to a model",
	Long: `Send one prompt, with zero or more PDF papers attached, to a hosted
model and print the response.

The prompt is a built-in name (see 'llmde prompts') or a path to a
markdown file. A file path with a sibling .json schema gets schema-
constrained output on providers that support it.

Examples:
  llmde prompt --model gemini-2.0-flash --prompt bibliography --file paper.pdf
  llmde prompt --model claude-sonnet-4-5 --prompt ./custom.md --file paper.pdf --output result.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		asset, err := prompts.Resolve(promptName)
		if err != nil {
			return err
		}

		if len(promptFiles) > 0 {
			infos, err := pdf.Inspect(promptFiles)
			if err != nil {
				return err
			}
			for _, info := range infos {
				slog.Debug("attaching PDF", "file", info.Name, "pages", info.Pages)
			}
		}

		client, err := promptModelFlags.buildClient(cmd, cfg)
		if err != nil {
			return err
		}

		slog.Info("querying model", "model", client.Model(), "prompt", asset.Name, "files", len(promptFiles))
		result, err := client.Query(cmd.Context(), &providers.QueryRequest{
			Prompt: asset.Text,
			Schema: asset.Schema,
			Files:  promptFiles,
		})
		if err != nil {
			return err
		}
		slog.Info("response received",
			"tokens", result.TotalTokens, "latency", result.ExecutionTime, "attempts", result.Attempts)

		output := formatResponse(result)
		if promptOutput != "" {
			if err := os.WriteFile(promptOutput, output, 0o644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			slog.Info("wrote output", "path", promptOutput)
			return nil
		}
		fmt.Print(string(output))
		return nil
	},
}

// formatResponse pretty-prints the payload when it parses as JSON and
// falls back to the raw model text otherwise.
func formatResponse(result *providers.QueryResult) []byte {
	if result.ParsedJSON != nil {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, result.ParsedJSON, "", "  "); err == nil {
			pretty.WriteByte('\n')
			return pretty.Bytes()
		}
	}
	return []byte(result.Content + "\n")
}

func init() {
	promptModelFlags.register(promptCmd)
	promptCmd.Flags().StringVar(&promptName, "prompt", "", "prompt: built-in name or file path (required)")
	promptCmd.Flags().StringSliceVar(&promptFiles, "file", nil, "PDF attachment (repeatable)")
	promptCmd.Flags().StringVar(&promptOutput, "output", "", "write response to file instead of stdout")
	promptCmd.MarkFlagRequired("prompt")
}
