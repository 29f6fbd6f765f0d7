package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/llmde/llmde/internal/config"
	"github.com/llmde/llmde/internal/extract"
	"github.com/llmde/llmde/internal/prompts"
	"github.com/llmde/llmde/internal/providers"
)

var (
	runModelFlags modelFlags
	runSrc        string
	runOut        string
	runPrompts    string
	runRateRPM    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run batch extraction over a directory of PDF papers",
	Long: `Process every *.pdf in the source directory with every prompt in the
list, writing out/<index>/<prompt>.json per (paper, prompt) pair plus a
MANIFEST.csv mapping indices to filenames.

Existing output files are skipped, so an interrupted batch resumes from
where it stopped; delete a result file to regenerate just that one.
Model calls are paced by a requests-per-minute limiter and recorded in
out/CALLS.jsonl.

Examples:
  llmde run --src papers/ --out results/ --model gemini-2.0-flash --prompts bibliography,methods
  llmde run --src papers/ --out results/ --prompts pedro --system-instruction reviewer`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()

		// Batches run for hours; surface config edits even though the
		// client and limiter are fixed for the duration of this run.
		cm.OnChange(func(c *config.Config) {
			slog.Info("config file changed; new values apply to the next run")
		})
		cm.WatchConfig()

		assets, err := prompts.ParseList(runPrompts)
		if err != nil {
			return err
		}
		promptList := make([]prompts.Asset, len(assets))
		for i, a := range assets {
			promptList[i] = *a
		}

		client, err := runModelFlags.buildClient(cmd, cfg)
		if err != nil {
			return err
		}

		rpm := runRateRPM
		if rpm == 0 {
			rpm = cfg.Defaults.RateLimitRPM
		}

		runner, err := extract.NewRunner(extract.Options{
			SourceDir: runSrc,
			OutDir:    runOut,
			Prompts:   promptList,
			Client:    client,
			Limiter:   providers.NewRateLimiter(rpm),
			Logger:    slog.Default(),
		})
		if err != nil {
			return err
		}

		summary, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Extraction complete: %d papers, %d processed, %d skipped, %d failed\n",
			summary.Papers, summary.Processed, summary.Skipped, summary.Failed)
		if summary.Failed > 0 {
			return fmt.Errorf("%d work items failed; re-run to retry them", summary.Failed)
		}
		return nil
	},
}

func init() {
	runModelFlags.register(runCmd)
	runCmd.Flags().StringVar(&runSrc, "src", "", "source directory containing *.pdf files (required)")
	runCmd.Flags().StringVar(&runOut, "out", "", "output directory (required)")
	runCmd.Flags().StringVar(&runPrompts, "prompts", "", "comma-separated prompt names or paths (required)")
	runCmd.Flags().IntVar(&runRateRPM, "rate-limit", 0, "model calls per minute (default from config)")
	runCmd.MarkFlagRequired("src")
	runCmd.MarkFlagRequired("out")
	runCmd.MarkFlagRequired("prompts")
}
