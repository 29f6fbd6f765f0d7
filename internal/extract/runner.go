// Package extract implements the batch extraction runner: it walks a
// directory of PDF papers, sends each (paper, prompt) pair to a model
// client, and persists the structured results under a numbered output
// layout with MANIFEST.csv bookkeeping. Completed outputs are detected by
// file existence, so an interrupted batch resumes where it left off.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/llmde/llmde/internal/prompts"
	"github.com/llmde/llmde/internal/providers"
)

// Options configures a batch extraction run.
type Options struct {
	// SourceDir is scanned (non-recursively) for *.pdf files.
	SourceDir string
	// OutDir receives MANIFEST.csv, CALLS.jsonl and the numbered paper dirs.
	OutDir string
	// Prompts are applied to every paper, in order.
	Prompts []prompts.Asset
	// Client performs the model calls.
	Client providers.ModelClient
	// Limiter paces calls. Optional; nil means no pacing.
	Limiter *providers.RateLimiter
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Summary reports what a run did.
type Summary struct {
	Papers    int // PDFs seen in the source directory
	Processed int // work items that produced a new output file
	Skipped   int // work items whose output already existed
	Failed    int // work items that errored (logged, not fatal)
}

// Runner executes batch extractions.
type Runner struct {
	src     string
	out     string
	prompts []prompts.Asset
	client  providers.ModelClient
	limiter *providers.RateLimiter
	log     *slog.Logger
}

// NewRunner validates the options and creates a runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("source directory is required")
	}
	if opts.OutDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if len(opts.Prompts) == 0 {
		return nil, fmt.Errorf("at least one prompt is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("model client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		src:     opts.SourceDir,
		out:     opts.OutDir,
		prompts: opts.Prompts,
		client:  opts.Client,
		limiter: opts.Limiter,
		log:     logger,
	}, nil
}

// Run processes every (paper, prompt) pair. Per-item failures are counted
// and logged but do not abort the batch; the returned error is non-nil only
// for setup failures or context cancellation.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	pdfs, err := r.listPDFs()
	if err != nil {
		return nil, err
	}
	if len(pdfs) == 0 {
		return nil, fmt.Errorf("no PDF files found in %s", r.src)
	}

	if err := os.MkdirAll(r.out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	manifest, err := LoadManifest(r.out)
	if err != nil {
		return nil, err
	}
	callLog := NewCallLog(r.out)

	summary := &Summary{Papers: len(pdfs)}
	r.log.Info("starting extraction",
		"papers", len(pdfs),
		"prompts", len(r.prompts),
		"model", r.client.Model(),
		"out", r.out)

	for _, pdfPath := range pdfs {
		if err := r.processPaper(ctx, manifest, callLog, pdfPath, summary); err != nil {
			return summary, err
		}
	}

	r.log.Info("extraction complete",
		"papers", summary.Papers,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

// processPaper handles one PDF: directory setup, the PDF copy, and every
// prompt against it. Only context cancellation propagates as an error.
func (r *Runner) processPaper(ctx context.Context, manifest *Manifest, callLog *CallLog, pdfPath string, summary *Summary) error {
	pdfName := filepath.Base(pdfPath)

	index, err := manifest.Assign(pdfName)
	if err != nil {
		return err
	}
	paperDir := filepath.Join(r.out, DirName(index))
	if err := os.MkdirAll(paperDir, 0o755); err != nil {
		return fmt.Errorf("failed to create paper directory: %w", err)
	}
	if err := copyIfMissing(pdfPath, filepath.Join(paperDir, pdfName)); err != nil {
		return err
	}

	log := r.log.With("paper", pdfName, "index", DirName(index))

	for _, prompt := range r.prompts {
		outPath := filepath.Join(paperDir, prompt.Name+".json")
		if _, err := os.Stat(outPath); err == nil {
			log.Debug("output exists, skipping", "prompt", prompt.Name)
			summary.Skipped++
			continue
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		log.Info("querying model", "prompt", prompt.Name)
		result, err := r.client.Query(ctx, &providers.QueryRequest{
			Prompt:    prompt.Text,
			Schema:    prompt.Schema,
			Files:     []string{pdfPath},
			RequestID: uuid.New().String(),
		})
		if _, logErr := callLog.Record(pdfName, prompt.Name, result, err); logErr != nil {
			log.Warn("failed to record call", "error", logErr)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Error("extraction failed", "prompt", prompt.Name, "error", err)
			summary.Failed++
			continue
		}

		if err := r.writeResult(outPath, prompt, result); err != nil {
			log.Error("failed to write result", "prompt", prompt.Name, "error", err)
			summary.Failed++
			continue
		}
		summary.Processed++
		log.Info("saved extraction", "prompt", prompt.Name,
			"tokens", result.TotalTokens, "latency", result.ExecutionTime)
	}
	return nil
}

// writeResult persists model output: pretty-printed JSON when it parses,
// raw text otherwise. Schema mismatches are warnings; the file is written
// either way so a human can inspect what came back.
func (r *Runner) writeResult(outPath string, prompt prompts.Asset, result *providers.QueryResult) error {
	parsed := result.ParsedJSON
	if parsed == nil {
		if p, err := providers.ParseStructuredJSON(result.Content); err == nil {
			parsed = p
		}
	}

	var data []byte
	if parsed != nil {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, parsed, "", "  "); err != nil {
			return fmt.Errorf("failed to format result: %w", err)
		}
		pretty.WriteByte('\n')
		data = pretty.Bytes()

		if err := providers.ValidateAgainstSchema(prompt.Schema, parsed); err != nil {
			r.log.Warn("extraction does not match prompt schema",
				"prompt", prompt.Name, "error", err)
		}
	} else {
		r.log.Warn("model output is not valid JSON, saving raw text", "prompt", prompt.Name)
		data = []byte(result.Content)
	}

	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// listPDFs returns the source directory's *.pdf files in sorted order.
func (r *Runner) listPDFs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.src, "*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("failed to list PDFs: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

func copyIfMissing(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
