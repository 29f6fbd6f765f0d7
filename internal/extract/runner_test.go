package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/llmde/llmde/internal/prompts"
	"github.com/llmde/llmde/internal/providers"
)

func testPrompts() []prompts.Asset {
	return []prompts.Asset{
		{Name: "bibliography", Text: "Extract the bibliography."},
		{Name: "methods", Text: "Extract the methods."},
	}
}

func writeSourcePDFs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("%PDF-1.7\n"+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestRunner(t *testing.T, src, out string, client providers.ModelClient) *Runner {
	t.Helper()
	runner, err := NewRunner(Options{
		SourceDir: src,
		OutDir:    out,
		Prompts:   testPrompts(),
		Client:    client,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner
}

func TestRunner_FreshRun(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf", "jones2019.pdf")
	out := t.TempDir()
	mock := providers.NewMockClient()

	summary, err := newTestRunner(t, src, out, mock).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Papers != 2 || summary.Processed != 4 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if mock.RequestCount() != 4 {
		t.Errorf("RequestCount() = %d, want 4", mock.RequestCount())
	}

	// Sorted order: jones2019 gets 001, smith2021 gets 002.
	for _, check := range []struct{ dir, file string }{
		{"001", "jones2019.pdf"},
		{"001", "bibliography.json"},
		{"001", "methods.json"},
		{"002", "smith2021.pdf"},
		{"002", "bibliography.json"},
		{"002", "methods.json"},
	} {
		path := filepath.Join(out, check.dir, check.file)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s/%s", check.dir, check.file)
		}
	}

	// Results are pretty-printed JSON.
	data, err := os.ReadFile(filepath.Join(out, "001", "bibliography.json"))
	if err != nil {
		t.Fatal(err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}

	manifest, err := LoadManifest(out)
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Len() != 2 {
		t.Errorf("manifest rows = %d, want 2", manifest.Len())
	}
}

func TestRunner_ResumeSkipsExisting(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf", "jones2019.pdf")
	out := t.TempDir()
	mock := providers.NewMockClient()
	runner := newTestRunner(t, src, out, mock)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	mock.Reset()

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("resume made %d model calls, want 0", mock.RequestCount())
	}
	if summary.Skipped != 4 || summary.Processed != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunner_RegeneratesOnlyDeletedOutput(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf", "jones2019.pdf")
	out := t.TempDir()
	mock := providers.NewMockClient()
	runner := newTestRunner(t, src, out, mock)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	mock.Reset()

	target := filepath.Join(out, "002", "methods.json")
	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1", mock.RequestCount())
	}
	if summary.Processed != 1 || summary.Skipped != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("deleted output not regenerated: %v", err)
	}

	// The regenerated item queried the right paper and prompt.
	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("recorded %d requests", len(reqs))
	}
	if filepath.Base(reqs[0].Files[0]) != "smith2021.pdf" {
		t.Errorf("queried %s", reqs[0].Files[0])
	}
	if reqs[0].Prompt != "Extract the methods." {
		t.Errorf("prompt = %q", reqs[0].Prompt)
	}
}

func TestRunner_NewPaperKeepsIndicesStable(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf", "jones2019.pdf")
	out := t.TempDir()
	mock := providers.NewMockClient()
	runner := newTestRunner(t, src, out, mock)

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A new paper that sorts first must not displace existing assignments.
	if err := os.WriteFile(filepath.Join(src, "abel2024.pdf"), []byte("%PDF-1.7\nnew"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := runner.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	manifest, _ := LoadManifest(out)
	for name, want := range map[string]int{
		"jones2019.pdf": 1,
		"smith2021.pdf": 2,
		"abel2024.pdf":  3,
	} {
		if idx, ok := manifest.Index(name); !ok || idx != want {
			t.Errorf("Index(%s) = %d, %v, want %d", name, idx, ok, want)
		}
	}
}

func TestRunner_NonJSONResponseSavedRaw(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf")
	out := t.TempDir()
	mock := providers.NewMockClient()
	mock.ResponseText = "I could not extract anything from this paper."

	summary, err := newTestRunner(t, src, out, mock).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 2 {
		t.Errorf("summary = %+v", summary)
	}

	data, err := os.ReadFile(filepath.Join(out, "001", "bibliography.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != mock.ResponseText {
		t.Errorf("raw output = %q", data)
	}
}

func TestRunner_FailuresDoNotAbortBatch(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf", "jones2019.pdf")
	out := t.TempDir()
	mock := providers.NewMockClient()
	mock.FailAfter = 2 // first two items succeed, the rest fail

	summary, err := newTestRunner(t, src, out, mock).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v (item failures must not abort)", err)
	}
	if summary.Processed != 2 || summary.Failed != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if mock.RequestCount() != 4 {
		t.Errorf("RequestCount() = %d, want 4", mock.RequestCount())
	}

	// Failed items left no output, so a later run retries just those.
	mock.Reset()
	mock.FailAfter = 0
	summary, err = newTestRunner(t, src, out, mock).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 2 || summary.Skipped != 2 {
		t.Errorf("retry summary = %+v", summary)
	}
}

func TestRunner_CallLog(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf")
	out := t.TempDir()
	mock := providers.NewMockClient()

	if _, err := newTestRunner(t, src, out, mock).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(out, CallLogName))
	if err != nil {
		t.Fatalf("call log not written: %v", err)
	}
	defer f.Close()

	var calls []Call
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var call Call
		if err := json.Unmarshal(scanner.Bytes(), &call); err != nil {
			t.Fatalf("malformed call log line: %v", err)
		}
		calls = append(calls, call)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d call records, want 2", len(calls))
	}
	for _, call := range calls {
		if call.Paper != "smith2021.pdf" || !call.Success || call.ID == "" {
			t.Errorf("unexpected call record: %+v", call)
		}
	}
	if calls[0].Prompt != "bibliography" || calls[1].Prompt != "methods" {
		t.Errorf("prompts = %s, %s", calls[0].Prompt, calls[1].Prompt)
	}
}

func TestRunner_EmptySourceDir(t *testing.T) {
	runner := newTestRunner(t, t.TempDir(), t.TempDir(), providers.NewMockClient())
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("expected error for empty source directory")
	}
}

func TestRunner_ContextCancellation(t *testing.T) {
	src := writeSourcePDFs(t, "smith2021.pdf")
	out := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(t, src, out, providers.NewMockClient()).Run(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewRunner_Validation(t *testing.T) {
	base := Options{
		SourceDir: "src",
		OutDir:    "out",
		Prompts:   testPrompts(),
		Client:    providers.NewMockClient(),
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing source", func(o *Options) { o.SourceDir = "" }},
		{"missing out", func(o *Options) { o.OutDir = "" }},
		{"no prompts", func(o *Options) { o.Prompts = nil }},
		{"no client", func(o *Options) { o.Client = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			if _, err := NewRunner(opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
