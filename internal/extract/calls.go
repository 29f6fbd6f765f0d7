package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/llmde/llmde/internal/providers"
)

// CallLogName is the append-only model-call log written next to the
// manifest, one JSON object per line.
const CallLogName = "CALLS.jsonl"

// Call is one recorded model API call.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	Paper  string `json:"paper"`
	Prompt string `json:"prompt"`

	Provider string `json:"provider"`
	Model    string `json:"model"`

	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	Attempts     int `json:"attempts,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CallLog appends call records to CALLS.jsonl for traceability. Failures
// to record are reported but never abort an extraction.
type CallLog struct {
	path string
}

// NewCallLog creates a call log rooted at the output directory.
func NewCallLog(outDir string) *CallLog {
	return &CallLog{path: filepath.Join(outDir, CallLogName)}
}

// Record builds a Call from a query result (or error) and appends it.
func (l *CallLog) Record(paper, prompt string, result *providers.QueryResult, callErr error) (*Call, error) {
	call := &Call{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Paper:     paper,
		Prompt:    prompt,
		Success:   callErr == nil,
	}
	if result != nil {
		if result.RequestID != "" {
			call.ID = result.RequestID
		}
		call.LatencyMs = int(result.ExecutionTime.Milliseconds())
		call.Provider = result.Provider
		call.Model = result.ModelUsed
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
		call.Attempts = result.Attempts
	}
	if callErr != nil {
		call.Error = callErr.Error()
	}

	return call, l.append(call)
}

func (l *CallLog) append(call *Call) error {
	data, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open call log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append call record: %w", err)
	}
	return nil
}
