// Package prompts provides the extraction prompt registry.
//
// Built-in prompts ship as embedded markdown assets, each with an optional
// sibling JSON schema describing the expected extraction output. Callers can
// also point at arbitrary files on disk; a builtin name and a filesystem path
// resolve through the same entry point.
package prompts

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed assets/prompts/*.md assets/prompts/*.json assets/system/*.md
var assetFS embed.FS

const (
	promptDir = "assets/prompts"
	systemDir = "assets/system"
)

// ErrUnknownPrompt is returned when a name is neither a built-in prompt nor a
// path to an existing file. Distinct from a file-not-found on an explicit
// path so callers can list the built-ins.
var ErrUnknownPrompt = errors.New("unknown prompt")

// Asset is an immutable prompt document with its optional JSON schema.
type Asset struct {
	Name    string          // prompt name (file stem)
	Text    string          // markdown body
	Schema  json.RawMessage // nil when the prompt ships without a schema
	Builtin bool
}

// Builtin returns the sorted names of all built-in extraction prompts.
func Builtin() []string {
	return listMarkdown(promptDir)
}

// BuiltinSystem returns the sorted names of all built-in system instructions.
func BuiltinSystem() []string {
	return listMarkdown(systemDir)
}

func listMarkdown(dir string) []string {
	entries, err := assetFS.ReadDir(dir)
	if err != nil {
		// Embedded directories are fixed at build time.
		panic(fmt.Sprintf("prompts: failed to read embedded %s: %v", dir, err))
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names
}

// Resolve returns the prompt asset for a built-in name or a filesystem path.
//
// Built-in names win over paths. For a path, a sibling <stem>.json schema is
// picked up when present. A bare name that matches nothing returns
// ErrUnknownPrompt; a missing explicit path returns the underlying fs error.
func Resolve(nameOrPath string) (*Asset, error) {
	if isBuiltin(nameOrPath, Builtin()) {
		return loadBuiltin(nameOrPath)
	}
	return loadFromDisk(nameOrPath)
}

// ResolveSystem returns the system instruction text for a built-in name or a
// filesystem path.
func ResolveSystem(nameOrPath string) (string, error) {
	if isBuiltin(nameOrPath, BuiltinSystem()) {
		data, err := assetFS.ReadFile(systemDir + "/" + nameOrPath + ".md")
		if err != nil {
			return "", fmt.Errorf("failed to read system instruction %s: %w", nameOrPath, err)
		}
		return string(data), nil
	}

	if looksLikeName(nameOrPath) {
		if _, err := os.Stat(nameOrPath); err != nil {
			return "", fmt.Errorf("%w: %s (built-in system instructions: %s)",
				ErrUnknownPrompt, nameOrPath, strings.Join(BuiltinSystem(), ", "))
		}
	}

	data, err := os.ReadFile(nameOrPath)
	if err != nil {
		return "", fmt.Errorf("failed to read system instruction: %w", err)
	}
	return string(data), nil
}

// ParseList resolves a comma-separated list of prompt names or paths.
func ParseList(list string) ([]*Asset, error) {
	var assets []*Asset
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		asset, err := Resolve(name)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("no prompts specified")
	}
	return assets, nil
}

func isBuiltin(name string, builtins []string) bool {
	for _, b := range builtins {
		if name == b {
			return true
		}
	}
	return false
}

func loadBuiltin(name string) (*Asset, error) {
	text, err := assetFS.ReadFile(promptDir + "/" + name + ".md")
	if err != nil {
		return nil, fmt.Errorf("failed to read built-in prompt %s: %w", name, err)
	}

	asset := &Asset{
		Name:    name,
		Text:    string(text),
		Builtin: true,
	}

	schema, err := assetFS.ReadFile(promptDir + "/" + name + ".json")
	if err == nil {
		if !json.Valid(schema) {
			return nil, fmt.Errorf("malformed JSON schema for built-in prompt %s", name)
		}
		asset.Schema = schema
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read schema for built-in prompt %s: %w", name, err)
	}

	return asset, nil
}

func loadFromDisk(path string) (*Asset, error) {
	if looksLikeName(path) {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s (built-in prompts: %s)",
				ErrUnknownPrompt, path, strings.Join(Builtin(), ", "))
		}
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}

	asset := &Asset{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Text: string(text),
	}

	schemaPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if schemaPath != path {
		schema, err := os.ReadFile(schemaPath)
		if err == nil {
			if !json.Valid(schema) {
				return nil, fmt.Errorf("malformed JSON schema %s", schemaPath)
			}
			asset.Schema = schema
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read schema %s: %w", schemaPath, err)
		}
	}

	return asset, nil
}

// looksLikeName reports whether the argument reads as a bare prompt name
// rather than a filesystem path.
func looksLikeName(s string) bool {
	return !strings.ContainsRune(s, os.PathSeparator) && filepath.Ext(s) == ""
}
