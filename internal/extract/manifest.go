package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ManifestName is the bookkeeping file written at the root of the output
// directory, one row per paper: index,pdf_name.
const ManifestName = "MANIFEST.csv"

// Manifest is the lookup table mapping PDF filenames to their numbered
// output directories. It is loaded once at startup and flushed to disk
// after every new assignment, so a killed batch never loses bookkeeping
// for papers it already placed.
type Manifest struct {
	path     string
	byName   map[string]int
	maxIndex int
}

// LoadManifest reads outDir/MANIFEST.csv if it exists. A missing file
// yields an empty manifest.
func LoadManifest(outDir string) (*Manifest, error) {
	m := &Manifest{
		path:   filepath.Join(outDir, ManifestName),
		byName: make(map[string]int),
	}

	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for i, rec := range records {
		if i == 0 && len(rec) >= 1 && rec[0] == "index" {
			continue // header row
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("malformed manifest row %d: %v", i+1, rec)
		}
		idx, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("malformed manifest index %q: %w", rec[0], err)
		}
		m.byName[rec[1]] = idx
		if idx > m.maxIndex {
			m.maxIndex = idx
		}
	}
	return m, nil
}

// Index returns the assigned index for a PDF filename, if any.
func (m *Manifest) Index(pdfName string) (int, bool) {
	idx, ok := m.byName[pdfName]
	return idx, ok
}

// Assign returns the index for a PDF filename, reusing an existing
// assignment or handing out max+1 for a new paper. New assignments are
// flushed to disk immediately.
func (m *Manifest) Assign(pdfName string) (int, error) {
	if idx, ok := m.byName[pdfName]; ok {
		return idx, nil
	}

	m.maxIndex++
	m.byName[pdfName] = m.maxIndex
	if err := m.flush(); err != nil {
		return 0, err
	}
	return m.maxIndex, nil
}

// Len returns the number of papers in the manifest.
func (m *Manifest) Len() int {
	return len(m.byName)
}

// DirName renders an index as the numbered directory name (e.g. "003").
func DirName(index int) string {
	return fmt.Sprintf("%03d", index)
}

// flush rewrites the manifest CSV, rows ordered by index.
func (m *Manifest) flush() error {
	type row struct {
		index int
		name  string
	}
	rows := make([]row, 0, len(m.byName))
	for name, idx := range m.byName {
		rows = append(rows, row{idx, name})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].index < rows[j].index })

	f, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"index", "pdf_name"}); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write([]string{DirName(r.index), r.name}); err != nil {
			return fmt.Errorf("failed to write manifest row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush manifest: %w", err)
	}
	return f.Close()
}
