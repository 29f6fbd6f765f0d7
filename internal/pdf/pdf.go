// Package pdf validates PDF attachments before they are sent to a provider.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Info describes a validated PDF attachment.
type Info struct {
	Path  string
	Name  string // base filename
	Pages int
}

// Inspect validates each path and returns page counts.
// Fails on the first unreadable file so no API call is wasted on a bad batch.
func Inspect(paths []string) ([]Info, error) {
	infos := make([]Info, 0, len(paths))
	for _, p := range paths {
		info, err := inspectOne(p)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func inspectOne(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("PDF not found: %w", err)
	}
	defer f.Close()

	// Cheap header check before handing the file to pdfcpu.
	header := make([]byte, 5)
	if _, err := f.Read(header); err != nil || !bytes.Equal(header, []byte("%PDF-")) {
		return Info{}, fmt.Errorf("not a PDF file: %s", path)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return Info{}, fmt.Errorf("failed to rewind %s: %w", path, err)
	}

	pages, err := api.PageCount(f, nil)
	if err != nil {
		return Info{}, fmt.Errorf("failed to get page count for %s: %w", path, err)
	}

	return Info{
		Path:  path,
		Name:  filepath.Base(path),
		Pages: pages,
	}, nil
}
