package source

import (
	"os"
	"path/filepath"
	"strings"

	"coursesync/internal/apperr"
	"coursesync/internal/model"
)

const (
	renderedExt  = ".html"
	printableExt = ".pdf"
)

// Selector keeps source documents and derives their records from filesystem metadata.
// It never reads document content.
type Selector struct {
	Ext      string
	Author   string
	Semester string
}

// Selection is the outcome of Select: records for every readable document,
// plus per-path failures for documents whose metadata could not be read.
type Selection struct {
	Records  []model.DocumentRecord
	Failures []error
}

// IsSource reports whether path carries the source document extension.
func (s Selector) IsSource(path string) bool {
	return s.Ext != "" && strings.HasSuffix(path, s.Ext)
}

// DerivePaths returns the rendered and printable artifact paths for a source path.
func (s Selector) DerivePaths(path string) (rendered, printable string) {
	base := strings.TrimSuffix(path, s.Ext)
	return base + renderedExt, base + printableExt
}

// Title is the base name of the source document's parent directory.
func Title(path string) string {
	return filepath.Base(filepath.Dir(path))
}

// Select filters paths to source documents and stats each one.
func (s Selector) Select(paths []string) Selection {
	sel := Selection{Records: make([]model.DocumentRecord, 0)}
	for _, p := range paths {
		if !s.IsSource(p) {
			continue
		}
		rec, err := s.Record(p)
		if err != nil {
			sel.Failures = append(sel.Failures, err)
			continue
		}
		sel.Records = append(sel.Records, rec)
	}
	return sel
}

// Record derives the record for a single source path.
func (s Selector) Record(path string) (model.DocumentRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.DocumentRecord{}, &apperr.FilesystemError{Path: path, Err: err}
	}
	rendered, printable := s.DerivePaths(path)
	return model.DocumentRecord{
		SourcePath:    path,
		RenderedPath:  rendered,
		PrintablePath: printable,
		Title:         Title(path),
		Author:        s.Author,
		SizeBytes:     info.Size(),
		ModifiedAt:    info.ModTime().UTC(),
		Semester:      s.Semester,
	}, nil
}
