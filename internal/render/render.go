// Package render converts normalized course documents into their HTML and PDF artifacts.
// Conversion engines sit behind MarkupRenderer and PrintRenderer so they can be swapped or mocked.
package render

import (
	"context"
	"errors"
	"os"

	"coursesync/internal/apperr"
)

const (
	StageMarkup = "markup"
	StagePrint  = "print"
)

// Job carries the per-document inputs shared by both renderers.
type Job struct {
	Title         string
	SourcePath    string
	RenderedPath  string
	PrintablePath string
}

// MarkupRenderer turns a source document into its rendered HTML artifact at job.RenderedPath.
type MarkupRenderer interface {
	RenderMarkup(ctx context.Context, job Job) error
}

// PrintRenderer turns the rendered HTML artifact into the printable artifact at job.PrintablePath.
type PrintRenderer interface {
	RenderPrint(ctx context.Context, job Job) error
}

// ensureArtifact checks that a converter which exited cleanly actually produced its output.
func ensureArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &apperr.FilesystemError{Path: path, Err: err}
	}
	if info.IsDir() {
		return &apperr.FilesystemError{Path: path, Err: errors.New("artifact is a directory")}
	}
	return nil
}
