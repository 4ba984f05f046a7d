// Package apperr defines the error kinds raised by the synchronization pipeline.
// Validation failures are bad input; every other kind is a system fault.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline error.
type Kind string

const (
	KindFilesystem Kind = "filesystem"
	KindValidation Kind = "validation"
	KindRender     Kind = "render"
	KindCatalog    Kind = "catalog"
)

// FilesystemError reports an unreadable root or a missing source/artifact file.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem: %s: %v", e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// ValidationError reports malformed asset references in a document.
type ValidationError struct {
	Title  string
	Tokens []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %q has malformed asset references: %s", e.Title, strings.Join(e.Tokens, ", "))
}

// RenderError reports a failed external (or in-process) conversion.
type RenderError struct {
	Title string
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %q: %v", e.Stage, e.Title, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// CatalogError reports a rejected catalog read or write.
type CatalogError struct {
	Op   string
	Path string
	Err  error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first pipeline error found in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fsErr *FilesystemError
	var valErr *ValidationError
	var renderErr *RenderError
	var catErr *CatalogError
	switch {
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &renderErr):
		return KindRender
	case errors.As(err, &catErr):
		return KindCatalog
	case errors.As(err, &fsErr):
		return KindFilesystem
	}
	return ""
}

// IsBadInput reports whether err stems from the documents themselves rather than a system fault.
func IsBadInput(err error) bool {
	return KindOf(err) == KindValidation
}

// IsDocumentScoped reports whether err only affects the document being processed,
// so the enclosing batch may continue.
func IsDocumentScoped(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindRender, KindFilesystem:
		return true
	}
	return false
}
