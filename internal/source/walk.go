// Package source discovers course documents on disk and derives their catalog records.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"coursesync/internal/apperr"
)

// Walk returns the absolute path of every regular file below root, at any depth,
// in no guaranteed order. A relative root is resolved against the working directory.
// An inaccessible root is reported as *apperr.FilesystemError.
func Walk(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &apperr.FilesystemError{Path: root, Err: err}
	}
	root = abs

	info, err := os.Stat(root)
	if err != nil {
		return nil, &apperr.FilesystemError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &apperr.FilesystemError{Path: root, Err: fmt.Errorf("not a directory")}
	}

	files := make([]string, 0)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &apperr.FilesystemError{Path: root, Err: err}
	}
	return files, nil
}
