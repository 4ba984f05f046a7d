// Package watch turns filesystem activity under the source root into debounced refresh triggers.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"coursesync/internal/logging"
)

// DefaultDebounce is the quiet period required after the last relevant event.
const DefaultDebounce = 2 * time.Second

// Watcher observes a directory tree recursively. New subdirectories are added as they appear.
type Watcher struct {
	root     string
	match    func(path string) bool
	debounce time.Duration
	fsw      *fsnotify.Watcher
	log      *logging.Logger
}

// New watches every directory under root. match selects the file paths whose
// changes count; events on anything else (generated artifacts included) are ignored.
func New(root string, match func(string) bool, debounce time.Duration, log *logging.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = logging.New(time.UTC, "watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{root: root, match: match, debounce: debounce, fsw: fsw, log: log}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// Run calls onChange once per burst of relevant events until ctx is done.
// onChange runs on the watcher goroutine, so events arriving meanwhile are
// coalesced into at most one further call.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context)) error {
	defer w.fsw.Close()

	// Reset discards a stale expiry on its own (Go 1.23 timer semantics).
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			onChange(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch_error", logging.Fields{"error": err})
		}
	}
}

// relevant reports whether ev should trigger a refresh, registering new directories on the way.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Warn("watch_add_failed", logging.Fields{"path": ev.Name, "error": err})
			}
			return true
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}
	return w.match(ev.Name)
}
