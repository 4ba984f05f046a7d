package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isMarkdown(p string) bool { return strings.HasSuffix(p, ".md") }

func startWatcher(t *testing.T, root string) <-chan struct{} {
	t.Helper()
	w, err := New(root, isMarkdown, 100*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	fired := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { fired <- struct{}{} })
	}()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	return fired
}

func waitFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func assertQuiet(t *testing.T, fired <-chan struct{}, d time.Duration) {
	t.Helper()
	select {
	case <-fired:
		t.Fatal("unexpected change notification")
	case <-time.After(d):
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Algo"), 0o755))
	fired := startWatcher(t, root)

	p := filepath.Join(root, "Algo", "cours.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("#", i+1)), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	waitFired(t, fired)
	assertQuiet(t, fired, 400*time.Millisecond)
}

func TestWatcher_IgnoresArtifacts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Algo"), 0o755))
	fired := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "Algo", "cours.html"), []byte("<html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Algo", "cours.pdf"), []byte("%PDF"), 0o644))
	assertQuiet(t, fired, 400*time.Millisecond)
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	fired := startWatcher(t, root)

	dir := filepath.Join(root, "Reseaux")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	waitFired(t, fired)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cours.md"), []byte("# Reseaux"), 0o644))
	waitFired(t, fired)
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), isMarkdown, 0, nil)
	assert.Error(t, err)
}
