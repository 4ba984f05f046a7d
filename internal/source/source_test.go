package source

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"coursesync/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Algo", "cours.md"), "# Algo")
	writeFile(t, filepath.Join(root, "Algo", "assets", "graph.png"), "png")
	writeFile(t, filepath.Join(root, "Reseaux", "deep", "nested", "notes.md"), "# Reseaux")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Empty"), 0o755))

	files, err := Walk(root)
	require.NoError(t, err)
	sort.Strings(files)

	assert.Equal(t, []string{
		filepath.Join(root, "Algo", "assets", "graph.png"),
		filepath.Join(root, "Algo", "cours.md"),
		filepath.Join(root, "Reseaux", "deep", "nested", "notes.md"),
	}, files)
}

func TestWalk_RelativeRoot(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "md", "Algo", "cours.md"), "# Algo")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(base))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	files, err := Walk("md")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(base, "md", "Algo", "cours.md")}, files)

	again, err := Walk("./md/../md/")
	require.NoError(t, err)
	assert.Equal(t, files, again)
}

func TestWalk_EmptyRoot(t *testing.T) {
	files, err := Walk(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestWalk_InaccessibleRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindFilesystem, apperr.KindOf(err))

	file := filepath.Join(t.TempDir(), "plain.md")
	writeFile(t, file, "x")
	_, err = Walk(file)
	assert.Equal(t, apperr.KindFilesystem, apperr.KindOf(err))
}

func TestSelector_DerivePaths(t *testing.T) {
	s := Selector{Ext: ".md"}

	rendered, printable := s.DerivePaths("/srv/Cours/Algo/cours.md")
	assert.Equal(t, "/srv/Cours/Algo/cours.html", rendered)
	assert.Equal(t, "/srv/Cours/Algo/cours.pdf", printable)

	// Only the suffix is substituted.
	rendered, printable = s.DerivePaths("/srv/notes.md.d/Algo/readme.md")
	assert.Equal(t, "/srv/notes.md.d/Algo/readme.html", rendered)
	assert.Equal(t, "/srv/notes.md.d/Algo/readme.pdf", printable)

	again, _ := s.DerivePaths("/srv/Cours/Algo/cours.md")
	assert.Equal(t, "/srv/Cours/Algo/cours.html", again)
}

func TestSelector_Select(t *testing.T) {
	root := t.TempDir()
	algo := filepath.Join(root, "Algo", "cours.md")
	other := filepath.Join(root, "s2", "Algo", "cours.md")
	writeFile(t, algo, "# Algo\n")
	writeFile(t, other, "# Algo bis\n")
	writeFile(t, filepath.Join(root, "Algo", "cours.html"), "<html></html>")
	writeFile(t, filepath.Join(root, "Algo", "README.MD"), "upper case extension")

	mtime := time.Date(2024, 9, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(algo, mtime, mtime))

	s := Selector{Ext: ".md", Author: "J. Doe", Semester: "s7"}
	files, err := Walk(root)
	require.NoError(t, err)

	sel := s.Select(append(files, filepath.Join(root, "gone", "lost.md")))

	require.Len(t, sel.Records, 2)
	require.Len(t, sel.Failures, 1)
	assert.Equal(t, apperr.KindFilesystem, apperr.KindOf(sel.Failures[0]))

	sort.Slice(sel.Records, func(i, j int) bool { return sel.Records[i].SourcePath < sel.Records[j].SourcePath })
	rec := sel.Records[0]
	assert.Equal(t, algo, rec.SourcePath)
	assert.Equal(t, filepath.Join(root, "Algo", "cours.html"), rec.RenderedPath)
	assert.Equal(t, filepath.Join(root, "Algo", "cours.pdf"), rec.PrintablePath)
	assert.Equal(t, "Algo", rec.Title)
	assert.Equal(t, "J. Doe", rec.Author)
	assert.Equal(t, "s7", rec.Semester)
	assert.Equal(t, int64(len("# Algo\n")), rec.SizeBytes)
	assert.True(t, mtime.Equal(rec.ModifiedAt))

	// Title collisions are kept.
	assert.Equal(t, "Algo", sel.Records[1].Title)
}
