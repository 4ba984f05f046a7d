package assets

import (
	"os"
	"path/filepath"
	"testing"

	"coursesync/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var algo = Location{
	BaseURL:    "https://courses.example.org/",
	Semester:   "s7",
	Collection: "Cours",
	Title:      "Algorithmique",
}

const relativeDoc = `# Graphes

![parcours](./images/bfs.png)

Voir le [support](./assets/slides.pdf) et <img src="./images/dfs.svg" width="200">.

Lien externe: https://cdn.example.com/images/logo.png
`

func TestLocation_Prefix(t *testing.T) {
	assert.Equal(t, "https://courses.example.org/s7/Cours/Algorithmique/", algo.Prefix())

	spaced := Location{BaseURL: "https://x.org", Semester: "s7", Title: "Base de données"}
	assert.Equal(t, "https://x.org/s7/Base%20de%20donn%C3%A9es/", spaced.Prefix())
}

func TestNormalize(t *testing.T) {
	out := Normalize(relativeDoc, algo)

	assert.Contains(t, out, "](https://courses.example.org/s7/Cours/Algorithmique/images/bfs.png)")
	assert.Contains(t, out, "](https://courses.example.org/s7/Cours/Algorithmique/assets/slides.pdf)")
	assert.Contains(t, out, `src="https://courses.example.org/s7/Cours/Algorithmique/images/dfs.svg"`)
	assert.NotContains(t, out, "./images/")
	assert.Equal(t, relativeDoc, Unnormalize(out, algo))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "relative markers only", text: relativeDoc, want: nil},
		{name: "bare images reference", text: "![pic](images/pic.png)", want: []string{"images/pic.png"}},
		{name: "bare assets in html", text: `<img src='assets/a.png'> and again assets/a.png`, want: []string{"assets/a.png"}},
		{name: "parent directory", text: "![x](../assets/x.png)", want: []string{"../assets/x.png"}},
		{name: "nested folder", text: "see figures/images/plot.png", want: []string{"figures/images/plot.png"}},
		{name: "external urls", text: "https://a.org/images/x.png //cdn.org/assets/y.js", want: nil},
		{name: "folder mentioned in prose", text: "put files in the images/ folder", want: nil},
		{name: "unrelated paths", text: "src/imagesets/x.png and myassets/y", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.text))
		})
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	once, err := Rewrite(relativeDoc, algo)
	require.NoError(t, err)

	twice, err := Rewrite(once, algo)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	thrice, err := Rewrite(twice, algo)
	require.NoError(t, err)
	assert.Equal(t, once, thrice)
}

func TestRewrite_RejectsBareReferences(t *testing.T) {
	published := Normalize(relativeDoc, algo) + "\n![oops](images/pic.png)\n"

	_, err := Rewrite(published, algo)
	require.Error(t, err)

	var valErr *apperr.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "Algorithmique", valErr.Title)
	assert.Equal(t, []string{"images/pic.png"}, valErr.Tokens)
}

func TestRewrite_OtherLocationStaysExternal(t *testing.T) {
	other := Location{BaseURL: algo.BaseURL, Semester: "s8", Collection: "Cours", Title: "Reseaux"}
	text := Normalize("![x](./images/x.png)", other)

	out, err := Rewrite(text, algo)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestRewriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Algorithmique", "cours.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(relativeDoc), 0o600))

	changed, err := RewriteFile(path, algo)
	require.NoError(t, err)
	assert.True(t, changed)

	first, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Normalize(relativeDoc, algo), string(first))

	changed, err = RewriteFile(path, algo)
	require.NoError(t, err)
	assert.False(t, changed)

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRewriteFile_InvalidLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cours.md")
	body := "![pic](images/pic.png)\n![ok](./images/ok.png)\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := RewriteFile(path, algo)
	assert.True(t, apperr.IsBadInput(err))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, string(after))
}

func TestRewriteFile_Missing(t *testing.T) {
	_, err := RewriteFile(filepath.Join(t.TempDir(), "nope.md"), algo)
	assert.Equal(t, apperr.KindFilesystem, apperr.KindOf(err))
}
