package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"coursesync/internal/apperr"
)

// GoldmarkOptions configure the in-process renderer's page shell.
type GoldmarkOptions struct {
	Stylesheet     string
	TOCTitle       string
	MathAssetsPath string
	// HighlightStyle is the chroma style for fenced code blocks (default "pygments").
	HighlightStyle string
	// TOCDepth is the deepest heading level listed in the table of contents (default 3).
	TOCDepth int
}

// Goldmark renders Markdown to standalone HTML without an external converter.
// Fenced code is highlighted with inline chroma styles and math between $ or $$
// delimiters is typeset client-side by KaTeX auto-render.
type Goldmark struct {
	md   goldmark.Markdown
	opts GoldmarkOptions
}

var _ MarkupRenderer = (*Goldmark)(nil)

type tocEntry struct {
	Level int
	ID    string
	Text  string
}

type page struct {
	GoldmarkOptions
	Title string
	TOC   []tocEntry
	Body  template.HTML
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .Stylesheet}}
<link rel="stylesheet" href="{{.Stylesheet}}">
{{- end}}
{{- if .MathAssetsPath}}
<link rel="stylesheet" href="{{.MathAssetsPath}}katex.min.css">
<script defer src="{{.MathAssetsPath}}katex.min.js"></script>
<script defer src="{{.MathAssetsPath}}contrib/auto-render.min.js"></script>
<script>
document.addEventListener("DOMContentLoaded", function () {
  renderMathInElement(document.body, {
    delimiters: [
      {left: "$$", right: "$$", display: true},
      {left: "$", right: "$", display: false}
    ],
    throwOnError: false
  });
});
</script>
{{- end}}
</head>
<body>
<header id="title-block-header">
<h1 class="title">{{.Title}}</h1>
</header>
{{- if .TOC}}
<nav id="TOC" role="doc-toc">
<h2 id="toc-title">{{.TOCTitle}}</h2>
<ul>
{{- range .TOC}}
<li class="toc-level-{{.Level}}"><a href="#{{.ID}}">{{.Text}}</a></li>
{{- end}}
</ul>
</nav>
{{- end}}
{{.Body}}
</body>
</html>
`))

// NewGoldmark constructs the in-process MarkupRenderer.
func NewGoldmark(opts GoldmarkOptions) *Goldmark {
	if opts.TOCDepth <= 0 {
		opts.TOCDepth = 3
	}
	if opts.HighlightStyle == "" {
		opts.HighlightStyle = "pygments"
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			highlighting.NewHighlighting(highlighting.WithStyle(opts.HighlightStyle)),
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &Goldmark{md: md, opts: opts}
}

// RenderMarkup reads job.SourcePath and writes the standalone page to job.RenderedPath.
func (g *Goldmark) RenderMarkup(_ context.Context, job Job) error {
	src, err := os.ReadFile(job.SourcePath)
	if err != nil {
		return &apperr.FilesystemError{Path: job.SourcePath, Err: err}
	}
	out, err := g.Render(src, job.Title)
	if err != nil {
		return &apperr.RenderError{Title: job.Title, Stage: StageMarkup, Err: err}
	}
	if err := os.WriteFile(job.RenderedPath, out, 0o644); err != nil {
		return &apperr.FilesystemError{Path: job.RenderedPath, Err: err}
	}
	return nil
}

// Render converts src into a complete HTML page titled title.
func (g *Goldmark) Render(src []byte, title string) ([]byte, error) {
	doc := g.md.Parser().Parse(text.NewReader(src))

	var body bytes.Buffer
	if err := g.md.Renderer().Render(&body, src, doc); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var out bytes.Buffer
	err := pageTmpl.Execute(&out, page{
		GoldmarkOptions: g.opts,
		Title:           title,
		TOC:             headings(doc, src, g.opts.TOCDepth),
		Body:            template.HTML(body.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("execute page template: %w", err)
	}
	return out.Bytes(), nil
}

func headings(doc gmast.Node, src []byte, depth int) []tocEntry {
	var toc []tocEntry
	_ = gmast.Walk(doc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		if h.Level <= depth {
			entry := tocEntry{Level: h.Level, Text: nodeText(h, src)}
			if id, ok := h.AttributeString("id"); ok {
				if b, ok := id.([]byte); ok {
					entry.ID = string(b)
				}
			}
			toc = append(toc, entry)
		}
		return gmast.WalkSkipChildren, nil
	})
	return toc
}

func nodeText(n gmast.Node, src []byte) string {
	var b bytes.Buffer
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *gmast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *gmast.String:
			b.Write(t.Value)
		}
		return gmast.WalkContinue, nil
	})
	return b.String()
}
