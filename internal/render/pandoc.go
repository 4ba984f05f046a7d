package render

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"coursesync/internal/apperr"
)

// PandocOptions are the fixed settings substituted into every pandoc invocation.
type PandocOptions struct {
	Bin        string
	Stylesheet string
	TOCTitle   string
	ExtraArgs  []string

	// MathAssetsFrom matches the converter's bundled math resource prefix;
	// matches are rewritten to MathAssetsPath. Empty disables the rewrite.
	MathAssetsFrom string
	MathAssetsPath string
}

// Pandoc renders Markdown to standalone HTML with the pandoc command line tool.
type Pandoc struct {
	runner Runner
	opts   PandocOptions
	mathRE *regexp.Regexp
}

var _ MarkupRenderer = (*Pandoc)(nil)

// NewPandoc constructs a pandoc-backed MarkupRenderer.
func NewPandoc(runner Runner, opts PandocOptions) (*Pandoc, error) {
	if opts.Bin == "" {
		opts.Bin = "pandoc"
	}
	p := &Pandoc{runner: runner, opts: opts}
	if opts.MathAssetsFrom != "" {
		re, err := regexp.Compile(opts.MathAssetsFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid math assets pattern: %w", err)
		}
		p.mathRE = re
	}
	return p, nil
}

// Args builds the pandoc argument list for job.
func (p *Pandoc) Args(job Job) []string {
	args := []string{
		"--standalone",
		"--highlight-style", "pygments",
		"--katex",
		"--toc",
	}
	if p.opts.TOCTitle != "" {
		args = append(args, "--variable", "toc-title:"+p.opts.TOCTitle)
	}
	if p.opts.Stylesheet != "" {
		args = append(args, "--css", p.opts.Stylesheet)
	}
	args = append(args, "--metadata", "title="+job.Title)
	args = append(args, p.opts.ExtraArgs...)
	return append(args, job.SourcePath, "--output", job.RenderedPath)
}

// RenderMarkup runs pandoc for job and then points math resources at the local static path.
func (p *Pandoc) RenderMarkup(ctx context.Context, job Job) error {
	if err := p.runner.Run(ctx, p.opts.Bin, p.Args(job)...); err != nil {
		return &apperr.RenderError{Title: job.Title, Stage: StageMarkup, Err: err}
	}
	if err := ensureArtifact(job.RenderedPath); err != nil {
		return err
	}
	if p.mathRE == nil {
		return nil
	}
	return rewriteFile(job.RenderedPath, func(b []byte) []byte {
		return p.mathRE.ReplaceAllLiteral(b, []byte(p.opts.MathAssetsPath))
	})
}

// rewriteFile applies fn to the file content and writes it back when it changed.
func rewriteFile(path string, fn func([]byte) []byte) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &apperr.FilesystemError{Path: path, Err: err}
	}
	out := fn(data)
	if string(out) == string(data) {
		return nil
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return &apperr.FilesystemError{Path: path, Err: err}
	}
	return nil
}
