package render

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"coursesync/internal/apperr"
)

var headCloseRE = regexp.MustCompile(`(?i)</head\s*>`)

// PrintOptions configure the HTML-to-PDF conversion and the temporary print styling.
type PrintOptions struct {
	Bin       string
	ExtraArgs []string

	FontURL       string
	FontFamily    string
	MathScriptURL string
}

// Fragment is the markup injected into the rendered artifact for the duration of the PDF conversion.
func (o PrintOptions) Fragment() string {
	var b strings.Builder
	if o.FontURL != "" {
		fmt.Fprintf(&b, "<link rel=\"stylesheet\" href=\"%s\">\n", html.EscapeString(o.FontURL))
	}
	if o.FontFamily != "" {
		fmt.Fprintf(&b, "<style>body, p, li, td { font-family: '%s', sans-serif !important; }</style>\n", html.EscapeString(o.FontFamily))
	}
	if o.MathScriptURL != "" {
		fmt.Fprintf(&b, "<script src=\"%s\" onload=\"renderMathInElement(document.body);\"></script>\n", html.EscapeString(o.MathScriptURL))
	}
	return b.String()
}

// PDFPrinter produces the printable artifact with an external HTML-to-PDF tool (wkhtmltopdf by default).
type PDFPrinter struct {
	runner Runner
	opts   PrintOptions
}

var _ PrintRenderer = (*PDFPrinter)(nil)

// NewPDFPrinter constructs a PrintRenderer that shells out to opts.Bin.
func NewPDFPrinter(runner Runner, opts PrintOptions) *PDFPrinter {
	if opts.Bin == "" {
		opts.Bin = "wkhtmltopdf"
	}
	return &PDFPrinter{runner: runner, opts: opts}
}

// Args builds the converter argument list for job.
func (p *PDFPrinter) Args(job Job) []string {
	args := append([]string{}, p.opts.ExtraArgs...)
	return append(args, job.RenderedPath, job.PrintablePath)
}

// RenderPrint injects the print fragment, runs the converter, and restores the
// rendered artifact to its original bytes whether or not the conversion succeeded.
func (p *PDFPrinter) RenderPrint(ctx context.Context, job Job) (err error) {
	info, statErr := os.Stat(job.RenderedPath)
	if statErr != nil {
		return &apperr.FilesystemError{Path: job.RenderedPath, Err: statErr}
	}
	original, readErr := os.ReadFile(job.RenderedPath)
	if readErr != nil {
		return &apperr.FilesystemError{Path: job.RenderedPath, Err: readErr}
	}

	augmented, ok := Inject(string(original), p.opts.Fragment())
	if !ok {
		return &apperr.RenderError{Title: job.Title, Stage: StagePrint, Err: errors.New("rendered artifact has no </head>")}
	}

	perm := info.Mode().Perm()
	defer func() {
		if restoreErr := os.WriteFile(job.RenderedPath, original, perm); restoreErr != nil {
			err = errors.Join(err, &apperr.FilesystemError{Path: job.RenderedPath, Err: restoreErr})
		}
	}()

	if err := os.WriteFile(job.RenderedPath, []byte(augmented), perm); err != nil {
		return &apperr.FilesystemError{Path: job.RenderedPath, Err: err}
	}
	if err := p.runner.Run(ctx, p.opts.Bin, p.Args(job)...); err != nil {
		return &apperr.RenderError{Title: job.Title, Stage: StagePrint, Err: err}
	}
	return ensureArtifact(job.PrintablePath)
}

// Inject inserts fragment right before the first closing head tag.
// It reports false when the document has no head to inject into.
func Inject(doc, fragment string) (string, bool) {
	loc := headCloseRE.FindStringIndex(doc)
	if loc == nil {
		return doc, false
	}
	return doc[:loc[0]] + fragment + doc[loc[0]:], true
}
