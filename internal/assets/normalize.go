// Package assets rewrites embedded asset references between their relative
// authoring form (./assets/, ./images/) and absolute public URLs.
//
// Unnormalize followed by Normalize is a fixed point: running the pair again
// on its own output reproduces the same bytes.
package assets

import (
	"bytes"
	"net/url"
	"os"
	"regexp"
	"strings"

	"coursesync/internal/apperr"
)

// Markers are the recognized relative prefixes for embedded assets.
var Markers = []string{"./assets/", "./images/"}

// Location identifies where a document's assets are published.
type Location struct {
	BaseURL    string
	Semester   string
	Collection string
	Title      string
}

// Prefix is the absolute URL directory under which the document's asset folders are published.
func (l Location) Prefix() string {
	parts := []string{strings.TrimRight(l.BaseURL, "/")}
	for _, seg := range []string{l.Semester, l.Collection, l.Title} {
		if seg != "" {
			parts = append(parts, url.PathEscape(seg))
		}
	}
	return strings.Join(parts, "/") + "/"
}

// absolute maps a relative marker to its published form.
func (l Location) absolute(marker string) string {
	return l.Prefix() + strings.TrimPrefix(marker, "./")
}

// Unnormalize restores previously published absolute asset URLs to their relative markers.
func Unnormalize(text string, loc Location) string {
	for _, m := range Markers {
		text = strings.ReplaceAll(text, loc.absolute(m), m)
	}
	return text
}

// Normalize replaces relative markers with absolute asset URLs.
func Normalize(text string, loc Location) string {
	for _, m := range Markers {
		text = strings.ReplaceAll(text, m, loc.absolute(m))
	}
	return text
}

var (
	// tokenRE splits text on whitespace and the delimiters that surround
	// references in Markdown and HTML.
	tokenRE = regexp.MustCompile("[^\\s()\\[\\]<>\"'`]+")
	// assetSegmentRE matches an assets/ or images/ path segment followed by a file part.
	assetSegmentRE = regexp.MustCompile(`(^|/)(assets|images)/[^/\s]`)
	schemeRE       = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
)

// Validate returns the asset-style tokens that are neither written with a
// relative marker nor fully qualified URLs. Duplicates are reported once, in order of appearance.
func Validate(text string) []string {
	seen := make(map[string]bool)
	var bad []string
	for _, tok := range tokenRE.FindAllString(text, -1) {
		if !assetSegmentRE.MatchString(tok) {
			continue
		}
		if schemeRE.MatchString(tok) || strings.HasPrefix(tok, "//") || hasMarker(tok) {
			continue
		}
		if !seen[tok] {
			seen[tok] = true
			bad = append(bad, tok)
		}
	}
	return bad
}

func hasMarker(tok string) bool {
	for _, m := range Markers {
		if strings.HasPrefix(tok, m) {
			return true
		}
	}
	return false
}

// Rewrite restores the relative baseline, validates it, and reapplies the absolute form.
// A document with malformed references yields *apperr.ValidationError naming them.
func Rewrite(text string, loc Location) (string, error) {
	relative := Unnormalize(text, loc)
	if bad := Validate(relative); len(bad) > 0 {
		return "", &apperr.ValidationError{Title: loc.Title, Tokens: bad}
	}
	return Normalize(relative, loc), nil
}

// RewriteFile applies Rewrite to the file at path and writes the result back
// only when it differs from what is on disk. It reports whether the file changed.
func RewriteFile(path string, loc Location) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, &apperr.FilesystemError{Path: path, Err: err}
	}
	out, err := Rewrite(string(data), loc)
	if err != nil {
		return false, err
	}
	if bytes.Equal(data, []byte(out)) {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, &apperr.FilesystemError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return false, &apperr.FilesystemError{Path: path, Err: err}
	}
	return true, nil
}
