package model

import "time"

// DocumentRecord describes one source document observed during a refresh pass.
// It is transient: derived from the filesystem and configuration, never read back from the catalog.
type DocumentRecord struct {
	SourcePath    string    `json:"path"`
	RenderedPath  string    `json:"html_path"`
	PrintablePath string    `json:"pdf_path"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	SizeBytes     int64     `json:"size"`
	ModifiedAt    time.Time `json:"date"`
	Semester      string    `json:"semester"`
}

// Course is a persisted catalog entry.
// RenderedPath is the natural key used during reconciliation; ID is generated by the store.
// LastUpdate stays nil until a later refresh observes a size change.
type Course struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	Semester      string     `json:"semester"`
	SourcePath    string     `json:"path"`
	RenderedPath  string     `json:"html_path"`
	PrintablePath string     `json:"pdf_path"`
	SizeBytes     int64      `json:"size"`
	ModifiedAt    time.Time  `json:"date"`
	LastUpdate    *time.Time `json:"last_update"`
}

// NewCourse builds the catalog entry for a record seen for the first time.
func NewCourse(rec DocumentRecord) *Course {
	return &Course{
		Title:         rec.Title,
		Author:        rec.Author,
		Semester:      rec.Semester,
		SourcePath:    rec.SourcePath,
		RenderedPath:  rec.RenderedPath,
		PrintablePath: rec.PrintablePath,
		SizeBytes:     rec.SizeBytes,
		ModifiedAt:    rec.ModifiedAt,
	}
}
