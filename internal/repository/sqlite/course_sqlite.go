package sqlite

import (
	"context"
	"database/sql"
	"time"

	"coursesync/internal/model"
	"coursesync/internal/repository"
)

// CourseSQLite is a SQLite implementation of repository.CourseRepository.
// Timestamps are stored as Unix nanoseconds and returned in UTC.
type CourseSQLite struct {
	db *sql.DB
}

// NewCourseSQLite creates a new CourseSQLite repository.
func NewCourseSQLite(db *sql.DB) *CourseSQLite {
	return &CourseSQLite{db: db}
}

var _ repository.CourseRepository = (*CourseSQLite)(nil)

const courseColumns = `id, title, author, semester, path, html_path, pdf_path, size, date, last_update`

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (*model.Course, error) {
	var (
		c          model.Course
		date       int64
		lastUpdate sql.NullInt64
	)
	if err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Author,
		&c.Semester,
		&c.SourcePath,
		&c.RenderedPath,
		&c.PrintablePath,
		&c.SizeBytes,
		&date,
		&lastUpdate,
	); err != nil {
		return nil, err
	}
	c.ModifiedAt = time.Unix(0, date).UTC()
	if lastUpdate.Valid {
		t := time.Unix(0, lastUpdate.Int64).UTC()
		c.LastUpdate = &t
	}
	return &c, nil
}

// FindByRenderedPath fetches the entry whose html_path equals renderedPath.
func (r *CourseSQLite) FindByRenderedPath(ctx context.Context, renderedPath string) (*model.Course, error) {
	const q = `SELECT ` + courseColumns + ` FROM courses WHERE html_path = ?`
	return scanCourse(r.db.QueryRowContext(ctx, q, renderedPath))
}

// Insert adds a new entry with a NULL last_update and returns the stored record.
func (r *CourseSQLite) Insert(ctx context.Context, c *model.Course) (*model.Course, error) {
	const q = `
		INSERT INTO courses (title, author, semester, path, html_path, pdf_path, size, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + courseColumns
	row := r.db.QueryRowContext(ctx, q,
		c.Title,
		c.Author,
		c.Semester,
		c.SourcePath,
		c.RenderedPath,
		c.PrintablePath,
		c.SizeBytes,
		c.ModifiedAt.UnixNano(),
	)
	return scanCourse(row)
}

// UpdateSizeAndTimestamp touches only size and last_update; an unknown path returns sql.ErrNoRows.
func (r *CourseSQLite) UpdateSizeAndTimestamp(ctx context.Context, renderedPath string, size int64, lastUpdate time.Time) error {
	const q = `UPDATE courses SET size = ?, last_update = ? WHERE html_path = ?`
	res, err := r.db.ExecContext(ctx, q, size, lastUpdate.UnixNano(), renderedPath)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID fetches a single entry by its ID.
func (r *CourseSQLite) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	const q = `SELECT ` + courseColumns + ` FROM courses WHERE id = ?`
	return scanCourse(r.db.QueryRowContext(ctx, q, id))
}

// List returns one page ordered by semester and title, with the total entry count.
func (r *CourseSQLite) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Course], error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&total); err != nil {
		return nil, err
	}

	const q = `SELECT ` + courseColumns + ` FROM courses ORDER BY semester, title, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Course]{Items: items, Total: total}, nil
}

// ListAll returns every entry ordered by ID.
func (r *CourseSQLite) ListAll(ctx context.Context) ([]model.Course, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// DeleteByRenderedPath removes an entry. Deleting a missing row is not an error.
func (r *CourseSQLite) DeleteByRenderedPath(ctx context.Context, renderedPath string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE html_path = ?`, renderedPath)
	return err
}

func collect(rows *sql.Rows) ([]model.Course, error) {
	defer rows.Close()

	items := make([]model.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
