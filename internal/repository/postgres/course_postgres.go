package postgres

import (
	"context"
	"database/sql"
	"time"

	"coursesync/internal/model"
	"coursesync/internal/repository"
)

// CoursePostgres is a PostgreSQL implementation of repository.CourseRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type CoursePostgres struct {
	db *sql.DB
}

// NewCoursePostgres creates a new CoursePostgres repository.
func NewCoursePostgres(db *sql.DB) *CoursePostgres {
	return &CoursePostgres{db: db}
}

var _ repository.CourseRepository = (*CoursePostgres)(nil)

const courseColumns = `id, title, author, semester, path, html_path, pdf_path, size, date, last_update`

type scanner interface {
	Scan(dest ...any) error
}

func scanCourse(row scanner) (*model.Course, error) {
	var (
		c          model.Course
		lastUpdate sql.NullTime
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
		&c.ModifiedAt,
		&lastUpdate,
	); err != nil {
		return nil, err
	}
	if lastUpdate.Valid {
		t := lastUpdate.Time
		c.LastUpdate = &t
	}
	return &c, nil
}

// FindByRenderedPath fetches the entry whose html_path equals renderedPath.
func (r *CoursePostgres) FindByRenderedPath(ctx context.Context, renderedPath string) (*model.Course, error) {
	const q = `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE html_path = $1
	`
	return scanCourse(r.db.QueryRowContext(ctx, q, renderedPath))
}

// Insert adds a new entry and returns the stored record.
func (r *CoursePostgres) Insert(ctx context.Context, c *model.Course) (*model.Course, error) {
	const q = `
		INSERT INTO courses (title, author, semester, path, html_path, pdf_path, size, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + courseColumns
	row := r.db.QueryRowContext(ctx, q,
		c.Title,
		c.Author,
		c.Semester,
		c.SourcePath,
		c.RenderedPath,
		c.PrintablePath,
		c.SizeBytes,
		c.ModifiedAt,
	)
	return scanCourse(row)
}

// UpdateSizeAndTimestamp touches only size and last_update; an unknown path returns sql.ErrNoRows.
func (r *CoursePostgres) UpdateSizeAndTimestamp(ctx context.Context, renderedPath string, size int64, lastUpdate time.Time) error {
	const q = `UPDATE courses SET size = $1, last_update = $2 WHERE html_path = $3`
	res, err := r.db.ExecContext(ctx, q, size, lastUpdate, renderedPath)
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
func (r *CoursePostgres) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	const q = `
		SELECT ` + courseColumns + `
		FROM courses
		WHERE id = $1
	`
	return scanCourse(r.db.QueryRowContext(ctx, q, id))
}

// List returns entries using LIMIT/OFFSET pagination and a total count.
func (r *CoursePostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Course], error) {
	const qCount = `SELECT COUNT(*) FROM courses`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + courseColumns + `
		FROM courses
		ORDER BY semester, title, id
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Course]{
		Items: items,
		Total: total,
	}, nil
}

// ListAll returns every entry ordered by ID.
func (r *CoursePostgres) ListAll(ctx context.Context) ([]model.Course, error) {
	const q = `SELECT ` + courseColumns + ` FROM courses ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// DeleteByRenderedPath removes an entry. It does not return an error if the row does not exist.
func (r *CoursePostgres) DeleteByRenderedPath(ctx context.Context, renderedPath string) error {
	const q = `DELETE FROM courses WHERE html_path = $1`
	_, err := r.db.ExecContext(ctx, q, renderedPath)
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
