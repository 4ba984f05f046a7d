package repository

import (
	"context"
	"time"

	"coursesync/internal/model"
)

// CourseRepository defines catalog data access using SQL queries only.
// Persistence only, no business logic.
// Lookups that find nothing return sql.ErrNoRows.
type CourseRepository interface {
	// FindByRenderedPath returns the entry keyed by its rendered HTML path.
	FindByRenderedPath(ctx context.Context, renderedPath string) (*model.Course, error)

	// Insert stores a new entry and returns it with its generated ID. LastUpdate is stored as NULL.
	Insert(ctx context.Context, c *model.Course) (*model.Course, error)

	// UpdateSizeAndTimestamp sets size and last_update on the entry keyed by renderedPath.
	UpdateSizeAndTimestamp(ctx context.Context, renderedPath string, size int64, lastUpdate time.Time) error

	// FindByID returns an entry by its generated ID.
	FindByID(ctx context.Context, id int64) (*model.Course, error)

	// List returns a paginated list of entries and the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Course], error)

	// ListAll returns every entry, for reconciliation against the source tree.
	ListAll(ctx context.Context) ([]model.Course, error)

	// DeleteByRenderedPath removes an entry. It returns nil if the row was deleted or did not exist.
	DeleteByRenderedPath(ctx context.Context, renderedPath string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
