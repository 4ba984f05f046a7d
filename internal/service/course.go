package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"time"

	"coursesync/internal/model"
	"coursesync/internal/repository"
	"coursesync/internal/storage"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrNotFound        = errors.New("course not found")
	ErrArtifactMissing = errors.New("artifact not available")
)

// PresignExpiry bounds the lifetime of download links handed out for published artifacts.
const PresignExpiry = 15 * time.Minute

// ArtifactKind names one of the two generated files of a course.
type ArtifactKind string

const (
	ArtifactHTML ArtifactKind = "html"
	ArtifactPDF  ArtifactKind = "pdf"
)

// Artifact tells the caller where to read a generated file from.
// Exactly one of Body, URL and Path is set. The caller closes Body.
type Artifact struct {
	Course      *model.Course
	ContentType string
	Body        io.ReadCloser
	URL         string
	Path        string
}

// CourseListResult is the service-level DTO for paginated courses.
type CourseListResult struct {
	Items []model.Course `json:"data"`
	Total int            `json:"total"`
}

// CourseService exposes read access to the catalog and the generated artifacts.
type CourseService interface {
	// List returns courses using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*CourseListResult, error)

	// Get returns a single course by its ID.
	Get(ctx context.Context, id int64) (*model.Course, error)

	// Artifact locates the HTML or PDF file of a course. HTML is streamed from
	// object storage, PDF is served through a presigned link; both fall back to
	// the local file when storage is disabled or does not have the object.
	Artifact(ctx context.Context, id int64, kind ArtifactKind) (*Artifact, error)
}

type courseService struct {
	repo  repository.CourseRepository
	store storage.Storage
}

// NewCourseService constructs a CourseService. store may be nil.
func NewCourseService(repo repository.CourseRepository, store storage.Storage) CourseService {
	return &courseService{repo: repo, store: store}
}

func (s *courseService) List(ctx context.Context, limit, offset int) (*CourseListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &CourseListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *courseService) Get(ctx context.Context, id int64) (*model.Course, error) {
	if id <= 0 {
		return nil, ErrIDRequired
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *courseService) Artifact(ctx context.Context, id int64, kind ArtifactKind) (*Artifact, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	local := c.RenderedPath
	if kind == ArtifactPDF {
		local = c.PrintablePath
	}
	a := &Artifact{Course: c, ContentType: storage.ContentType(local)}

	if s.store != nil {
		key := storage.ArtifactKey(c.Semester, c.Title, local)
		switch kind {
		case ArtifactPDF:
			if _, err := s.store.Stat(ctx, key); err == nil {
				if url, err := s.store.PresignGet(ctx, key, PresignExpiry); err == nil {
					a.URL = url
					return a, nil
				}
			}
		default:
			if body, _, err := s.store.Get(ctx, key); err == nil {
				a.Body = body
				return a, nil
			}
		}
	}

	if _, err := os.Stat(local); err != nil {
		return nil, ErrArtifactMissing
	}
	a.Path = local
	return a, nil
}
