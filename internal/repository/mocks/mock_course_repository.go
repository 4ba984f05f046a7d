package mocks

import (
	"context"
	"time"

	"coursesync/internal/model"
	"coursesync/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockCourseRepository struct {
	mock.Mock
}

func (m *MockCourseRepository) FindByRenderedPath(ctx context.Context, renderedPath string) (*model.Course, error) {
	args := m.Called(ctx, renderedPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseRepository) Insert(ctx context.Context, c *model.Course) (*model.Course, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseRepository) UpdateSizeAndTimestamp(ctx context.Context, renderedPath string, size int64, lastUpdate time.Time) error {
	args := m.Called(ctx, renderedPath, size, lastUpdate)
	return args.Error(0)
}

func (m *MockCourseRepository) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Course], error) {
	args := m.Called(ctx, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Course]), args.Error(1)
}

func (m *MockCourseRepository) ListAll(ctx context.Context) ([]model.Course, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Course), args.Error(1)
}

func (m *MockCourseRepository) DeleteByRenderedPath(ctx context.Context, renderedPath string) error {
	args := m.Called(ctx, renderedPath)
	return args.Error(0)
}
