package mocks

import (
	"context"

	"coursesync/internal/model"
	"coursesync/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) Refresh(ctx context.Context) (*service.RefreshResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RefreshResult), args.Error(1)
}

type MockCourseService struct {
	mock.Mock
}

func (m *MockCourseService) List(ctx context.Context, limit, offset int) (*service.CourseListResult, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CourseListResult), args.Error(1)
}

func (m *MockCourseService) Get(ctx context.Context, id int64) (*model.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *MockCourseService) Artifact(ctx context.Context, id int64, kind service.ArtifactKind) (*service.Artifact, error) {
	args := m.Called(ctx, id, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Artifact), args.Error(1)
}
