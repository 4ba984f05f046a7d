package mocks

import (
	"context"

	"coursesync/internal/render"

	"github.com/stretchr/testify/mock"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) error {
	ret := m.Called(ctx, name, args)
	return ret.Error(0)
}

type MockMarkupRenderer struct {
	mock.Mock
}

func (m *MockMarkupRenderer) RenderMarkup(ctx context.Context, job render.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

type MockPrintRenderer struct {
	mock.Mock
}

func (m *MockPrintRenderer) RenderPrint(ctx context.Context, job render.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}
