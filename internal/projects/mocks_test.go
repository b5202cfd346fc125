package projects

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertProject(ctx context.Context, p *Project) (*Project, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Project), args.Error(1)
}

func (m *MockRepository) UpdateProject(ctx context.Context, id int64, p *Project) (*Project, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Project), args.Error(1)
}

func (m *MockRepository) DeleteProject(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Project), args.Error(1)
}

func (m *MockRepository) GetProject(ctx context.Context, id int64) (*Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Project), args.Error(1)
}

func (m *MockRepository) ListEmployees(ctx context.Context) ([]Employee, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Employee), args.Error(1)
}

func (m *MockRepository) ListLocations(ctx context.Context) ([]Location, error) {
	args := m.Called(ctx)
	return args.Get(0).([]Location), args.Error(1)
}

func (m *MockRepository) LogActivity(ctx context.Context, activity *ProjectActivity) error {
	args := m.Called(ctx, activity)
	return args.Error(0)
}

// MockUploader is a mock implementation of the Uploader interface
type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, body io.Reader, projectName, fileName, contentType string) (string, error) {
	args := m.Called(ctx, body, projectName, fileName, contentType)
	return args.String(0), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyProjectsChanged(projectID int64, notice, status string) error {
	args := m.Called(projectID, notice, status)
	return args.Error(0)
}

// staticReference serves a fixed reference load
type staticReference struct {
	data ReferenceData
	err  error
}

func (s staticReference) Reference(ctx context.Context) (ReferenceData, error) {
	return s.data, s.err
}
