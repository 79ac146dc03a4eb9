package mocks

import (
	"io"
	"os"

	"github.com/stretchr/testify/mock"
)

// MockFileOperations is a mock implementation of the FileOperations interface
type MockFileOperations struct {
	mock.Mock
}

func (m *MockFileOperations) IsFileExists(filePath string) (bool, error) {
	args := m.Called(filePath)
	return args.Bool(0), args.Error(1)
}

func (m *MockFileOperations) ReadFileRaw(filePath string) ([]byte, error) {
	args := m.Called(filePath)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockFileOperations) ReadYamlFile(filePath string, v any) error {
	args := m.Called(filePath, v)
	return args.Error(0)
}

func (m *MockFileOperations) WriteJsonFile(filePath string, data any) error {
	args := m.Called(filePath, data)
	return args.Error(0)
}

func (m *MockFileOperations) WriteStreamAtomic(filePath string, r io.Reader) (int64, error) {
	args := m.Called(filePath, r)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFileOperations) ListRegularFiles(dir string) ([]os.FileInfo, error) {
	args := m.Called(dir)
	infos, _ := args.Get(0).([]os.FileInfo)
	return infos, args.Error(1)
}

func (m *MockFileOperations) RemoveFile(filePath string) error {
	args := m.Called(filePath)
	return args.Error(0)
}
