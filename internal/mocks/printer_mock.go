package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gofab/printq-agent/internal/models"
	"github.com/gofab/printq-agent/internal/printer"
)

// MockPrinter is a mock implementation of the printer.Printer interface
type MockPrinter struct {
	mock.Mock
}

func (m *MockPrinter) GetCurrentStatus(ctx context.Context) (models.StatusSnapshot, error) {
	args := m.Called(ctx)
	snapshot, _ := args.Get(0).(models.StatusSnapshot)
	return snapshot, args.Error(1)
}

func (m *MockPrinter) SelectAndPrint(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

func (m *MockPrinter) Cancel(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPrinter) Pause(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPrinter) Resume(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEventSource records the registered handler so tests can emit events.
type MockEventSource struct {
	Handlers []printer.EventHandler
}

func (m *MockEventSource) OnEvent(handler printer.EventHandler) {
	m.Handlers = append(m.Handlers, handler)
}

// Emit delivers event to every registered handler.
func (m *MockEventSource) Emit(event models.DeviceEvent) {
	for _, handler := range m.Handlers {
		handler(event)
	}
}

// MockJobFetcher is a mock implementation of the services.JobFetcher interface
type MockJobFetcher struct {
	mock.Mock
}

func (m *MockJobFetcher) FetchAndQueue(ctx context.Context, fileURL, fileName string) error {
	args := m.Called(ctx, fileURL, fileName)
	return args.Error(0)
}
