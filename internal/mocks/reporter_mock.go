package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gofab/printq-agent/internal/models"
	"github.com/gofab/printq-agent/pkg/identity"
)

// MockReporter is a mock implementation of the cloud.Reporter interface
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) Report(ctx context.Context, endpointPrefix string, cred identity.Credential, payload models.ReportPayload) ([]models.Command, error) {
	args := m.Called(ctx, endpointPrefix, cred, payload)
	cmds, _ := args.Get(0).([]models.Command)
	return cmds, args.Error(1)
}

// MockSettings is a mock implementation of utils.SettingsProvider
type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) EndpointPrefix() string {
	return m.Called().String(0)
}

func (m *MockSettings) AuthToken() string {
	return m.Called().String(0)
}

func (m *MockSettings) TokenDelimiter() string {
	return m.Called().String(0)
}
