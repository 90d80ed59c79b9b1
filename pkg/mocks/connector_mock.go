package mocks

import (
	"context"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockConnector is a mock implementation of protocol.Connector.
type MockConnector struct {
	mock.Mock

	PluginID string
}

func (m *MockConnector) ID() string {
	return m.PluginID
}

func (m *MockConnector) Execute(ctx context.Context, conn any, datasourceConfig, actionConfig models.Configuration) (any, error) {
	args := m.Called(ctx, conn, datasourceConfig, actionConfig)

	return args.Get(0), args.Error(1)
}

// MockPooledConnector also implements protocol.ConnectionFactory.
type MockPooledConnector struct {
	MockConnector
}

func (m *MockPooledConnector) Connect(ctx context.Context, datasourceConfig models.Configuration) (any, error) {
	args := m.Called(ctx, datasourceConfig)

	return args.Get(0), args.Error(1)
}

func (m *MockPooledConnector) Disconnect(conn any) error {
	args := m.Called(conn)

	return args.Error(0)
}
