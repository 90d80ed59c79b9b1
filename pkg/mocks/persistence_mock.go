package mocks

import (
	"context"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence.
type MockPersistence struct {
	mock.Mock

	Actions             *MockActionRepository
	Datasources         *MockDatasourceRepository
	Plugins             *MockPluginRepository
	OrganizationPlugins *MockOrganizationPluginRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Actions:             &MockActionRepository{},
		Datasources:         &MockDatasourceRepository{},
		Plugins:             &MockPluginRepository{},
		OrganizationPlugins: &MockOrganizationPluginRepository{},
	}
}

func (m *MockPersistence) ActionRepository() persistence.ActionRepository {
	return m.Actions
}

func (m *MockPersistence) DatasourceRepository() persistence.DatasourceRepository {
	return m.Datasources
}

func (m *MockPersistence) PluginRepository() persistence.PluginRepository {
	return m.Plugins
}

func (m *MockPersistence) OrganizationPluginRepository() persistence.OrganizationPluginRepository {
	return m.OrganizationPlugins
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockActionRepository is a mock implementation of persistence.ActionRepository.
type MockActionRepository struct {
	mock.Mock
}

func (m *MockActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Action), args.Error(1)
}

func (m *MockActionRepository) Save(ctx context.Context, action *models.Action) error {
	args := m.Called(ctx, action)

	return args.Error(0)
}

func (m *MockActionRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockActionRepository) ListByDatasource(ctx context.Context, datasourceID string) ([]*models.Action, error) {
	args := m.Called(ctx, datasourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Action), args.Error(1)
}

// MockDatasourceRepository is a mock implementation of persistence.DatasourceRepository.
type MockDatasourceRepository struct {
	mock.Mock
}

func (m *MockDatasourceRepository) GetByID(ctx context.Context, id string) (*models.Datasource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Datasource), args.Error(1)
}

func (m *MockDatasourceRepository) Save(ctx context.Context, datasource *models.Datasource) error {
	args := m.Called(ctx, datasource)

	return args.Error(0)
}

// MockPluginRepository is a mock implementation of persistence.PluginRepository.
type MockPluginRepository struct {
	mock.Mock
}

func (m *MockPluginRepository) GetByID(ctx context.Context, id string) (*models.Plugin, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Plugin), args.Error(1)
}

func (m *MockPluginRepository) GetAll(ctx context.Context, pluginType models.PluginType) ([]*models.Plugin, error) {
	args := m.Called(ctx, pluginType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Plugin), args.Error(1)
}

func (m *MockPluginRepository) Save(ctx context.Context, plugin *models.Plugin) error {
	args := m.Called(ctx, plugin)

	return args.Error(0)
}

// MockOrganizationPluginRepository is a mock implementation of persistence.OrganizationPluginRepository.
type MockOrganizationPluginRepository struct {
	mock.Mock
}

func (m *MockOrganizationPluginRepository) Get(ctx context.Context, organizationID, pluginID string) (*models.OrganizationPlugin, error) {
	args := m.Called(ctx, organizationID, pluginID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.OrganizationPlugin), args.Error(1)
}

func (m *MockOrganizationPluginRepository) Create(ctx context.Context, record *models.OrganizationPlugin) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockOrganizationPluginRepository) UpdateStatus(ctx context.Context, organizationID, pluginID string, status models.PluginStatus) error {
	args := m.Called(ctx, organizationID, pluginID, status)

	return args.Error(0)
}

func (m *MockOrganizationPluginRepository) Delete(ctx context.Context, organizationID, pluginID string) error {
	args := m.Called(ctx, organizationID, pluginID)

	return args.Error(0)
}

func (m *MockOrganizationPluginRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.OrganizationPlugin, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.OrganizationPlugin), args.Error(1)
}

func (m *MockOrganizationPluginRepository) ListByStatus(ctx context.Context, status models.PluginStatus) ([]*models.OrganizationPlugin, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.OrganizationPlugin), args.Error(1)
}
