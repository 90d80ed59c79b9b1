// Package persistence provides the storage abstraction for actions,
// datasources, plugins and installation records.
package persistence

import (
	"context"

	"github.com/dukex/actionhub/pkg/models"
)

type Persistence interface {
	ActionRepository() ActionRepository
	DatasourceRepository() DatasourceRepository
	PluginRepository() PluginRepository
	OrganizationPluginRepository() OrganizationPluginRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type ActionRepository interface {
	GetByID(ctx context.Context, id string) (*models.Action, error)
	Save(ctx context.Context, action *models.Action) error
	Delete(ctx context.Context, id string) error
	ListByDatasource(ctx context.Context, datasourceID string) ([]*models.Action, error)
}

type DatasourceRepository interface {
	GetByID(ctx context.Context, id string) (*models.Datasource, error)
	Save(ctx context.Context, datasource *models.Datasource) error
}

type PluginRepository interface {
	GetByID(ctx context.Context, id string) (*models.Plugin, error)
	// GetAll lists plugins, filtered by type when pluginType is not empty.
	GetAll(ctx context.Context, pluginType models.PluginType) ([]*models.Plugin, error)
	Save(ctx context.Context, plugin *models.Plugin) error
}

// OrganizationPluginRepository stores installation records, one per
// (organization, plugin) pair.
type OrganizationPluginRepository interface {
	Get(ctx context.Context, organizationID, pluginID string) (*models.OrganizationPlugin, error)
	// Create fails with ErrOrganizationPluginAlreadyExists when a record for
	// the pair exists. Only one concurrent caller can succeed.
	Create(ctx context.Context, record *models.OrganizationPlugin) error
	UpdateStatus(ctx context.Context, organizationID, pluginID string, status models.PluginStatus) error
	Delete(ctx context.Context, organizationID, pluginID string) error
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.OrganizationPlugin, error)
	ListByStatus(ctx context.Context, status models.PluginStatus) ([]*models.OrganizationPlugin, error)
}
