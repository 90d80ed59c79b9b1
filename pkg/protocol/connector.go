// Package protocol defines the capability contract every connector implements.
package protocol

import (
	"context"

	"github.com/dukex/actionhub/pkg/models"
)

// Connector executes an action against an external resource.
type Connector interface {
	// ID returns the plugin identifier the connector is registered under.
	ID() string

	// Execute runs the call. conn is the handle returned by ConnectionFactory.Connect,
	// or nil when the connector does not manage connections.
	Execute(ctx context.Context, conn any, datasourceConfig, actionConfig models.Configuration) (any, error)
}

// ConnectionFactory is implemented by connectors holding a reusable connection
// per datasource.
type ConnectionFactory interface {
	Connect(ctx context.Context, datasourceConfig models.Configuration) (any, error)
	Disconnect(conn any) error
}

// SchemaProvider is implemented by connectors that can validate datasource
// configurations.
type SchemaProvider interface {
	DatasourceSchema() *models.JSONSchema
}
