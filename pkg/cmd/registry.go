// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/actionhub/pkg/connectors/postgres"
	"github.com/dukex/actionhub/pkg/connectors/redis"
	"github.com/dukex/actionhub/pkg/connectors/restapi"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/registry"
)

func registerNativeConnectors(log *slog.Logger, reg *registry.Registry) {
	reg.Register(restapi.PluginID, restapi.New(log))
	reg.Register(postgres.PluginID, postgres.New(log))
	reg.Register(redis.PluginID, redis.New(log))
}

// NewRegistry registers the built-in connectors and then every artifact
// already present in pluginsPath.
func NewRegistry(ctx context.Context, log *slog.Logger, pluginsPath string) (*registry.Registry, error) {
	reg := registry.NewRegistry(log)

	registerNativeConnectors(log, reg)

	if _, err := reg.LoadPlugins(ctx, pluginsPath); err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}

	return reg, nil
}

// BuiltinPlugins describes the connectors shipped with the binary. They are
// granted to every new organization by default.
func BuiltinPlugins() []*models.Plugin {
	return []*models.Plugin{
		{
			ID:             restapi.PluginID,
			Name:           "REST API",
			Description:    "Calls HTTP endpoints relative to a base URL",
			Type:           models.PluginTypeBuiltin,
			DefaultInstall: true,
		},
		{
			ID:             postgres.PluginID,
			Name:           "PostgreSQL",
			Description:    "Runs SQL queries against a PostgreSQL database",
			Type:           models.PluginTypeBuiltin,
			DefaultInstall: true,
		},
		{
			ID:             redis.PluginID,
			Name:           "Redis",
			Description:    "Sends commands to a Redis server",
			Type:           models.PluginTypeBuiltin,
			DefaultInstall: true,
		},
	}
}
