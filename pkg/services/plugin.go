package services

import (
	"context"
	"fmt"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
)

type Plugin struct {
	persistence persistence.Persistence
}

func NewPlugin(persistence persistence.Persistence) *Plugin {
	return &Plugin{persistence: persistence}
}

// List returns every plugin, filtered by type when pluginType is not empty.
func (s *Plugin) List(ctx context.Context, pluginType models.PluginType) ([]*models.Plugin, error) {
	plugins, err := s.persistence.PluginRepository().GetAll(ctx, pluginType)
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}

	return plugins, nil
}

// ListForOrganization returns the plugins installed for an organization.
func (s *Plugin) ListForOrganization(ctx context.Context, organizationID string, pluginType models.PluginType) ([]*models.Plugin, error) {
	records, err := s.persistence.OrganizationPluginRepository().ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installation records: %w", err)
	}

	installed := make(map[string]bool, len(records))
	for _, record := range records {
		if record.Status == models.PluginStatusInstalled {
			installed[record.PluginID] = true
		}
	}

	plugins, err := s.List(ctx, pluginType)
	if err != nil {
		return nil, err
	}

	result := make([]*models.Plugin, 0, len(installed))
	for _, plugin := range plugins {
		if installed[plugin.ID] {
			result = append(result, plugin)
		}
	}

	return result, nil
}

// EnsureRegistered saves the descriptors that are not stored yet.
func (s *Plugin) EnsureRegistered(ctx context.Context, plugins ...*models.Plugin) error {
	repo := s.persistence.PluginRepository()

	for _, plugin := range plugins {
		_, err := repo.GetByID(ctx, plugin.ID)
		if err == nil {
			continue
		}

		if !persistence.IsNotFound(err) {
			return fmt.Errorf("failed to load plugin %s: %w", plugin.ID, err)
		}

		if err := repo.Save(ctx, plugin); err != nil {
			return fmt.Errorf("failed to save plugin %s: %w", plugin.ID, err)
		}
	}

	return nil
}
