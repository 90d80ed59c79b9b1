// Package installation grants plugins to organizations and makes every
// running instance activate them.
package installation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/actionhub/pkg/eventbus"
	"github.com/dukex/actionhub/pkg/events"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/protocol"
)

var transitions = map[models.PluginStatus][]models.PluginStatus{
	models.PluginStatusNotInstalled: {models.PluginStatusInstalling},
	models.PluginStatusInstalling:   {models.PluginStatusInstalled, models.PluginStatusFailed},
	models.PluginStatusFailed:       {models.PluginStatusNotInstalled},
}

// ValidTransition reports whether an installation record may move from one
// status to another.
func ValidTransition(from, to models.PluginStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Coordinator is the only writer of installation records.
type Coordinator struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	instanceID  string
	staleAfter  time.Duration
	now         func() time.Time
}

// DefaultStaleInstallAfter is how long an INSTALLING record may stay
// unchanged before another Install takes it over.
const DefaultStaleInstallAfter = 2 * time.Minute

type CoordinatorOption func(*Coordinator)

// WithStaleInstallAfter sets when an INSTALLING record is considered abandoned.
func WithStaleInstallAfter(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.staleAfter = d
	}
}

// WithCoordinatorClock replaces time.Now.
func WithCoordinatorClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(
	logger *slog.Logger,
	persistence persistence.Persistence,
	publisher eventbus.EventPublisher,
	instanceID string,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		logger:      logger.With("module", "installation_coordinator"),
		persistence: persistence,
		publisher:   publisher,
		instanceID:  instanceID,
		staleAfter:  DefaultStaleInstallAfter,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Install grants pluginID to the organization and broadcasts the install
// request. The record is marked INSTALLED once the request is published,
// without waiting for any instance to activate the plugin.
func (c *Coordinator) Install(ctx context.Context, organizationID, pluginID string) (*models.Organization, error) {
	if pluginID == "" {
		return nil, protocol.NewArgumentError(protocol.CodePluginIDNotGiven, "plugin id was not given")
	}

	if _, err := c.plugin(ctx, pluginID); err != nil {
		return nil, err
	}

	records := c.persistence.OrganizationPluginRepository()

	existing, err := records.Get(ctx, organizationID, pluginID)
	switch {
	case err == nil:
		switch {
		case existing.Status == models.PluginStatusInstalled,
			existing.Status == models.PluginStatusInstalling && !c.stale(existing):
			c.logger.DebugContext(ctx, "Plugin already granted",
				"organization_id", organizationID,
				"plugin_id", pluginID,
				"status", existing.Status,
			)

			return c.Organization(ctx, organizationID)
		default:
			// FAILED, NOT_INSTALLED and abandoned INSTALLING records are
			// cleared so the install can be retried.
			c.logger.InfoContext(ctx, "Retrying plugin installation",
				"organization_id", organizationID,
				"plugin_id", pluginID,
				"status", existing.Status,
			)

			if err := records.Delete(ctx, organizationID, pluginID); err != nil && !persistence.IsNotFound(err) {
				return nil, protocol.NewRepositorySaveError("failed to clear installation record", err)
			}
		}
	case !persistence.IsNotFound(err):
		return nil, fmt.Errorf("failed to load installation record: %w", err)
	}

	record := &models.OrganizationPlugin{
		OrganizationID: organizationID,
		PluginID:       pluginID,
		Status:         models.PluginStatusInstalling,
		UpdatedAt:      time.Now().UTC(),
	}

	if err := records.Create(ctx, record); err != nil {
		if errors.Is(err, persistence.ErrOrganizationPluginAlreadyExists) {
			// Another request won the race and owns the installation.
			return c.Organization(ctx, organizationID)
		}

		return nil, protocol.NewRepositorySaveError("failed to create installation record", err)
	}

	if err := c.publisher.Publish(ctx, organizationID, events.NewPluginInstallRequested(c.instanceID, record)); err != nil {
		c.logger.ErrorContext(ctx, "Failed to broadcast plugin install",
			"organization_id", organizationID,
			"plugin_id", pluginID,
			"error", err,
		)

		if updateErr := c.transition(ctx, record, models.PluginStatusFailed); updateErr != nil {
			c.logger.ErrorContext(ctx, "Failed to mark installation as failed", "error", updateErr)
		}

		return nil, protocol.NewPluginInstallationError(
			protocol.CodeInstallationPublishFailed,
			fmt.Sprintf("failed to broadcast installation of plugin '%s'", pluginID),
			err,
		)
	}

	if err := c.transition(ctx, record, models.PluginStatusInstalled); err != nil {
		if updateErr := c.transition(ctx, record, models.PluginStatusFailed); updateErr != nil {
			c.logger.ErrorContext(ctx, "Failed to mark installation as failed", "error", updateErr)
		}

		return nil, protocol.NewRepositorySaveError("failed to mark plugin as installed", err)
	}

	c.logger.InfoContext(ctx, "Plugin installed",
		"organization_id", organizationID,
		"plugin_id", pluginID,
	)

	return c.Organization(ctx, organizationID)
}

// Uninstall removes the installation record. Instances keep the connector
// active until they restart.
func (c *Coordinator) Uninstall(ctx context.Context, organizationID, pluginID string) (*models.Organization, error) {
	if pluginID == "" {
		return nil, protocol.NewArgumentError(protocol.CodePluginIDNotGiven, "plugin id was not given")
	}

	err := c.persistence.OrganizationPluginRepository().Delete(ctx, organizationID, pluginID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, protocol.NewArgumentError(
				protocol.CodePluginNotInstalled,
				fmt.Sprintf("plugin '%s' is not installed for organization '%s'", pluginID, organizationID),
			)
		}

		return nil, protocol.NewRepositorySaveError("failed to remove installation record", err)
	}

	c.logger.InfoContext(ctx, "Plugin uninstalled",
		"organization_id", organizationID,
		"plugin_id", pluginID,
	)

	return c.Organization(ctx, organizationID)
}

// InstallDefaults installs every plugin flagged for default installation.
func (c *Coordinator) InstallDefaults(ctx context.Context, organizationID string) (*models.Organization, error) {
	plugins, err := c.persistence.PluginRepository().GetAll(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}

	var errs []error

	for _, plugin := range plugins {
		if !plugin.DefaultInstall {
			continue
		}

		if _, err := c.Install(ctx, organizationID, plugin.ID); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s: %w", plugin.ID, err))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return c.Organization(ctx, organizationID)
}

// Organization returns the organization with its installation records.
func (c *Coordinator) Organization(ctx context.Context, organizationID string) (*models.Organization, error) {
	records, err := c.persistence.OrganizationPluginRepository().ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installation records: %w", err)
	}

	if records == nil {
		records = []*models.OrganizationPlugin{}
	}

	return &models.Organization{ID: organizationID, Plugins: records}, nil
}

func (c *Coordinator) plugin(ctx context.Context, pluginID string) (*models.Plugin, error) {
	plugin, err := c.persistence.PluginRepository().GetByID(ctx, pluginID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, protocol.NewPluginNotFoundError(pluginID)
		}

		return nil, fmt.Errorf("failed to load plugin %s: %w", pluginID, err)
	}

	return plugin, nil
}

// stale reports whether an INSTALLING record was abandoned, e.g. by a crash
// between creating it and marking it INSTALLED.
func (c *Coordinator) stale(record *models.OrganizationPlugin) bool {
	return c.staleAfter > 0 && c.now().Sub(record.UpdatedAt) > c.staleAfter
}

func (c *Coordinator) transition(ctx context.Context, record *models.OrganizationPlugin, to models.PluginStatus) error {
	if !ValidTransition(record.Status, to) {
		return fmt.Errorf("illegal installation transition %s -> %s", record.Status, to)
	}

	err := c.persistence.OrganizationPluginRepository().UpdateStatus(ctx, record.OrganizationID, record.PluginID, to)
	if err != nil {
		return err
	}

	record.Status = to

	return nil
}
