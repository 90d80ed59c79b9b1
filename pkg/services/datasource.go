package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/dukex/actionhub/pkg/template"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// ConnectorResolver finds the connector active for a plugin.
type ConnectorResolver interface {
	Resolve(pluginID string) (protocol.Connector, error)
}

// ConnectionInvalidator drops cached connections of a datasource.
type ConnectionInvalidator interface {
	Invalidate(datasourceID string)
}

type Datasource struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	connectors  ConnectorResolver
	connections ConnectionInvalidator
}

// NewDatasource creates a datasource service. connections may be nil.
func NewDatasource(logger *slog.Logger, persistence persistence.Persistence, connectors ConnectorResolver, connections ConnectionInvalidator) *Datasource {
	return &Datasource{
		logger:      logger.With("module", "datasource_service"),
		persistence: persistence,
		connectors:  connectors,
		connections: connections,
	}
}

func (s *Datasource) Create(ctx context.Context, datasource *models.Datasource) (*models.Datasource, error) {
	if datasource.ID != "" {
		return nil, newValidationError("create datasource", ErrIDNotAllowed)
	}

	if strings.TrimSpace(datasource.Name) == "" {
		return nil, newValidationError("create datasource", ErrNameRequired)
	}

	now := time.Now().UTC()
	datasource.ID = uuid.New().String()
	datasource.CreatedAt = now
	datasource.UpdatedAt = now

	s.validate(ctx, datasource)

	if err := s.persistence.DatasourceRepository().Save(ctx, datasource); err != nil {
		return nil, protocol.NewRepositorySaveError("failed to save datasource", err)
	}

	s.logger.InfoContext(ctx, "Datasource created", "datasource_id", datasource.ID, "is_valid", *datasource.IsValid)

	return datasource, nil
}

// Update replaces the name, plugin and configuration of a datasource. Cached
// connections to it are dropped.
func (s *Datasource) Update(ctx context.Context, id string, update *models.Datasource) (*models.Datasource, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != "" {
		existing.Name = update.Name
	}

	if update.PluginID != "" {
		existing.PluginID = update.PluginID
	}

	if update.Configuration != nil {
		existing.Configuration = update.Configuration
	}

	existing.UpdatedAt = time.Now().UTC()
	s.validate(ctx, existing)

	if err := s.persistence.DatasourceRepository().Save(ctx, existing); err != nil {
		return nil, protocol.NewRepositorySaveError("failed to save datasource", err)
	}

	if s.connections != nil {
		s.connections.Invalidate(existing.ID)
	}

	s.refreshActionKeys(ctx, existing)

	return existing, nil
}

// refreshActionKeys recomputes the placeholder keys of every action bound to
// datasource. Failures are logged.
func (s *Datasource) refreshActionKeys(ctx context.Context, datasource *models.Datasource) {
	actions, err := s.persistence.ActionRepository().ListByDatasource(ctx, datasource.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list actions for datasource", "datasource_id", datasource.ID, "error", err)

		return
	}

	datasourceKeys := s.ExtractKeys(datasource)

	for _, action := range actions {
		action.PlaceholderKeys = template.MergeKeys(
			template.ExtractPlaceholdersWithLogger(action.Configuration, s.logger),
			datasourceKeys,
		)

		if err := s.persistence.ActionRepository().Save(ctx, action); err != nil {
			s.logger.ErrorContext(ctx, "Failed to refresh action placeholder keys",
				"action_id", action.ID,
				"datasource_id", datasource.ID,
				"error", err,
			)
		}
	}
}

func (s *Datasource) Get(ctx context.Context, id string) (*models.Datasource, error) {
	datasource, err := s.persistence.DatasourceRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, protocol.NewResourceNotFoundError(fmt.Sprintf("no resource found with datasource id '%s'", id))
		}

		return nil, err
	}

	return datasource, nil
}

// ExtractKeys returns the placeholders used in the datasource configuration.
func (s *Datasource) ExtractKeys(datasource *models.Datasource) []string {
	if datasource == nil || datasource.Configuration == nil {
		return []string{}
	}

	return template.ExtractPlaceholdersWithLogger(datasource.Configuration, s.logger)
}

// validate sets IsValid and Invalids. The configuration is checked against
// the connector schema only when the connector is active in this process.
func (s *Datasource) validate(ctx context.Context, datasource *models.Datasource) {
	invalids := []string{}

	if datasource.PluginID == "" {
		invalids = append(invalids, ReasonPluginNotGiven)
	} else if _, err := s.persistence.PluginRepository().GetByID(ctx, datasource.PluginID); err != nil {
		invalids = append(invalids, pluginNotFoundReason(datasource.PluginID))
	}

	if len(invalids) == 0 {
		invalids = append(invalids, s.schemaErrors(ctx, datasource)...)
	}

	valid := len(invalids) == 0
	datasource.IsValid = &valid
	datasource.Invalids = invalids
}

func (s *Datasource) schemaErrors(ctx context.Context, datasource *models.Datasource) []string {
	connector, err := s.connectors.Resolve(datasource.PluginID)
	if err != nil {
		s.logger.DebugContext(ctx, "Connector not active, skipping schema validation", "plugin_id", datasource.PluginID)

		return nil
	}

	provider, ok := connector.(protocol.SchemaProvider)
	if !ok {
		return nil
	}

	schema := provider.DatasourceSchema()
	if schema == nil {
		return nil
	}

	config := datasource.Configuration
	if config == nil {
		config = models.Configuration{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to validate datasource configuration", "plugin_id", datasource.PluginID, "error", err)

		return []string{"Datasource schema could not be evaluated: " + err.Error()}
	}

	var errs []string
	for _, resultErr := range result.Errors() {
		errs = append(errs, resultErr.String())
	}

	return errs
}
