package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/dukex/actionhub/pkg/template"
	"github.com/google/uuid"
)

// Action names must be usable as identifiers by callers binding to them.
var actionNamePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

type Action struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	datasources *Datasource
}

func NewAction(logger *slog.Logger, persistence persistence.Persistence, datasources *Datasource) *Action {
	return &Action{
		logger:      logger.With("module", "action_service"),
		persistence: persistence,
		datasources: datasources,
	}
}

// Create saves a new action. Problems that do not prevent saving, such as a
// missing datasource, mark the action invalid instead of failing.
func (s *Action) Create(ctx context.Context, action *models.Action) (*models.Action, error) {
	if action.ID != "" {
		return nil, newValidationError("create action", ErrIDNotAllowed)
	}

	now := time.Now().UTC()
	action.ID = uuid.New().String()
	action.CreatedAt = now

	return s.validateAndSave(ctx, "create action", action)
}

// Update merges the given fields into the stored action and revalidates it.
func (s *Action) Update(ctx context.Context, id string, update *models.Action) (*models.Action, error) {
	if id == "" {
		return nil, newValidationError("update action", ErrIDRequired)
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Name != "" {
		existing.Name = update.Name
	}

	if update.Configuration != nil {
		existing.Configuration = update.Configuration
	}

	if update.Datasource != nil {
		existing.Datasource = update.Datasource
		existing.DatasourceID = ""
	} else if update.DatasourceID != "" {
		existing.DatasourceID = update.DatasourceID
	}

	if update.TimeoutMs != nil {
		existing.TimeoutMs = update.TimeoutMs
	}

	if update.PageID != "" {
		existing.PageID = update.PageID
	}

	return s.validateAndSave(ctx, "update action", existing)
}

func (s *Action) Get(ctx context.Context, id string) (*models.Action, error) {
	action, err := s.persistence.ActionRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, protocol.NewResourceNotFoundError(fmt.Sprintf("no resource found with action id '%s'", id))
		}

		return nil, err
	}

	return action, nil
}

func (s *Action) Delete(ctx context.Context, id string) (*models.Action, error) {
	action, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.persistence.ActionRepository().Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete action %s: %w", id, err)
	}

	return action, nil
}

func (s *Action) validateAndSave(ctx context.Context, op string, action *models.Action) (*models.Action, error) {
	if strings.TrimSpace(action.Name) == "" {
		return nil, newValidationError(op, ErrNameRequired)
	}

	invalids := []string{}

	if !actionNamePattern.MatchString(action.Name) {
		invalids = append(invalids, ReasonInvalidActionName)
	}

	if action.Configuration == nil {
		invalids = append(invalids, ReasonNoConfigurationInAction)
	}

	datasource, reasons, err := s.resolveDatasource(ctx, action)
	if err != nil {
		return nil, err
	}

	invalids = append(invalids, reasons...)

	action.PlaceholderKeys = template.MergeKeys(
		template.ExtractPlaceholdersWithLogger(action.Configuration, s.logger),
		s.datasources.ExtractKeys(datasource),
	)
	action.Datasource = nil
	action.IsValid = len(invalids) == 0
	action.Invalids = invalids
	action.UpdatedAt = time.Now().UTC()

	if err := s.persistence.ActionRepository().Save(ctx, action); err != nil {
		return nil, protocol.NewRepositorySaveError("failed to save action", err)
	}

	s.logger.InfoContext(ctx, "Action saved",
		"action_id", action.ID,
		"is_valid", action.IsValid,
		"placeholders", len(action.PlaceholderKeys),
	)

	return action, nil
}

// resolveDatasource creates an embedded unsaved datasource, or looks up the
// referenced one. Missing references become invalid reasons.
func (s *Action) resolveDatasource(ctx context.Context, action *models.Action) (*models.Datasource, []string, error) {
	if action.Datasource != nil && action.Datasource.ID == "" {
		created, err := s.datasources.Create(ctx, action.Datasource)
		if err != nil {
			return nil, nil, err
		}

		action.DatasourceID = created.ID

		return created, s.pluginReasons(ctx, created), nil
	}

	id := action.DatasourceID
	if id == "" && action.Datasource != nil {
		id = action.Datasource.ID
	}

	if id == "" {
		return nil, []string{ReasonDatasourceNotGiven}, nil
	}

	action.DatasourceID = id

	datasource, err := s.persistence.DatasourceRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, []string{datasourceNotFoundReason(id)}, nil
		}

		return nil, nil, fmt.Errorf("failed to load datasource %s: %w", id, err)
	}

	return datasource, s.pluginReasons(ctx, datasource), nil
}

func (s *Action) pluginReasons(ctx context.Context, datasource *models.Datasource) []string {
	if _, err := s.persistence.PluginRepository().GetByID(ctx, datasource.PluginID); err != nil {
		return []string{pluginNotFoundReason(datasource.PluginID)}
	}

	return nil
}
