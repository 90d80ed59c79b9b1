package web

import "github.com/dukex/actionhub/pkg/models"

// ExecuteActionRequest is the body of POST /actions/execute. Either ActionID
// or Action must be given; the service reports which one is missing.
type ExecuteActionRequest struct {
	ActionID string         `json:"action_id,omitempty" validate:"omitempty,max=255"`
	Action   *models.Action `json:"action,omitempty"    validate:"-"`
	Params   []models.Param `json:"params"              validate:"dive"`
}

func (r *ExecuteActionRequest) toModel() *models.ExecuteActionRequest {
	return &models.ExecuteActionRequest{
		ActionID: r.ActionID,
		Action:   r.Action,
		Params:   r.Params,
	}
}

// PluginRequest is the body of the install and uninstall endpoints.
type PluginRequest struct {
	PluginID string `json:"pluginId" validate:"max=255"`
}

type DatasourceRequest struct {
	Name          string               `json:"name"          validate:"required,min=1,max=255"`
	PluginID      string               `json:"plugin_id"     validate:"required"`
	Configuration models.Configuration `json:"configuration"`
}

func (r *DatasourceRequest) toModel(organizationID string) *models.Datasource {
	return &models.Datasource{
		Name:           r.Name,
		PluginID:       r.PluginID,
		OrganizationID: organizationID,
		Configuration:  r.Configuration,
	}
}

// UpdateDatasourceRequest fields are optional; only the ones sent change.
type UpdateDatasourceRequest struct {
	Name          *string              `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Configuration models.Configuration `json:"configuration,omitempty"`
}

type CreateActionRequest struct {
	Name          string               `json:"name"                    validate:"required,min=1,max=255"`
	PageID        string               `json:"page_id,omitempty"`
	Configuration models.Configuration `json:"configuration"`
	DatasourceID  string               `json:"datasource_id,omitempty"`
	Datasource    *DatasourceRequest   `json:"datasource,omitempty"    validate:"omitempty"`
	TimeoutMs     *int                 `json:"timeout_ms,omitempty"    validate:"omitempty,min=1"`
}

func (r *CreateActionRequest) toModel(organizationID string) *models.Action {
	action := &models.Action{
		Name:           r.Name,
		OrganizationID: organizationID,
		PageID:         r.PageID,
		Configuration:  r.Configuration,
		DatasourceID:   r.DatasourceID,
		TimeoutMs:      r.TimeoutMs,
	}

	if r.Datasource != nil {
		action.Datasource = r.Datasource.toModel(organizationID)
	}

	return action
}

// UpdateActionRequest fields are optional; only the ones sent change.
type UpdateActionRequest struct {
	Name          *string              `json:"name,omitempty"          validate:"omitempty,min=1,max=255"`
	PageID        *string              `json:"page_id,omitempty"`
	Configuration models.Configuration `json:"configuration,omitempty"`
	DatasourceID  *string              `json:"datasource_id,omitempty"`
	TimeoutMs     *int                 `json:"timeout_ms,omitempty"    validate:"omitempty,min=1"`
}

func (r *UpdateActionRequest) toModel() *models.Action {
	action := &models.Action{
		Configuration: r.Configuration,
		TimeoutMs:     r.TimeoutMs,
	}

	if r.Name != nil {
		action.Name = *r.Name
	}

	if r.PageID != nil {
		action.PageID = *r.PageID
	}

	if r.DatasourceID != nil {
		action.DatasourceID = *r.DatasourceID
	}

	return action
}
