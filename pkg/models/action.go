// Package models defines the domain models for actions, datasources and plugins.
package models

import "time"

// DefaultActionTimeoutMs bounds a connector call when the action sets no timeout.
const DefaultActionTimeoutMs = 10000

// Configuration is a JSON-shaped configuration tree.
type Configuration map[string]any

// Action is a parameterized call to an external resource through a datasource.
type Action struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"                      validate:"required,min=1,max=255"`
	OrganizationID  string        `json:"organization_id"`
	PageID          string        `json:"page_id,omitempty"`
	Configuration   Configuration `json:"configuration"`
	DatasourceID    string        `json:"datasource_id,omitempty"`
	Datasource      *Datasource   `json:"datasource,omitempty"`
	TimeoutMs       *int          `json:"timeout_ms,omitempty"`
	IsValid         bool          `json:"is_valid"`
	Invalids        []string      `json:"invalids,omitempty"`
	PlaceholderKeys []string      `json:"placeholder_keys,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Timeout returns the effective timeout in milliseconds.
func (a *Action) Timeout() int {
	if a.TimeoutMs == nil || *a.TimeoutMs <= 0 {
		return DefaultActionTimeoutMs
	}

	return *a.TimeoutMs
}

// Param is a runtime key/value pair supplied when executing an action.
// A nil Value means the caller sent null.
type Param struct {
	Key   string  `json:"key"   validate:"required"`
	Value *string `json:"value"`
}

// ExecuteActionRequest asks for an action to be run, either by id or inline.
type ExecuteActionRequest struct {
	ActionID string  `json:"action_id,omitempty"`
	Action   *Action `json:"action,omitempty"`
	Params   []Param `json:"params"`
}
