package models

import "time"

// Datasource binds a plugin to a connection configuration.
type Datasource struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"            validate:"required,min=1"`
	OrganizationID string        `json:"organization_id"`
	PluginID       string        `json:"plugin_id"       validate:"required"`
	Configuration  Configuration `json:"configuration"`
	IsValid        *bool         `json:"is_valid,omitempty"` // nil until validated
	Invalids       []string      `json:"invalids,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ExplicitlyInvalid reports whether the datasource was validated and rejected.
func (d *Datasource) ExplicitlyInvalid() bool {
	return d.IsValid != nil && !*d.IsValid
}
