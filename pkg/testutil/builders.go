// Package testutil provides test data builders for actions, datasources and plugins.
package testutil

import (
	"github.com/dukex/actionhub/pkg/models"
	"github.com/google/uuid"
)

// CreateTestDatasource creates a restapi datasource with default values that can be overridden.
func CreateTestDatasource(overrides ...func(*models.Datasource)) *models.Datasource {
	datasource := &models.Datasource{
		ID:            uuid.New().String(),
		Name:          "users api",
		PluginID:      "restapi",
		Configuration: models.Configuration{"url": "https://{{host}}"},
	}

	for _, override := range overrides {
		override(datasource)
	}

	return datasource
}

// CreateTestAction creates a valid action bound to datasourceID.
func CreateTestAction(datasourceID string, overrides ...func(*models.Action)) *models.Action {
	action := &models.Action{
		ID:            uuid.New().String(),
		Name:          "getUser",
		DatasourceID:  datasourceID,
		IsValid:       true,
		Configuration: models.Configuration{"path": "/users/{{ userId }}"},
	}

	for _, override := range overrides {
		override(action)
	}

	return action
}

// CreateTestPlugin creates an external plugin with an artifact URL.
func CreateTestPlugin(id string, overrides ...func(*models.Plugin)) *models.Plugin {
	plugin := &models.Plugin{
		ID:          id,
		Name:        id + "-plugin",
		Type:        models.PluginTypeExternal,
		ArtifactURL: "http://artifacts.local/" + id + ".so",
	}

	for _, override := range overrides {
		override(plugin)
	}

	return plugin
}

// WithID sets the action ID.
func WithID(id string) func(*models.Action) {
	return func(a *models.Action) {
		a.ID = id
	}
}

// WithTimeout sets the action timeout in milliseconds.
func WithTimeout(ms int) func(*models.Action) {
	return func(a *models.Action) {
		a.TimeoutMs = &ms
	}
}

// WithDatasourceID sets the datasource ID.
func WithDatasourceID(id string) func(*models.Datasource) {
	return func(d *models.Datasource) {
		d.ID = id
	}
}

// WithInvalid marks the datasource as validated and rejected.
func WithInvalid(reasons ...string) func(*models.Datasource) {
	return func(d *models.Datasource) {
		valid := false
		d.IsValid = &valid
		d.Invalids = reasons
	}
}

// WithArtifactURL sets where the plugin artifact is downloaded from.
func WithArtifactURL(url string) func(*models.Plugin) {
	return func(p *models.Plugin) {
		p.ArtifactURL = url
	}
}
