package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/actionhub/pkg/mocks"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence/file"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/dukex/actionhub/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schemaConnector struct {
	mocks.MockConnector
}

func (c *schemaConnector) DatasourceSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"url": {Type: "string"},
		},
		Required: []string{"url"},
	}
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(id string) {
	r.ids = append(r.ids, id)
}

type fixture struct {
	persistence *file.Persistence
	invalidator *recordingInvalidator
	datasources *Datasource
	actions     *Action
	plugins     *Plugin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Register("restapi", &schemaConnector{MockConnector: mocks.MockConnector{PluginID: "restapi"}})

	f := &fixture{persistence: p, invalidator: &recordingInvalidator{}}
	f.datasources = NewDatasource(logger, p, reg, f.invalidator)
	f.actions = NewAction(logger, p, f.datasources)
	f.plugins = NewPlugin(p)

	require.NoError(t, f.plugins.EnsureRegistered(context.Background(),
		&models.Plugin{ID: "restapi", Name: "restapi", Type: models.PluginTypeBuiltin},
		&models.Plugin{ID: "mongo", Name: "mongo", Type: models.PluginTypeExternal, ArtifactURL: "http://x/mongo.so"},
	))

	return f
}

func TestDatasourceCreateValidatesSchema(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid, err := f.datasources.Create(ctx, &models.Datasource{
		Name:          "api",
		PluginID:      "restapi",
		Configuration: models.Configuration{"url": "https://{{host}}"},
	})
	require.NoError(t, err)
	require.NotNil(t, valid.IsValid)
	assert.True(t, *valid.IsValid)
	assert.NotEmpty(t, valid.ID)

	invalid, err := f.datasources.Create(ctx, &models.Datasource{
		Name:          "broken",
		PluginID:      "restapi",
		Configuration: models.Configuration{"url": 42},
	})
	require.NoError(t, err)
	assert.False(t, *invalid.IsValid)
	assert.NotEmpty(t, invalid.Invalids)

	unknown, err := f.datasources.Create(ctx, &models.Datasource{Name: "x", PluginID: "nope"})
	require.NoError(t, err)
	assert.False(t, *unknown.IsValid)
	assert.Equal(t, []string{"No plugin found with id nope"}, unknown.Invalids)

	inactive, err := f.datasources.Create(ctx, &models.Datasource{Name: "m", PluginID: "mongo"})
	require.NoError(t, err)
	assert.True(t, *inactive.IsValid)
}

func TestDatasourceCreateRejectsID(t *testing.T) {
	f := newFixture(t)

	_, err := f.datasources.Create(context.Background(), &models.Datasource{ID: "ds-1", Name: "x", PluginID: "restapi"})

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestDatasourceUpdateInvalidatesConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.datasources.Create(ctx, &models.Datasource{
		Name:          "api",
		PluginID:      "restapi",
		Configuration: models.Configuration{"url": "https://a"},
	})
	require.NoError(t, err)

	updated, err := f.datasources.Update(ctx, created.ID, &models.Datasource{
		Configuration: models.Configuration{"url": "https://b"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://b", updated.Configuration["url"])
	assert.Equal(t, []string{created.ID}, f.invalidator.ids)

	_, err = f.datasources.Update(ctx, "missing", &models.Datasource{})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindResourceNotFound})
}

func TestDatasourceUpdateRefreshesActionKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bound, err := f.actions.Create(ctx, &models.Action{
		Name:          "getUser",
		Configuration: models.Configuration{"path": "/users/{{id}}"},
		Datasource: &models.Datasource{
			Name:          "api",
			PluginID:      "restapi",
			Configuration: models.Configuration{"url": "https://{{host}}"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "id"}, bound.PlaceholderKeys)

	other, err := f.actions.Create(ctx, &models.Action{
		Name:          "getOrder",
		Configuration: models.Configuration{"path": "/orders"},
		Datasource: &models.Datasource{
			Name:          "other",
			PluginID:      "restapi",
			Configuration: models.Configuration{"url": "https://{{host}}"},
		},
	})
	require.NoError(t, err)

	_, err = f.datasources.Update(ctx, bound.DatasourceID, &models.Datasource{
		Configuration: models.Configuration{"url": "https://{{region}}.example.com"},
	})
	require.NoError(t, err)

	refreshed, err := f.actions.Get(ctx, bound.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "region"}, refreshed.PlaceholderKeys)

	untouched, err := f.actions.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"host"}, untouched.PlaceholderKeys)
}

func TestActionCreateComputesPlaceholderKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	action, err := f.actions.Create(ctx, &models.Action{
		Name:          "getUser",
		Configuration: models.Configuration{"path": "/users/{{ userId }}", "query": "{{limit}}"},
		Datasource: &models.Datasource{
			Name:          "api",
			PluginID:      "restapi",
			Configuration: models.Configuration{"url": "https://{{host}}"},
		},
	})
	require.NoError(t, err)

	assert.True(t, action.IsValid)
	assert.Empty(t, action.Invalids)
	assert.Equal(t, []string{"host", "limit", "userId"}, action.PlaceholderKeys)
	assert.NotEmpty(t, action.DatasourceID)
	assert.Nil(t, action.Datasource)

	stored, err := f.actions.Get(ctx, action.ID)
	require.NoError(t, err)
	assert.Equal(t, action.PlaceholderKeys, stored.PlaceholderKeys)
}

func TestActionCreateRecordsInvalidReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		action *models.Action
		want   []string
	}{
		{
			name:   "bad name and no datasource",
			action: &models.Action{Name: "get-user", Configuration: models.Configuration{}},
			want:   []string{ReasonInvalidActionName, ReasonDatasourceNotGiven},
		},
		{
			name:   "missing configuration",
			action: &models.Action{Name: "getUser", DatasourceID: "missing"},
			want:   []string{ReasonNoConfigurationInAction, "No datasource found with id missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := f.actions.Create(ctx, tt.action)
			require.NoError(t, err)

			assert.False(t, action.IsValid)
			assert.Equal(t, tt.want, action.Invalids)
		})
	}
}

func TestActionCreateRequiresName(t *testing.T) {
	f := newFixture(t)

	_, err := f.actions.Create(context.Background(), &models.Action{Name: "  "})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameRequired)
}

func TestActionUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ds, err := f.datasources.Create(ctx, &models.Datasource{
		Name:          "api",
		PluginID:      "restapi",
		Configuration: models.Configuration{"url": "https://api"},
	})
	require.NoError(t, err)

	action, err := f.actions.Create(ctx, &models.Action{Name: "first", Configuration: models.Configuration{}})
	require.NoError(t, err)
	assert.False(t, action.IsValid)

	updated, err := f.actions.Update(ctx, action.ID, &models.Action{
		DatasourceID:  ds.ID,
		Configuration: models.Configuration{"path": "{{id}}"},
	})
	require.NoError(t, err)

	assert.True(t, updated.IsValid)
	assert.Equal(t, "first", updated.Name)
	assert.Equal(t, []string{"id"}, updated.PlaceholderKeys)

	_, err = f.actions.Delete(ctx, action.ID)
	require.NoError(t, err)

	_, err = f.actions.Get(ctx, action.ID)
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindResourceNotFound})
}

func TestPluginListForOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.persistence.OrganizationPluginRepository().Create(ctx, &models.OrganizationPlugin{
		OrganizationID: "org-1", PluginID: "mongo", Status: models.PluginStatusInstalled,
	}))
	require.NoError(t, f.persistence.OrganizationPluginRepository().Create(ctx, &models.OrganizationPlugin{
		OrganizationID: "org-1", PluginID: "restapi", Status: models.PluginStatusFailed,
	}))

	plugins, err := f.plugins.ListForOrganization(ctx, "org-1", "")
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "mongo", plugins[0].ID)

	plugins, err = f.plugins.ListForOrganization(ctx, "org-1", models.PluginTypeBuiltin)
	require.NoError(t, err)
	assert.Empty(t, plugins)

	all, err := f.plugins.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
