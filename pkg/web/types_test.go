package web

import (
	"testing"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateActionRequest_ToModel(t *testing.T) {
	timeout := 500

	req := CreateActionRequest{
		Name:          "getUser",
		PageID:        "page-1",
		Configuration: models.Configuration{"path": "/users"},
		TimeoutMs:     &timeout,
		Datasource: &DatasourceRequest{
			Name:     "api",
			PluginID: "restapi",
		},
	}

	action := req.toModel("org-1")

	assert.Equal(t, "org-1", action.OrganizationID)
	assert.Equal(t, "page-1", action.PageID)
	assert.Equal(t, 500, action.Timeout())
	require.NotNil(t, action.Datasource)
	assert.Equal(t, "org-1", action.Datasource.OrganizationID)
	assert.Empty(t, action.Datasource.ID)
}

func TestUpdateActionRequest_ToModelKeepsUnsetFieldsEmpty(t *testing.T) {
	dsID := "ds-2"

	action := (&UpdateActionRequest{DatasourceID: &dsID}).toModel()

	assert.Equal(t, "ds-2", action.DatasourceID)
	assert.Empty(t, action.Name)
	assert.Nil(t, action.Configuration)
	assert.Nil(t, action.TimeoutMs)
}

func TestRequestValidation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	value := "1"

	tests := []struct {
		name    string
		req     any
		wantErr bool
	}{
		{"execute with keyed params", ExecuteActionRequest{ActionID: "a", Params: []models.Param{{Key: "id", Value: &value}}}, false},
		{"execute with null value", ExecuteActionRequest{ActionID: "a", Params: []models.Param{{Key: "id"}}}, false},
		{"execute with empty key", ExecuteActionRequest{ActionID: "a", Params: []models.Param{{Value: &value}}}, true},
		{"execute inline action without name", ExecuteActionRequest{Action: &models.Action{}}, false},
		{"datasource without plugin", DatasourceRequest{Name: "api"}, true},
		{"action without name", CreateActionRequest{}, true},
		{"empty update", UpdateActionRequest{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
