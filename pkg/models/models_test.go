package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Timeout(t *testing.T) {
	zero := 0
	custom := 250

	tests := []struct {
		name    string
		timeout *int
		want    int
	}{
		{name: "unset uses default", timeout: nil, want: DefaultActionTimeoutMs},
		{name: "non positive uses default", timeout: &zero, want: DefaultActionTimeoutMs},
		{name: "custom", timeout: &custom, want: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Action{TimeoutMs: tt.timeout}
			assert.Equal(t, tt.want, a.Timeout())
		})
	}
}

func TestAction_Validation(t *testing.T) {
	validate := validator.New()

	err := validate.Struct(&Action{Name: "fetch-users"})
	require.NoError(t, err)

	err = validate.Struct(&Action{})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
	assert.Equal(t, "Name", validationErrors[0].Field())
	assert.Equal(t, "required", validationErrors[0].Tag())
}

func TestDatasource_ExplicitlyInvalid(t *testing.T) {
	valid := true
	invalid := false

	assert.False(t, (&Datasource{}).ExplicitlyInvalid())
	assert.False(t, (&Datasource{IsValid: &valid}).ExplicitlyInvalid())
	assert.True(t, (&Datasource{IsValid: &invalid}).ExplicitlyInvalid())
}

func TestParam_NullValueDecodesToNil(t *testing.T) {
	var req ExecuteActionRequest

	err := json.Unmarshal([]byte(`{"action_id":"a1","params":[{"key":"id","value":null},{"key":"q","value":"x"}]}`), &req)
	require.NoError(t, err)

	require.Len(t, req.Params, 2)
	assert.Nil(t, req.Params[0].Value)
	require.NotNil(t, req.Params[1].Value)
	assert.Equal(t, "x", *req.Params[1].Value)
}
