package restapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnector() *Connector {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBuildRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		datasource models.Configuration
		action     models.Configuration
		wantMethod string
		wantURL    string
		wantBody   string
		wantHeader map[string]string
	}{
		{
			name:       "defaults to GET",
			datasource: models.Configuration{"url": "https://api.example.com/"},
			action:     models.Configuration{"path": "users/1"},
			wantMethod: http.MethodGet,
			wantURL:    "https://api.example.com/users/1",
			wantHeader: map[string]string{},
		},
		{
			name: "object body with query and merged headers",
			datasource: models.Configuration{
				"url":     "https://api.example.com",
				"headers": map[string]any{"Authorization": "Bearer t", "X-Env": "prod"},
			},
			action: models.Configuration{
				"method":  "post",
				"path":    "/users",
				"query":   map[string]any{"limit": float64(10)},
				"headers": map[string]any{"X-Env": "staging"},
				"body":    map[string]any{"name": "ada"},
			},
			wantMethod: http.MethodPost,
			wantURL:    "https://api.example.com/users?limit=10",
			wantBody:   `{"name":"ada"}`,
			wantHeader: map[string]string{
				"Authorization": "Bearer t",
				"X-Env":         "staging",
				"Content-Type":  "application/json",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := buildRequest(tt.datasource, tt.action)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMethod, req.method)
			assert.Equal(t, tt.wantURL, req.url)
			assert.Equal(t, tt.wantBody, string(req.body))
			assert.Equal(t, tt.wantHeader, req.headers)
		})
	}
}

func TestBuildRequestErrors(t *testing.T) {
	t.Parallel()

	_, err := buildRequest(models.Configuration{}, models.Configuration{})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindDatasourceConfiguration})

	_, err = buildRequest(models.Configuration{"url": "http://x"}, models.Configuration{"method": "BREW"})
	assert.ErrorIs(t, err, &protocol.Error{Kind: protocol.KindActionConfiguration})
}

func TestExecute(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"body":   string(body),
		})
	}))
	defer server.Close()

	c := newConnector()

	conn, err := c.Connect(context.Background(), models.Configuration{"url": server.URL})
	require.NoError(t, err)

	defer func() { _ = c.Disconnect(conn) }()

	out, err := c.Execute(context.Background(), conn,
		models.Configuration{"url": server.URL},
		models.Configuration{"method": "PUT", "path": "/items/7", "body": "raw"},
	)
	require.NoError(t, err)

	result, ok := out.(*protocol.ExecutionResult)
	require.True(t, ok)

	assert.True(t, result.IsExecutionSuccess)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, "application/json", result.Headers["Content-Type"])
	assert.Equal(t, map[string]any{"method": "PUT", "path": "/items/7", "body": "raw"}, result.Body)
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte("plain text"))
	}))
	defer server.Close()

	out, err := newConnector().Execute(context.Background(), nil,
		models.Configuration{"url": server.URL},
		models.Configuration{"retry": map[string]any{"attempts": float64(3), "delay": float64(1)}},
	)
	require.NoError(t, err)

	result := out.(*protocol.ExecutionResult)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "plain text", result.Body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecuteClientErrorIsAResult(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	out, err := newConnector().Execute(context.Background(), nil, models.Configuration{"url": server.URL}, models.Configuration{})
	require.NoError(t, err)

	result := out.(*protocol.ExecutionResult)
	assert.False(t, result.IsExecutionSuccess)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)
	assert.Nil(t, result.Body)
}

func TestDatasourceSchemaRequiresURL(t *testing.T) {
	t.Parallel()

	schema := newConnector().DatasourceSchema()
	assert.Equal(t, []string{"url"}, schema.Required)
}
