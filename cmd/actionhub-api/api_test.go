package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukex/actionhub/pkg/datasourcecontext"
	"github.com/dukex/actionhub/pkg/mocks"
	"github.com/dukex/actionhub/pkg/otelhelper"
	"github.com/dukex/actionhub/pkg/persistence/file"
	"github.com/dukex/actionhub/pkg/registry"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	api := NewAPI(
		logger,
		file.NewPersistence(t.TempDir()),
		registry.NewRegistry(logger),
		&mocks.MockEventBus{},
		datasourcecontext.NewProvider(logger),
		"instance-1",
		otelhelper.NoopTracer(),
	)

	return api.App()
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "actionhub API", body)
}

func TestAPI_Probes(t *testing.T) {
	app := setupTestApp(t)

	for _, path := range []string{"/livez", "/readyz"} {
		status, body := get(t, app, path)

		assert.Equal(t, http.StatusOK, status, path)
		assert.Equal(t, "OK", body, path)
	}
}

func TestAPI_Metrics(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/metrics")

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, strings.Contains(body, "actionhub_datasource_connections_active"))
}

func TestAPI_PluginsEmpty(t *testing.T) {
	status, body := get(t, setupTestApp(t), "/plugins")

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "[]", body)
}
