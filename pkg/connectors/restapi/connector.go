// Package restapi provides the built-in connector for HTTP APIs.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/actionhub/pkg/connectors"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/protocol"
)

const PluginID = "restapi"

var (
	ErrURLRequired     = errors.New("datasource url is required")
	ErrMethodInvalid   = errors.New("invalid HTTP method")
	ErrHTTPServerError = errors.New("server error during HTTP request")
)

var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// RetryConfig defines retry behavior for requests answered with a 5xx status.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Connector sends the request described by the action to the datasource's base URL.
type Connector struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Connector {
	return &Connector{logger: logger.With("module", "restapi_connector")}
}

func (c *Connector) ID() string {
	return PluginID
}

// Connect returns an HTTP client with its own connection pool for the datasource.
func (c *Connector) Connect(_ context.Context, datasourceConfig models.Configuration) (any, error) {
	if connectors.String(datasourceConfig, "url") == "" {
		return nil, protocol.NewDatasourceConfigurationError("", ErrURLRequired.Error())
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	return &http.Client{Transport: transport}, nil
}

func (c *Connector) Disconnect(conn any) error {
	if client, ok := conn.(*http.Client); ok {
		client.CloseIdleConnections()
	}

	return nil
}

func (c *Connector) DatasourceSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "REST API",
		Properties: map[string]*models.Property{
			"url": {
				Type:        "string",
				Description: "Base URL every action path is appended to",
			},
			"headers": {
				Type:        "object",
				Description: "Headers sent with every request",
			},
		},
		Required: []string{"url"},
	}
}

type request struct {
	method  string
	url     string
	headers map[string]string
	body    []byte
	retry   RetryConfig
}

// Execute sends the request. Responses of any status are returned as results;
// only transport failures are errors.
func (c *Connector) Execute(ctx context.Context, conn any, datasourceConfig, actionConfig models.Configuration) (any, error) {
	req, err := buildRequest(datasourceConfig, actionConfig)
	if err != nil {
		return nil, err
	}

	client, ok := conn.(*http.Client)
	if !ok || client == nil {
		client = http.DefaultClient
	}

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= req.retry.Attempts; attempt++ {
		if attempt > 1 {
			c.logger.InfoContext(ctx, "Retrying request", "attempt", attempt, "attempts", req.retry.Attempts)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(req.retry.Delay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, bytes.NewReader(req.body))
		if err != nil {
			return nil, protocol.NewActionConfigurationError("", fmt.Sprintf("failed to create http request: %v", err))
		}

		for key, value := range req.headers {
			httpReq.Header.Set(key, value)
		}

		resp, err = client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)
			resp = nil

			continue
		}

		if resp.StatusCode >= 500 && attempt < req.retry.Attempts {
			lastErr = fmt.Errorf("status %d: %w", resp.StatusCode, ErrHTTPServerError)
			_ = resp.Body.Close()
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		return nil, fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
	}

	return c.processResponse(ctx, resp)
}

func buildRequest(datasourceConfig, actionConfig models.Configuration) (*request, error) {
	base := connectors.String(datasourceConfig, "url")
	if base == "" {
		return nil, protocol.NewDatasourceConfigurationError("", ErrURLRequired.Error())
	}

	method := strings.ToUpper(connectors.String(actionConfig, "method"))
	if method == "" {
		method = http.MethodGet
	}

	if !allowedMethods[method] {
		return nil, protocol.NewActionConfigurationError("", fmt.Sprintf("%v: %s", ErrMethodInvalid, method))
	}

	target, err := url.Parse(strings.TrimRight(base, "/") + ensureLeadingSlash(connectors.String(actionConfig, "path")))
	if err != nil {
		return nil, protocol.NewActionConfigurationError("", fmt.Sprintf("invalid url: %v", err))
	}

	if query := connectors.StringMap(actionConfig, "query"); len(query) > 0 {
		values := target.Query()
		for key, value := range query {
			values.Set(key, value)
		}

		target.RawQuery = values.Encode()
	}

	headers := connectors.StringMap(datasourceConfig, "headers")
	for key, value := range connectors.StringMap(actionConfig, "headers") {
		headers[key] = value
	}

	body, err := encodeBody(actionConfig["body"])
	if err != nil {
		return nil, err
	}

	if _, isObject := actionConfig["body"].(map[string]any); isObject {
		if _, set := headers["Content-Type"]; !set {
			headers["Content-Type"] = "application/json"
		}
	}

	return &request{
		method:  method,
		url:     target.String(),
		headers: headers,
		body:    body,
		retry:   parseRetryConfig(actionConfig),
	}, nil
}

func ensureLeadingSlash(path string) string {
	if path == "" || strings.HasPrefix(path, "/") || strings.HasPrefix(path, "?") {
		return path
	}

	return "/" + path
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, protocol.NewActionConfigurationError("", fmt.Sprintf("failed to marshal body: %v", err))
		}

		return data, nil
	}
}

func parseRetryConfig(actionConfig models.Configuration) RetryConfig {
	retry := RetryConfig{Attempts: 1}

	retryMap, ok := actionConfig["retry"].(map[string]any)
	if !ok {
		return retry
	}

	if attempts := connectors.Int(retryMap, "attempts", 1); attempts > 1 {
		retry.Attempts = attempts
	}

	retry.Delay = time.Duration(connectors.Int(retryMap, "delay", 0)) * time.Millisecond

	return retry
}

func (c *Connector) processResponse(ctx context.Context, resp *http.Response) (*protocol.ExecutionResult, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any
	if len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}
	}

	headers := make(map[string]any, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = values
		}
	}

	c.logger.DebugContext(ctx, "Request completed", "status", resp.StatusCode, "body_length", len(bodyBytes))

	return &protocol.ExecutionResult{
		IsExecutionSuccess: resp.StatusCode < http.StatusBadRequest,
		StatusCode:         resp.StatusCode,
		Body:               body,
		Headers:            headers,
	}, nil
}
