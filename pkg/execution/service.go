// Package execution runs actions: it resolves the action to a connector,
// substitutes runtime parameters and calls the connector under a timeout.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/actionhub/pkg/datasourcecontext"
	"github.com/dukex/actionhub/pkg/metrics"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/otelhelper"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/dukex/actionhub/pkg/requestctx"
	"github.com/dukex/actionhub/pkg/template"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConnectorResolver finds the connector active for a plugin.
type ConnectorResolver interface {
	Resolve(pluginID string) (protocol.Connector, error)
}

// ConnectionProvider hands out connection handles for datasources.
type ConnectionProvider interface {
	Get(ctx context.Context, datasource *models.Datasource, connector protocol.Connector) (any, datasourcecontext.ReleaseFunc, error)
}

type Service struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	connectors  ConnectorResolver
	connections ConnectionProvider
	tracer      trace.Tracer
}

type Option func(*Service)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func NewService(
	logger *slog.Logger,
	persistence persistence.Persistence,
	connectors ConnectorResolver,
	connections ConnectionProvider,
	opts ...Option,
) *Service {
	s := &Service{
		logger:      logger.With("module", "execution"),
		persistence: persistence,
		connectors:  connectors,
		connections: connections,
		tracer:      otelhelper.NoopTracer(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type outcome struct {
	value any
	err   error
}

// Execute runs the requested action and returns its normalized result.
func (s *Service) Execute(ctx context.Context, req *models.ExecuteActionRequest) (*protocol.ExecutionResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "action.execute",
		attribute.Int(otelhelper.ParamCountKey, len(req.Params)),
		attribute.String(otelhelper.OrganizationIDKey, requestctx.Organization(ctx)),
	)
	defer span.End()

	result, err := s.execute(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)
		s.logger.WarnContext(ctx, "Action execution failed", "action_id", req.ActionID, "error", err)

		return nil, err
	}

	return result, nil
}

func (s *Service) execute(ctx context.Context, req *models.ExecuteActionRequest) (*protocol.ExecutionResult, error) {
	// Params are checked before anything is looked up.
	values, err := template.ParamsToMap(req.Params)
	if err != nil {
		return nil, err
	}

	otelhelper.Stage(ctx, "params_validated")

	action, err := s.loadAction(ctx, req)
	if err != nil {
		return nil, err
	}

	otelhelper.Stage(ctx, "action_loaded", attribute.String(otelhelper.ActionIDKey, action.ID))

	datasource, err := s.loadDatasource(ctx, action)
	if err != nil {
		return nil, err
	}

	if datasource.ExplicitlyInvalid() {
		return nil, protocol.NewDatasourceConfigurationError(
			protocol.CodeInvalidDatasource,
			fmt.Sprintf("datasource '%s' is invalid", datasource.Name),
		)
	}

	otelhelper.Stage(ctx, "datasource_loaded",
		attribute.String(otelhelper.DatasourceIDKey, datasource.ID),
		attribute.String(otelhelper.PluginIDKey, datasource.PluginID),
	)

	connector, err := s.connectors.Resolve(datasource.PluginID)
	if err != nil {
		return nil, err
	}

	otelhelper.Stage(ctx, "connector_resolved")

	datasourceConfig, actionConfig := datasource.Configuration, action.Configuration
	if len(req.Params) > 0 {
		datasourceConfig = s.substitute(ctx, "datasource", datasourceConfig, values)
		actionConfig = s.substitute(ctx, "action", actionConfig, values)

		otelhelper.Stage(ctx, "params_substituted")
	}

	conn, release, err := s.connections.Get(ctx, datasource, connector)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return nil, err
		}

		return nil, protocol.NewConnectivityError(
			protocol.CodeDatasourceConnectFailed,
			fmt.Sprintf("failed to connect datasource '%s'", datasource.Name),
			err,
		)
	}

	otelhelper.Stage(ctx, "connection_acquired", attribute.Int(otelhelper.TimeoutMsKey, action.Timeout()))

	timeout := time.Duration(action.Timeout()) * time.Millisecond

	s.logger.DebugContext(ctx, "Executing action",
		"action_id", action.ID,
		"action_name", action.Name,
		"connector", connector.ID(),
		"timeout_ms", action.Timeout(),
	)

	return s.run(ctx, connector, conn, release, datasourceConfig, actionConfig, timeout)
}

func (s *Service) loadAction(ctx context.Context, req *models.ExecuteActionRequest) (*models.Action, error) {
	id := req.ActionID
	if id == "" && req.Action != nil {
		id = req.Action.ID
	}

	if id == "" {
		if req.Action == nil {
			return nil, protocol.NewArgumentError(protocol.CodeInvalidAction, "either action_id or action is required")
		}

		return req.Action, nil
	}

	action, err := s.persistence.ActionRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, protocol.NewResourceNotFoundError(fmt.Sprintf("no resource found with action id '%s'", id))
		}

		return nil, fmt.Errorf("failed to load action %s: %w", id, err)
	}

	if action == nil {
		return nil, protocol.NewResourceNotFoundError(fmt.Sprintf("no resource found with action id '%s'", id))
	}

	if !action.IsValid {
		return nil, protocol.NewActionConfigurationError(
			protocol.CodeInvalidAction,
			fmt.Sprintf("action '%s' is invalid", action.Name),
		)
	}

	return action, nil
}

func (s *Service) loadDatasource(ctx context.Context, action *models.Action) (*models.Datasource, error) {
	id := action.DatasourceID
	if id == "" && action.Datasource != nil {
		id = action.Datasource.ID
	}

	if id == "" {
		if action.Datasource == nil {
			return nil, protocol.NewResourceNotFoundError("no datasource configured for action")
		}

		return action.Datasource, nil
	}

	datasource, err := s.persistence.DatasourceRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, protocol.NewResourceNotFoundError(fmt.Sprintf("no resource found with datasource id '%s'", id))
		}

		return nil, fmt.Errorf("failed to load datasource %s: %w", id, err)
	}

	if datasource == nil {
		return nil, protocol.NewResourceNotFoundError(fmt.Sprintf("no resource found with datasource id '%s'", id))
	}

	return datasource, nil
}

// substitute never fails the request: on error the configuration is used as is.
func (s *Service) substitute(ctx context.Context, name string, cfg models.Configuration, values map[string]string) models.Configuration {
	substituted, err := template.SubstituteConfiguration(cfg, values)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to substitute parameters, using configuration as is",
			"configuration", name,
			"error", err,
		)

		return cfg
	}

	return substituted
}

// run calls the connector in its own goroutine. When the timeout expires the
// goroutine is abandoned and keeps its connection until it returns.
func (s *Service) run(
	ctx context.Context,
	connector protocol.Connector,
	conn any,
	release datasourcecontext.ReleaseFunc,
	datasourceConfig, actionConfig models.Configuration,
	timeout time.Duration,
) (*protocol.ExecutionResult, error) {
	connectorID := connector.ID()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("connector panicked: %v", r)}
			}
		}()

		value, err := connector.Execute(execCtx, conn, datasourceConfig, actionConfig)
		done <- outcome{value: value, err: err}
	}()

	var res outcome

	select {
	case res = <-done:
	case <-execCtx.Done():
		res = outcome{err: execCtx.Err()}
	}

	elapsed := time.Since(start)
	metrics.ActionExecutionDuration.WithLabelValues(connectorID).Observe(elapsed.Seconds())

	if res.err != nil {
		metrics.ActionExecutions.WithLabelValues(connectorID, metrics.OutcomeFailure).Inc()

		return nil, s.connectorError(ctx, execCtx, connectorID, timeout, res.err)
	}

	metrics.ActionExecutions.WithLabelValues(connectorID, metrics.OutcomeSuccess).Inc()
	otelhelper.Stage(ctx, "connector_executed")

	return normalize(connectorID, res.value, elapsed), nil
}

func (s *Service) connectorError(ctx, execCtx context.Context, connectorID string, timeout time.Duration, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("action execution canceled: %w", ctx.Err())
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		metrics.ActionExecutionTimeouts.WithLabelValues(connectorID).Inc()
		s.logger.WarnContext(ctx, "Connector call timed out", "connector", connectorID, "timeout_ms", timeout.Milliseconds())

		return protocol.NewConnectivityError(
			protocol.CodeExecutionTimeout,
			fmt.Sprintf("connector '%s' did not respond within %d ms", connectorID, timeout.Milliseconds()),
			protocol.ErrExecutionTimeout,
		)
	}

	var perr *protocol.Error
	if errors.As(err, &perr) {
		return err
	}

	return protocol.NewConnectivityError(
		protocol.CodeConnectorExecutionFailed,
		fmt.Sprintf("connector '%s' failed", connectorID),
		err,
	)
}

func normalize(connectorID string, value any, elapsed time.Duration) *protocol.ExecutionResult {
	var result *protocol.ExecutionResult

	switch v := value.(type) {
	case *protocol.ExecutionResult:
		result = v
	case protocol.ExecutionResult:
		result = &v
	}

	if result == nil {
		result = &protocol.ExecutionResult{IsExecutionSuccess: true, Body: value}
	}

	if result.Metadata.DurationMs == 0 {
		result.Metadata.DurationMs = elapsed.Milliseconds()
	}

	if result.Metadata.Connector == "" {
		result.Metadata.Connector = connectorID
	}

	return result
}
