// Package postgres provides the built-in connector for PostgreSQL databases.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/dukex/actionhub/pkg/connectors"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/lib/pq"
)

const PluginID = "postgres"

const (
	defaultPort          = 5432
	defaultMaxOpenConns  = 5
	defaultConnMaxIdle   = 5 * time.Minute
	authErrorClass       = "28"
	syntaxOrAccessClass  = "42"
	dataExceptionClass   = "22"
	integrityErrorsClass = "23"
)

var ErrQueryRequired = errors.New("query is required")

type Connector struct {
	logger *slog.Logger
	open   func(dsn string) (*sql.DB, error)
}

func New(logger *slog.Logger) *Connector {
	return &Connector{
		logger: logger.With("module", "postgres_connector"),
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("postgres", dsn)
		},
	}
}

func (c *Connector) ID() string {
	return PluginID
}

func (c *Connector) DatasourceSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "PostgreSQL",
		Properties: map[string]*models.Property{
			"url":      {Type: "string", Description: "Connection URL, used instead of the individual fields"},
			"host":     {Type: "string"},
			"port":     {Type: "integer", Default: defaultPort},
			"database": {Type: "string"},
			"user":     {Type: "string"},
			"password": {Type: "string"},
			"sslmode":  {Type: "string", Default: "disable", Enum: []any{"disable", "require", "verify-ca", "verify-full"}},
		},
	}
}

// DSN builds the connection string from a datasource configuration.
func DSN(cfg models.Configuration) (string, error) {
	if raw := connectors.String(cfg, "url"); raw != "" {
		return raw, nil
	}

	host := connectors.String(cfg, "host")
	if host == "" {
		return "", protocol.NewDatasourceConfigurationError("", "either url or host is required")
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + strconv.Itoa(connectors.Int(cfg, "port", defaultPort)),
		Path:   "/" + connectors.String(cfg, "database"),
	}

	if user := connectors.String(cfg, "user"); user != "" {
		if password := connectors.String(cfg, "password"); password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}

	sslmode := connectors.String(cfg, "sslmode")
	if sslmode == "" {
		sslmode = "disable"
	}

	u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()

	return u.String(), nil
}

// Connect opens a small pool for the datasource and checks it with a ping.
func (c *Connector) Connect(ctx context.Context, datasourceConfig models.Configuration) (any, error) {
	dsn, err := DSN(datasourceConfig)
	if err != nil {
		return nil, err
	}

	db, err := c.open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetConnMaxIdleTime(defaultConnMaxIdle)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, classify(err)
	}

	return db, nil
}

func (c *Connector) Disconnect(conn any) error {
	db, ok := conn.(*sql.DB)
	if !ok {
		return nil
	}

	return db.Close()
}

// Execute runs the action's query. With "exec" set the affected row count is
// returned, otherwise the rows as a list of objects.
func (c *Connector) Execute(ctx context.Context, conn any, _, actionConfig models.Configuration) (any, error) {
	db, ok := conn.(*sql.DB)
	if !ok || db == nil {
		return nil, protocol.NewConnectivityError(protocol.CodeDatasourceConnectFailed, "no database connection", nil)
	}

	query := connectors.String(actionConfig, "query")
	if query == "" {
		return nil, protocol.NewActionConfigurationError("", ErrQueryRequired.Error())
	}

	args := connectors.List(actionConfig, "params")

	if connectors.Bool(actionConfig, "exec") {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, classify(err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to read affected rows: %w", err)
		}

		return &protocol.ExecutionResult{
			IsExecutionSuccess: true,
			Body:               map[string]any{"rows_affected": affected},
		}, nil
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = rows.Close() }()

	body, err := scanRows(rows)
	if err != nil {
		return nil, classify(err)
	}

	c.logger.DebugContext(ctx, "Query completed", "rows", len(body))

	return &protocol.ExecutionResult{IsExecutionSuccess: true, Body: body}, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []map[string]any{}

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[i]
			}
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// classify maps server errors to error kinds by SQLSTATE class.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code.Class() {
	case authErrorClass:
		return protocol.NewAuthenticationError(pqErr.Message, err)
	case syntaxOrAccessClass, dataExceptionClass, integrityErrorsClass:
		return protocol.NewActionConfigurationError(string(pqErr.Code), pqErr.Message)
	default:
		return err
	}
}
