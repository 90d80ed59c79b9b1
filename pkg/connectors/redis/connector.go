// Package redis provides the built-in connector for Redis servers.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dukex/actionhub/pkg/connectors"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/protocol"
	"github.com/redis/go-redis/v9"
)

const PluginID = "redis"

const defaultPort = 6379

var ErrCommandRequired = errors.New("command is required")

type Connector struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Connector {
	return &Connector{logger: logger.With("module", "redis_connector")}
}

func (c *Connector) ID() string {
	return PluginID
}

func (c *Connector) DatasourceSchema() *models.JSONSchema {
	return &models.JSONSchema{
		Type:  "object",
		Title: "Redis",
		Properties: map[string]*models.Property{
			"url":      {Type: "string", Description: "redis:// URL, used instead of the individual fields"},
			"host":     {Type: "string"},
			"port":     {Type: "integer", Default: defaultPort},
			"password": {Type: "string"},
			"db":       {Type: "integer"},
		},
	}
}

// Options builds client options from a datasource configuration.
func Options(cfg models.Configuration) (*redis.Options, error) {
	if raw := connectors.String(cfg, "url"); raw != "" {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, protocol.NewDatasourceConfigurationError("", fmt.Sprintf("invalid redis url: %v", err))
		}

		return opts, nil
	}

	host := connectors.String(cfg, "host")
	if host == "" {
		return nil, protocol.NewDatasourceConfigurationError("", "either url or host is required")
	}

	return &redis.Options{
		Addr:     host + ":" + strconv.Itoa(connectors.Int(cfg, "port", defaultPort)),
		Password: connectors.String(cfg, "password"),
		DB:       connectors.Int(cfg, "db", 0),
	}, nil
}

func (c *Connector) Connect(ctx context.Context, datasourceConfig models.Configuration) (any, error) {
	opts, err := Options(datasourceConfig)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, classify(err)
	}

	return client, nil
}

func (c *Connector) Disconnect(conn any) error {
	client, ok := conn.(*redis.Client)
	if !ok {
		return nil
	}

	return client.Close()
}

// Execute sends a single command, given either as a string ("GET user:1")
// or as an array of arguments. A missing key yields a nil body.
func (c *Connector) Execute(ctx context.Context, conn any, _, actionConfig models.Configuration) (any, error) {
	client, ok := conn.(*redis.Client)
	if !ok || client == nil {
		return nil, protocol.NewConnectivityError(protocol.CodeDatasourceConnectFailed, "no redis connection", nil)
	}

	args := commandArgs(actionConfig)
	if len(args) == 0 {
		return nil, protocol.NewActionConfigurationError("", ErrCommandRequired.Error())
	}

	value, err := client.Do(ctx, args...).Result()
	if errors.Is(err, redis.Nil) {
		return &protocol.ExecutionResult{IsExecutionSuccess: true}, nil
	}

	if err != nil {
		return nil, classify(err)
	}

	c.logger.DebugContext(ctx, "Command completed", "command", args[0])

	return &protocol.ExecutionResult{IsExecutionSuccess: true, Body: value}, nil
}

func commandArgs(actionConfig models.Configuration) []any {
	if list := connectors.List(actionConfig, "command"); len(list) > 0 {
		return list
	}

	fields := strings.Fields(connectors.String(actionConfig, "command"))
	args := make([]any, len(fields))

	for i, field := range fields {
		args[i] = field
	}

	return args
}

func classify(err error) error {
	msg := err.Error()

	switch {
	case strings.HasPrefix(msg, "NOAUTH"), strings.HasPrefix(msg, "WRONGPASS"):
		return protocol.NewAuthenticationError("redis rejected the credentials", err)
	case strings.HasPrefix(msg, "ERR"), strings.HasPrefix(msg, "WRONGTYPE"):
		return protocol.NewActionConfigurationError("", msg)
	default:
		return err
	}
}
