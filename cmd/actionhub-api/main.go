// Package main provides the actionhub API server.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/actionhub/pkg/cmd"
	"github.com/dukex/actionhub/pkg/datasourcecontext"
	"github.com/dukex/actionhub/pkg/installation"
	"github.com/dukex/actionhub/pkg/log"
	"github.com/dukex/actionhub/pkg/otelhelper"
	"github.com/dukex/actionhub/pkg/services"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort = 9091
	serviceName = "actionhub-api"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Execute actions against datasources and manage connector plugins",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Persistence URL, file://<dir> or postgres://...",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Broadcast channel for plugin installs (kafka, redis, gochannel). gochannel reaches this process only; redis is at-most-once; use kafka for multiple instances",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the redis event bus",
				Value:   "redis://localhost:6379/0",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Directory where plugin artifacts are stored and loaded from",
				Value:   "./plugins",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.StringFlag{
				Name:    "instance-id",
				Usage:   "Unique id of this instance, defaults to a random one",
				Sources: cli.EnvVars("INSTANCE_ID"),
			},
			&cli.DurationFlag{
				Name:    "datasource-idle-ttl",
				Usage:   "How long an unused datasource connection is kept open",
				Value:   datasourcecontext.DefaultIdleTTL,
				Sources: cli.EnvVars("DATASOURCE_IDLE_TTL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		slog.Error("actionhub API stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Setup(command.String("log-level"))
	logger := log.WithModule("api")

	instanceID := command.String("instance-id")
	if instanceID == "" {
		instanceID = uuid.New().String()
	}

	logger.InfoContext(ctx, "Initializing actionhub API", "instance_id", instanceID)

	tracer := otelhelper.NoopTracer()

	if command.Bool("tracing") {
		var (
			shutdown otelhelper.ShutdownFunc
			err      error
		)

		tracer, shutdown, err = otelhelper.NewTracer(ctx, otelhelper.TracerConfig{
			ServiceName: serviceName,
			InstanceID:  instanceID,
		})
		if err != nil {
			return err
		}

		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}

	pluginsPath := command.String("plugins-path")

	registry, err := cmd.NewRegistry(ctx, logger, pluginsPath)
	if err != nil {
		return err
	}

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(context.Background()); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}()

	if err := services.NewPlugin(persistence).EnsureRegistered(ctx, cmd.BuiltinPlugins()...); err != nil {
		return err
	}

	eventBus, err := cmd.NewEventBus(ctx, logger, cmd.EventBusConfig{
		Provider:     command.String("event-bus"),
		InstanceID:   instanceID,
		KafkaBrokers: command.String("kafka-brokers"),
		RedisURL:     command.String("redis-url"),
		Tracing:      command.Bool("tracing"),
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}
	}()

	connections := datasourcecontext.NewProvider(logger,
		datasourcecontext.WithIdleTTL(command.Duration("datasource-idle-ttl")),
	)
	if err := connections.Start(); err != nil {
		return err
	}

	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		connections.Stop(stopCtx)
	}()

	installer := installation.NewInstaller(logger, persistence, registry, pluginsPath)
	if err := installer.Register(eventBus); err != nil {
		return err
	}

	if err := eventBus.Subscribe(ctx); err != nil {
		return err
	}

	// plugins granted while this instance was down
	if err := installer.Reconcile(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to reconcile installed plugins", "error", err)
	}

	api := NewAPI(logger, persistence, registry, eventBus, connections, instanceID, tracer)

	return api.Start(ctx, command.Int("port"))
}
