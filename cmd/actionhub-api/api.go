package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/actionhub/pkg/datasourcecontext"
	"github.com/dukex/actionhub/pkg/eventbus"
	"github.com/dukex/actionhub/pkg/execution"
	"github.com/dukex/actionhub/pkg/installation"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/registry"
	"github.com/dukex/actionhub/pkg/services"
	"github.com/dukex/actionhub/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	connections *datasourcecontext.Provider
	instanceID  string
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	connections *datasourcecontext.Provider,
	instanceID string,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		connections: connections,
		instanceID:  instanceID,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	datasources := services.NewDatasource(a.logger, a.persistence, a.registry, a.connections)

	handlers := web.NewAPIHandlers(
		execution.NewService(a.logger, a.persistence, a.registry, a.connections, execution.WithTracer(a.tracer)),
		installation.NewCoordinator(a.logger, a.persistence, a.eventBus, a.instanceID),
		services.NewAction(a.logger, a.persistence, datasources),
		datasources,
		services.NewPlugin(a.persistence),
		a.validate,
		a.registry,
		a.persistence,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("actionhub API")
	})

	handlers.Routes(app)

	return app
}

// Start serves until ctx is canceled, then shuts the server down.
func (a *API) Start(ctx context.Context, port int) error {
	return a.App().Listen(":"+strconv.Itoa(port), fiber.ListenConfig{
		GracefulContext:       ctx,
		ShutdownTimeout:       shutdownTimeout,
		DisableStartupMessage: true,
	})
}
