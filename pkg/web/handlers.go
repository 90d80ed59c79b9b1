// Package web provides the HTTP API for executing actions and managing
// plugins, datasources and actions.
package web

import (
	"net/http"
	"time"

	"github.com/dukex/actionhub/pkg/execution"
	"github.com/dukex/actionhub/pkg/installation"
	"github.com/dukex/actionhub/pkg/models"
	"github.com/dukex/actionhub/pkg/persistence"
	"github.com/dukex/actionhub/pkg/registry"
	"github.com/dukex/actionhub/pkg/requestctx"
	"github.com/dukex/actionhub/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const (
	OrganizationHeader = "X-Organization-ID"
	UserHeader         = "X-User-ID"
)

type APIHandlers struct {
	executor    *execution.Service
	coordinator *installation.Coordinator
	actions     *services.Action
	datasources *services.Datasource
	plugins     *services.Plugin
	validator   *validator.Validate
	registry    *registry.Registry
	persistence persistence.Persistence
}

func NewAPIHandlers(
	executor *execution.Service,
	coordinator *installation.Coordinator,
	actions *services.Action,
	datasources *services.Datasource,
	plugins *services.Plugin,
	validator *validator.Validate,
	registry *registry.Registry,
	persistence persistence.Persistence,
) *APIHandlers {
	return &APIHandlers{
		executor:    executor,
		coordinator: coordinator,
		actions:     actions,
		datasources: datasources,
		plugins:     plugins,
		validator:   validator,
		registry:    registry,
		persistence: persistence,
	}
}

// Routes mounts every API endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	router.Use(RequestScope())

	a := router.Group("/actions")
	a.Post("/execute", h.ExecuteAction)
	a.Post("/", h.CreateAction)
	a.Get("/:id", h.GetAction)
	a.Put("/:id", h.UpdateAction)
	a.Delete("/:id", h.DeleteAction)

	d := router.Group("/datasources")
	d.Post("/", h.CreateDatasource)
	d.Get("/:id", h.GetDatasource)
	d.Put("/:id", h.UpdateDatasource)

	router.Get("/plugins", h.ListPlugins)

	o := router.Group("/organizations/:organizationId/plugins")
	o.Get("/", h.ListOrganizationPlugins)
	o.Post("/install", h.InstallPlugin)
	o.Post("/uninstall", h.UninstallPlugin)
	o.Post("/install-defaults", h.InstallDefaultPlugins)

	router.Get("/health", h.HealthCheck)
}

// RequestScope puts the calling organization and user on the request context.
func RequestScope() fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx := requestctx.WithOrganization(c.Context(), c.Get(OrganizationHeader))
		ctx = requestctx.WithUser(ctx, c.Get(UserHeader))
		c.SetContext(ctx)

		return c.Next()
	}
}

func (h *APIHandlers) ExecuteAction(c fiber.Ctx) error {
	var req ExecuteActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.executor.Execute(c.Context(), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) InstallPlugin(c fiber.Ctx) error {
	req, err := h.parsePluginRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	org, err := h.coordinator.Install(c.Context(), c.Params("organizationId"), req.PluginID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(org)
}

func (h *APIHandlers) UninstallPlugin(c fiber.Ctx) error {
	req, err := h.parsePluginRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	org, err := h.coordinator.Uninstall(c.Context(), c.Params("organizationId"), req.PluginID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(org)
}

func (h *APIHandlers) InstallDefaultPlugins(c fiber.Ctx) error {
	org, err := h.coordinator.InstallDefaults(c.Context(), c.Params("organizationId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(org)
}

func (h *APIHandlers) parsePluginRequest(c fiber.Ctx) (*PluginRequest, error) {
	var req PluginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, err
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &req, nil
}

func (h *APIHandlers) ListPlugins(c fiber.Ctx) error {
	plugins, err := h.plugins.List(c.Context(), models.PluginType(c.Query("type")))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(plugins)
}

func (h *APIHandlers) ListOrganizationPlugins(c fiber.Ctx) error {
	plugins, err := h.plugins.ListForOrganization(
		c.Context(),
		c.Params("organizationId"),
		models.PluginType(c.Query("type")),
	)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(plugins)
}

func (h *APIHandlers) CreateAction(c fiber.Ctx) error {
	var req CreateActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.actions.Create(c.Context(), req.toModel(requestctx.Organization(c.Context())))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetAction(c fiber.Ctx) error {
	action, err := h.actions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(action)
}

func (h *APIHandlers) UpdateAction(c fiber.Ctx) error {
	var req UpdateActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.actions.Update(c.Context(), c.Params("id"), req.toModel())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteAction(c fiber.Ctx) error {
	if _, err := h.actions.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) CreateDatasource(c fiber.Ctx) error {
	var req DatasourceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.datasources.Create(c.Context(), req.toModel(requestctx.Organization(c.Context())))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetDatasource(c fiber.Ctx) error {
	datasource, err := h.datasources.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(datasource)
}

func (h *APIHandlers) UpdateDatasource(c fiber.Ctx) error {
	var req UpdateDatasourceRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update := &models.Datasource{Configuration: req.Configuration}
	if req.Name != nil {
		update.Name = *req.Name
	}

	updated, err := h.datasources.Update(c.Context(), c.Params("id"), update)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"connectors": h.registry.List(),
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}
