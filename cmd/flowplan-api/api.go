// Package main provides the Flowplan API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/flowplan/pkg/persistence"
	"github.com/dukex/flowplan/pkg/registry"
	"github.com/dukex/flowplan/pkg/services"
	"github.com/dukex/flowplan/pkg/web"
	"github.com/dukex/flowplan/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	sessionOpts []workflow.Option
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	sessionOpts ...workflow.Option,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		sessionOpts: sessionOpts,
	}
}

func (a *API) App() *fiber.App {
	workflowService := services.NewWorkflow(a.persistence, a.logger, a.sessionOpts...)
	nodeService := services.NewNode(workflowService)

	handlers := web.NewAPIHandlers(workflowService, nodeService, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowplan API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting API server", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
