package restapi

import (
	"github.com/andreyxaxa/Resale-Delister/config"
	v1 "github.com/andreyxaxa/Resale-Delister/internal/controller/restapi/v1"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// @title Resale delister
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	q usecase.QueueUseCase,
	p usecase.ProcessorUseCase,
	j usecase.JobsUseCase,
	l logger.Interface,
) {
	// Tracing
	app.Use(otelfiber.Middleware())

	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewRoutes(apiV1Group, q, p, j, l)
	}
}
