package v1

import (
	"github.com/andreyxaxa/Resale-Delister/internal/usecase"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

func NewRoutes(
	apiV1Group fiber.Router,
	q usecase.QueueUseCase,
	p usecase.ProcessorUseCase,
	j usecase.JobsUseCase,
	l logger.Interface,
) {
	r := &V1{queue: q, processor: p, jobs: j, validate: validator.New(), logger: l}

	queueGroup := apiV1Group.Group("/queue")
	{
		queueGroup.Get("/stats", r.getQueueStats)
		queueGroup.Post("/retry", r.retryFailed)
		queueGroup.Get("/escalated", r.listEscalated)
	}

	eventsGroup := apiV1Group.Group("/events")
	{
		eventsGroup.Post("/:id/process", r.processEvent)
	}

	jobsGroup := apiV1Group.Group("/jobs")
	{
		jobsGroup.Get("/:id", r.getJob)
		jobsGroup.Post("/:id/confirm", r.confirmJob)
		jobsGroup.Post("/:id/cancel", r.cancelJob)
	}
}
