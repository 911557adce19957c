package v1

import (
	"net/http"

	"github.com/andreyxaxa/Resale-Delister/internal/controller/restapi/v1/response"
	"github.com/gofiber/fiber/v2"
)

const (
	_defaultEscalatedLimit = 50
	_maxLimit              = 500
)

// @Summary 	Queue stats
// @Description Unprocessed, processing error, verification failure and escalated counts plus hourly activity for the last 24h
// @Tags 		queue
// @Produce 	json
// @Success 	200 {object} response.QueueStats
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/queue/stats [get]
func (r *V1) getQueueStats(ctx *fiber.Ctx) error {
	stats, err := r.queue.QueueStats(ctx.UserContext())
	if err != nil {
		r.logger.Error(err, "restapi - v1 - getQueueStats")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewQueueStats(stats))
}

// @Summary 	Retry failed events
// @Description Clears processing errors of failed events and runs them through the processor
// @Tags 		queue
// @Produce 	json
// @Param 		limit query int false "Max events to retry (defaults to the batch size)"
// @Success 	200 {object} response.ProcessingStats
// @Failure 	400 {object} response.Error "Invalid limit"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/queue/retry [post]
func (r *V1) retryFailed(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 0)
	if limit < 0 || limit > _maxLimit {
		return errorResponse(ctx, http.StatusBadRequest, "limit must be between 1 and 500")
	}

	stats, err := r.queue.RetryFailed(ctx.UserContext(), limit)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - retryFailed")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewProcessingStats(stats))
}

// @Summary 	Escalated events
// @Description Events that need operator action
// @Tags 		queue
// @Produce 	json
// @Param 		limit query int false "Max events (default 50)"
// @Success 	200 {object} response.EscalatedEvents
// @Failure 	400 {object} response.Error "Invalid limit"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/queue/escalated [get]
func (r *V1) listEscalated(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", _defaultEscalatedLimit)
	if limit <= 0 || limit > _maxLimit {
		return errorResponse(ctx, http.StatusBadRequest, "limit must be between 1 and 500")
	}

	events, err := r.queue.Escalated(ctx.UserContext(), limit)
	if err != nil {
		r.logger.Error(err, "restapi - v1 - listEscalated")

		return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewEscalatedEvents(events))
}
