package v1

import (
	"net/http"

	"github.com/andreyxaxa/Resale-Delister/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// @Summary 	Process sale event
// @Description Runs a single sale event through verification and job materialization
// @Tags 		events
// @Produce 	json
// @Param 		id path string true "Sale event ID(uuid)"
// @Success 	200 {object} response.ProcessResult
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.ProcessResult "Event not found"
// @Router 		/v1/events/{id}/process [post]
func (r *V1) processEvent(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	res := r.processor.ProcessOne(ctx.UserContext(), id)

	status := http.StatusOK
	if res.Kind == errs.KindNotFound {
		status = http.StatusNotFound
	}

	return ctx.Status(status).JSON(response.NewProcessResult(res))
}
