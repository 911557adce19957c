package v1

import (
	"errors"
	"net/http"

	"github.com/andreyxaxa/Resale-Delister/internal/controller/restapi/v1/request"
	"github.com/andreyxaxa/Resale-Delister/internal/controller/restapi/v1/response"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// @Summary 	Get delisting job
// @Description Job with its latest audit history
// @Tags 		jobs
// @Produce 	json
// @Param 		id path string true "Job ID(uuid)"
// @Success 	200 {object} response.Job
// @Failure 	400 {object} response.Error "Invalid ID"
// @Failure 	404 {object} response.Error "Job not found"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/jobs/{id} [get]
func (r *V1) getJob(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	job, logs, err := r.jobs.GetJob(ctx.UserContext(), id)
	if err != nil {
		return r.jobError(ctx, err, "getJob")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewJob(job, logs))
}

// @Summary 	Confirm delisting job
// @Description Confirms a pending job that waits for the user
// @Tags 		jobs
// @Accept 		json
// @Produce 	json
// @Param 		id   path string             true "Job ID(uuid)"
// @Param 		body body request.ConfirmJob true "Owner"
// @Success 	200 {object} response.Job
// @Failure 	400 {object} response.Error "Invalid request"
// @Failure 	404 {object} response.Error "Job not found"
// @Failure 	409 {object} response.Error "Job cannot be confirmed"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/jobs/{id}/confirm [post]
func (r *V1) confirmJob(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	var body request.ConfirmJob
	if err = ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err = r.validate.Struct(body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "user_id is required")
	}

	job, err := r.jobs.ConfirmJob(ctx.UserContext(), id, uuid.MustParse(body.UserID))
	if err != nil {
		return r.jobError(ctx, err, "confirmJob")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewJob(job, nil))
}

// @Summary 	Cancel delisting job
// @Description Cancels a pending job, the reason is stored verbatim
// @Tags 		jobs
// @Accept 		json
// @Produce 	json
// @Param 		id   path string            true "Job ID(uuid)"
// @Param 		body body request.CancelJob true "Owner and reason"
// @Success 	200 {object} response.Job
// @Failure 	400 {object} response.Error "Invalid request"
// @Failure 	404 {object} response.Error "Job not found"
// @Failure 	409 {object} response.Error "Job cannot be cancelled"
// @Failure 	500 {object} response.Error "Internal"
// @Router 		/v1/jobs/{id}/cancel [post]
func (r *V1) cancelJob(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid id")
	}

	var body request.CancelJob
	if err = ctx.BodyParser(&body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err = r.validate.Struct(body); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "user_id and reason (up to 500 chars) are required")
	}

	job, err := r.jobs.CancelJob(ctx.UserContext(), id, uuid.MustParse(body.UserID), body.Reason)
	if err != nil {
		return r.jobError(ctx, err, "cancelJob")
	}

	return ctx.Status(http.StatusOK).JSON(response.NewJob(job, nil))
}

func (r *V1) jobError(ctx *fiber.Ctx, err error, handler string) error {
	switch {
	case errors.Is(err, errs.ErrRecordNotFound):
		return errorResponse(ctx, http.StatusNotFound, "job not found")
	case errors.Is(err, errs.ErrInvalidTransition):
		return errorResponse(ctx, http.StatusConflict, "job is not in a state that allows this action")
	}

	r.logger.Error(err, "restapi - v1 - "+handler)

	return errorResponse(ctx, http.StatusInternalServerError, "storage problems")
}
