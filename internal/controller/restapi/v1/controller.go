package v1

import (
	"github.com/andreyxaxa/Resale-Delister/internal/usecase"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/go-playground/validator/v10"
)

type V1 struct {
	queue     usecase.QueueUseCase
	processor usecase.ProcessorUseCase
	jobs      usecase.JobsUseCase
	validate  *validator.Validate
	logger    logger.Interface
}
