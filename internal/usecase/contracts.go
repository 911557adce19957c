package usecase

import (
	"context"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

type (
	ProcessorUseCase interface {
		ProcessOne(ctx context.Context, eventID uuid.UUID) entity.ProcessResult
	}

	QueueUseCase interface {
		RunOnce(ctx context.Context) entity.ProcessingStats
		RetryFailed(ctx context.Context, limit int) (entity.ProcessingStats, error)
		Cleanup(ctx context.Context, olderThanDays int) (entity.CleanupResult, error)
		EscalateExhausted(ctx context.Context) (int, error)
		QueueStats(ctx context.Context) (entity.QueueStats, error)
		Escalated(ctx context.Context, limit int) ([]*entity.SaleEvent, error)
	}

	JobsUseCase interface {
		GetJob(ctx context.Context, id uuid.UUID) (*entity.DelistingJob, []*entity.DelistingAuditLog, error)
		ConfirmJob(ctx context.Context, id, userID uuid.UUID) (*entity.DelistingJob, error)
		CancelJob(ctx context.Context, id, userID uuid.UUID, reason string) (*entity.DelistingJob, error)
	}

	IngestUseCase interface {
		Ingest(ctx context.Context, event *entity.SaleEvent) (*entity.SaleEvent, error)
	}

	AuditUseCase interface {
		Record(ctx context.Context, entry *entity.DelistingAuditLog)
	}

	Metrics interface {
		EventProcessed(ctx context.Context, outcome string, kind errs.Kind, duration time.Duration)
		JobCreated(ctx context.Context, soldOn entity.Marketplace)
		BatchCompleted(ctx context.Context, stats entity.ProcessingStats, duration time.Duration)
		RetryScheduled(ctx context.Context, kind errs.Kind, delay time.Duration)
		EventsEscalated(ctx context.Context, n int)
		EventsCleaned(ctx context.Context, n int64)
	}
)
