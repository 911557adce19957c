package repo

import (
	"context"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/google/uuid"
)

type (
	SaleEventRepo interface {
		Create(ctx context.Context, event *entity.SaleEvent) error
		GetByID(ctx context.Context, id uuid.UUID) (*entity.SaleEvent, error)
		FindFirstByHash(ctx context.Context, hash string) (*entity.SaleEvent, error)
		ListPendingIDs(ctx context.Context, maxRetries, limit int, now time.Time) (uuid.UUIDs, error)
		ListFailedIDs(ctx context.Context, maxRetries, limit int) (uuid.UUIDs, error)
		ListEscalated(ctx context.Context, limit int) ([]*entity.SaleEvent, error)
		ClearErrors(ctx context.Context, ids uuid.UUIDs) error
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		RecordVerificationSuccess(ctx context.Context, id uuid.UUID) error
		RecordVerificationFailure(ctx context.Context, id uuid.UUID, msg string, nextAttemptAt, escalatedAt *time.Time) error
		RecordProcessingError(ctx context.Context, id uuid.UUID, msg string, nextAttemptAt time.Time) error
		EscalateExhausted(ctx context.Context, maxRetries int, now time.Time) ([]*entity.SaleEvent, error)
		DeleteProcessedBefore(ctx context.Context, cutoff time.Time) ([]*entity.SaleEvent, error)
		Stats(ctx context.Context, maxRetries int, since time.Time) (entity.QueueStats, error)
	}

	DelistingJobRepo interface {
		// MaterializeJob atomically creates or reuses the job for the event's
		// item and marks the event processed. A nil id means nothing is left to
		// delist.
		MaterializeJob(ctx context.Context, eventID uuid.UUID, policy entity.JobPolicy) (*uuid.UUID, error)
		GetByID(ctx context.Context, id uuid.UUID) (*entity.DelistingJob, error)
		Confirm(ctx context.Context, id, userID uuid.UUID, at time.Time) error
		Cancel(ctx context.Context, id, userID uuid.UUID, reason string, at time.Time) error
	}

	AuditLogRepo interface {
		Create(ctx context.Context, entry *entity.DelistingAuditLog) error
		ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]*entity.DelistingAuditLog, error)
		CountBySaleEvent(ctx context.Context, eventID uuid.UUID, action entity.AuditAction) (int64, error)
	}

	PreferencesRepo interface {
		GetByUserID(ctx context.Context, userID uuid.UUID) (*entity.UserDelistingPreferences, error)
	}

	ArchiveRepo interface {
		Put(ctx context.Context, key string, body []byte, contentType string) error
	}

	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
