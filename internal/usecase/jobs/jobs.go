package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure"
	"github.com/andreyxaxa/Resale-Delister/internal/repo"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/audit"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

const auditHistoryLimit = 100

type JobsUseCase struct {
	jobs     repo.DelistingJobRepo
	auditLog repo.AuditLogRepo
	audit    usecase.AuditUseCase
	notifier infrastructure.JobNotifier
	logger   logger.Interface

	now func() time.Time
}

func New(
	jobs repo.DelistingJobRepo,
	auditLog repo.AuditLogRepo,
	a usecase.AuditUseCase,
	n infrastructure.JobNotifier,
	l logger.Interface,
) *JobsUseCase {
	return &JobsUseCase{
		jobs:     jobs,
		auditLog: auditLog,
		audit:    a,
		notifier: n,
		logger:   l,
		now:      time.Now,
	}
}

func (uc *JobsUseCase) GetJob(ctx context.Context, id uuid.UUID) (*entity.DelistingJob, []*entity.DelistingAuditLog, error) {
	job, err := uc.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("JobsUseCase - GetJob - uc.jobs.GetByID: %w", err)
	}

	logs, err := uc.auditLog.ListByJob(ctx, id, auditHistoryLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("JobsUseCase - GetJob - uc.auditLog.ListByJob: %w", err)
	}

	return job, logs, nil
}

// ConfirmJob releases a job that waits for the user. The job becomes eligible
// for automatic processing once its scheduled time has come.
func (uc *JobsUseCase) ConfirmJob(ctx context.Context, id, userID uuid.UUID) (*entity.DelistingJob, error) {
	now := uc.now()

	// 1. подтверждаем
	err := uc.jobs.Confirm(ctx, id, userID, now)
	if err != nil {
		uc.auditRejected(ctx, id, userID, entity.ActionJobConfirmed, err)
		return nil, fmt.Errorf("JobsUseCase - ConfirmJob - uc.jobs.Confirm: %w", err)
	}

	job, err := uc.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("JobsUseCase - ConfirmJob - uc.jobs.GetByID: %w", err)
	}

	// 2. аудит
	uc.audit.Record(ctx, &entity.DelistingAuditLog{
		UserID:         &userID,
		DelistingJobID: &job.ID,
		SaleEventID:    job.SaleEventID,
		Action:         entity.ActionJobConfirmed,
		Success:        true,
		Context: map[string]any{
			"scheduled_for":         job.ScheduledFor,
			"marketplaces_targeted": entity.MarketplacesToStrings(job.MarketplacesTargeted),
		},
	})

	// 3. отдаем исполнителю, если время пришло
	if uc.notifier != nil && job.Eligible(now) {
		err = uc.notifier.NotifyJobReady(ctx, job)
		if err != nil {
			uc.logger.Error(err, "JobsUseCase - ConfirmJob - uc.notifier.NotifyJobReady")

			uc.audit.Record(ctx, audit.Failure(&entity.DelistingAuditLog{
				UserID:         &userID,
				DelistingJobID: &job.ID,
				Action:         entity.ActionJobNotificationFailed,
			}, err, ""))
		}
	}

	return job, nil
}

// CancelJob stops a pending job. The reason is stored verbatim.
func (uc *JobsUseCase) CancelJob(ctx context.Context, id, userID uuid.UUID, reason string) (*entity.DelistingJob, error) {
	err := uc.jobs.Cancel(ctx, id, userID, reason, uc.now())
	if err != nil {
		uc.auditRejected(ctx, id, userID, entity.ActionJobCancelled, err)
		return nil, fmt.Errorf("JobsUseCase - CancelJob - uc.jobs.Cancel: %w", err)
	}

	job, err := uc.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("JobsUseCase - CancelJob - uc.jobs.GetByID: %w", err)
	}

	uc.audit.Record(ctx, &entity.DelistingAuditLog{
		UserID:         &userID,
		DelistingJobID: &job.ID,
		SaleEventID:    job.SaleEventID,
		Action:         entity.ActionJobCancelled,
		Success:        true,
		Context: map[string]any{
			"reason": reason,
		},
	})

	return job, nil
}

// auditRejected records a refused transition. Unknown jobs are not audited,
// the row could not be attributed.
func (uc *JobsUseCase) auditRejected(ctx context.Context, id, userID uuid.UUID, action entity.AuditAction, err error) {
	if !errors.Is(err, errs.ErrInvalidTransition) {
		return
	}

	uc.audit.Record(ctx, audit.Failure(&entity.DelistingAuditLog{
		UserID:         &userID,
		DelistingJobID: &id,
		Action:         action,
	}, err, string(errs.KindInvalidRequest)))
}
