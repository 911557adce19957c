package processor

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
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/retry"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase/verifier"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	outcomeSuccess = "success"
	outcomeRetried = "retried"
	outcomeFailed  = "failed"
)

type SaleVerifier interface {
	Verify(ctx context.Context, event *entity.SaleEvent) verifier.Result
}

type ProcessorUseCase struct {
	events   repo.SaleEventRepo
	jobs     repo.DelistingJobRepo
	prefs    repo.PreferencesRepo
	verifier SaleVerifier
	audit    usecase.AuditUseCase
	notifier infrastructure.JobNotifier
	metrics  usecase.Metrics
	logger   logger.Interface

	jobMaxRetries int
	now           func() time.Time
}

func New(
	events repo.SaleEventRepo,
	jobs repo.DelistingJobRepo,
	prefs repo.PreferencesRepo,
	v SaleVerifier,
	a usecase.AuditUseCase,
	n infrastructure.JobNotifier,
	m usecase.Metrics,
	l logger.Interface,
	jobMaxRetries int,
) *ProcessorUseCase {
	return &ProcessorUseCase{
		events:        events,
		jobs:          jobs,
		prefs:         prefs,
		verifier:      v,
		audit:         a,
		notifier:      n,
		metrics:       m,
		logger:        l,
		jobMaxRetries: jobMaxRetries,
		now:           time.Now,
	}
}

// ProcessOne drives a single sale event through verification and job
// materialization. It never returns an error; the outcome is in the result.
func (uc *ProcessorUseCase) ProcessOne(ctx context.Context, eventID uuid.UUID) entity.ProcessResult {
	start := uc.now()

	res := uc.process(ctx, eventID)

	outcome := outcomeSuccess
	switch {
	case res.Success:
	case res.Retryable:
		outcome = outcomeRetried
	default:
		outcome = outcomeFailed
	}
	uc.metrics.EventProcessed(ctx, outcome, res.Kind, uc.now().Sub(start))

	return res
}

func (uc *ProcessorUseCase) process(ctx context.Context, eventID uuid.UUID) entity.ProcessResult {
	// 1. загружаем событие
	event, err := uc.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return entity.ProcessResult{
				EventID: eventID,
				Error:   fmt.Sprintf("sale event %s not found", eventID),
				Kind:    errs.KindNotFound,
			}
		}

		return entity.ProcessResult{
			EventID:   eventID,
			Error:     fmt.Errorf("ProcessorUseCase - process - uc.events.GetByID: %w", err).Error(),
			Kind:      errs.KindStoreError,
			Retryable: true,
		}
	}

	// 2. уже обработано - повторный вызов ничего не меняет
	if event.Processed {
		return entity.ProcessResult{EventID: eventID, Success: true, JobID: event.DelistingJobID}
	}

	// 3. дубликаты никогда не порождают задачу
	if event.IsDuplicate {
		err = uc.events.MarkProcessed(ctx, event.ID)
		if err != nil {
			return uc.storeFailure(ctx, event, fmt.Errorf("ProcessorUseCase - process - uc.events.MarkProcessed: %w", err))
		}

		return entity.ProcessResult{EventID: eventID, Success: true}
	}

	// 4. верификация
	if !event.Verified {
		if res, ok := uc.verify(ctx, event); !ok {
			return res
		}
	}

	// 5. политика пользователя + атомарное создание задачи в хранилище
	prefs, err := uc.prefs.GetByUserID(ctx, event.UserID)
	if err != nil {
		if !errors.Is(err, errs.ErrRecordNotFound) {
			return uc.storeFailure(ctx, event, fmt.Errorf("ProcessorUseCase - process - uc.prefs.GetByUserID: %w", err))
		}
		prefs = nil
	}

	policy := decidePolicy(prefs, event, uc.now(), uc.jobMaxRetries)

	jobID, err := uc.jobs.MaterializeJob(ctx, event.ID, policy)
	if err != nil {
		// событие удалили между загрузкой и транзакцией
		if errors.Is(err, errs.ErrRecordNotFound) {
			return entity.ProcessResult{
				EventID: eventID,
				Error:   fmt.Sprintf("sale event %s not found", eventID),
				Kind:    errs.KindNotFound,
			}
		}

		return uc.storeFailure(ctx, event, fmt.Errorf("ProcessorUseCase - process - uc.jobs.MaterializeJob: %w", err))
	}

	// других активных листингов нет - событие закрыто без задачи
	if jobID == nil {
		return entity.ProcessResult{EventID: eventID, Success: true}
	}

	// 6. аудит + уведомление исполнителя
	uc.metrics.JobCreated(ctx, event.Marketplace)

	sold := event.Marketplace
	uc.audit.Record(ctx, &entity.DelistingAuditLog{
		UserID:         &event.UserID,
		DelistingJobID: jobID,
		SaleEventID:    &event.ID,
		Action:         entity.ActionSaleEventProcessed,
		Marketplace:    &sold,
		Success:        true,
		Context: map[string]any{
			"event_id":              event.ID.String(),
			"external_listing_id":   event.ExternalListingID,
			"sale_price":            event.SalePrice.String(),
			"currency":              event.Currency,
			"requires_confirmation": policy.RequiresConfirmation,
			"scheduled_for":         policy.ScheduledFor,
		},
	})

	uc.notifyIfEligible(ctx, *jobID)

	return entity.ProcessResult{EventID: eventID, Success: true, JobID: jobID}
}

// verify runs the verifier and persists its outcome. ok is false when the
// event cannot proceed in this invocation.
func (uc *ProcessorUseCase) verify(ctx context.Context, event *entity.SaleEvent) (entity.ProcessResult, bool) {
	start := uc.now()
	vr := uc.verifier.Verify(ctx, event)

	if vr.Verified {
		err := uc.events.RecordVerificationSuccess(ctx, event.ID)
		if err != nil {
			return uc.storeFailure(ctx, event, fmt.Errorf("ProcessorUseCase - verify - uc.events.RecordVerificationSuccess: %w", err)), false
		}

		event.Verified = true
		event.VerificationError = nil

		return entity.ProcessResult{}, true
	}

	if vr.Err == nil {
		vr.Err = errors.New("sale not verified")
	}
	if vr.Kind == errs.KindNone {
		vr.Kind = errs.KindVerificationFailed
	}

	now := uc.now()
	attempts := event.VerificationAttempts + 1
	msg := vr.Err.Error()

	var (
		nextAttemptAt *time.Time
		escalatedAt   *time.Time
		delay         time.Duration
	)

	if vr.Retryable {
		delay = retry.Delay(attempts, vr.Kind)
		next := now.Add(delay)
		nextAttemptAt = &next
		uc.metrics.RetryScheduled(ctx, vr.Kind, delay)
	} else {
		// терминальная ошибка - ждем оператора
		escalatedAt = &now
		uc.metrics.EventsEscalated(ctx, 1)
	}

	err := uc.events.RecordVerificationFailure(ctx, event.ID, msg, nextAttemptAt, escalatedAt)
	if err != nil {
		uc.logger.Error(err, "ProcessorUseCase - verify - uc.events.RecordVerificationFailure")
	}

	sold := event.Marketplace
	uc.audit.Record(ctx, audit.Duration(audit.Failure(&entity.DelistingAuditLog{
		UserID:      &event.UserID,
		SaleEventID: &event.ID,
		Action:      entity.ActionVerificationFailed,
		Marketplace: &sold,
		Context: map[string]any{
			"event_id":   event.ID.String(),
			"attempt":    attempts,
			"retryable":  vr.Retryable,
			"escalated":  escalatedAt != nil,
			"provenance": entity.ProvenanceName(event.Provenance),
		},
	}, vr.Err, string(vr.Kind)), now.Sub(start)))

	return entity.ProcessResult{
		EventID:    event.ID,
		Error:      msg,
		Kind:       vr.Kind,
		Retryable:  vr.Retryable,
		RetryAfter: delay,
	}, false
}

// storeFailure persists processing_error with a backoff. Store errors are
// treated as transient.
func (uc *ProcessorUseCase) storeFailure(ctx context.Context, event *entity.SaleEvent, cause error) entity.ProcessResult {
	delay := retry.Delay(event.VerificationAttempts, errs.KindStoreError)
	msg := cause.Error()

	err := uc.events.RecordProcessingError(ctx, event.ID, msg, uc.now().Add(delay))
	if err != nil {
		uc.logger.Error(err, "ProcessorUseCase - storeFailure - uc.events.RecordProcessingError")
	}
	uc.metrics.RetryScheduled(ctx, errs.KindStoreError, delay)

	return entity.ProcessResult{
		EventID:    event.ID,
		Error:      msg,
		Kind:       errs.KindStoreError,
		Retryable:  true,
		RetryAfter: delay,
	}
}

func (uc *ProcessorUseCase) notifyIfEligible(ctx context.Context, jobID uuid.UUID) {
	if uc.notifier == nil {
		return
	}

	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		uc.logger.Error(err, "ProcessorUseCase - notifyIfEligible - uc.jobs.GetByID")
		return
	}

	if !job.Eligible(uc.now()) {
		return
	}

	err = uc.notifier.NotifyJobReady(ctx, job)
	if err != nil {
		uc.logger.Error(err, "ProcessorUseCase - notifyIfEligible - uc.notifier.NotifyJobReady")

		uc.audit.Record(ctx, audit.Failure(&entity.DelistingAuditLog{
			UserID:         &job.UserID,
			DelistingJobID: &job.ID,
			Action:         entity.ActionJobNotificationFailed,
		}, err, ""))
	}
}
