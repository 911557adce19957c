package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/internal/repo"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	queueErrorEventID = "queue"
	statsWindow       = 24 * time.Hour

	defaultEscalatedLimit = 50
	maxEscalatedLimit     = 500
)

type Settings struct {
	BatchSize         int
	MaxConcurrentJobs int
	MaxRetries        int
	RetentionDays     int
}

type QueueUseCase struct {
	events    repo.SaleEventRepo
	tx        repo.Transactor
	archive   repo.ArchiveRepo
	processor usecase.ProcessorUseCase
	audit     usecase.AuditUseCase
	metrics   usecase.Metrics
	logger    logger.Interface

	settings Settings
	now      func() time.Time
}

// New builds the batch scheduler. archive may be nil, cleanup then only
// deletes.
func New(
	events repo.SaleEventRepo,
	tx repo.Transactor,
	archive repo.ArchiveRepo,
	p usecase.ProcessorUseCase,
	a usecase.AuditUseCase,
	m usecase.Metrics,
	l logger.Interface,
	s Settings,
) *QueueUseCase {
	return &QueueUseCase{
		events:    events,
		tx:        tx,
		archive:   archive,
		processor: p,
		audit:     a,
		metrics:   m,
		logger:    l,
		settings:  s,
		now:       time.Now,
	}
}

// RunOnce processes up to BatchSize pending events, oldest first. It never
// returns an error: a failed fetch shows up as a single queue_error entry.
func (uc *QueueUseCase) RunOnce(ctx context.Context) entity.ProcessingStats {
	start := uc.now()

	// 1. берем самые старые необработанные события
	ids, err := uc.events.ListPendingIDs(ctx, uc.settings.MaxRetries, uc.settings.BatchSize, start)
	if err != nil {
		err = fmt.Errorf("QueueUseCase - RunOnce - uc.events.ListPendingIDs: %w", err)
		uc.logger.Error(err, "QueueUseCase - RunOnce")

		return entity.ProcessingStats{
			Errors: []entity.ProcessingError{{
				EventID:   queueErrorEventID,
				Error:     err.Error(),
				Kind:      errs.KindQueueError,
				Timestamp: uc.now(),
			}},
		}
	}
	if len(ids) == 0 {
		return entity.ProcessingStats{}
	}

	// 2. обрабатываем пачками по MaxConcurrentJobs
	stats := uc.processBatch(ctx, ids)
	uc.metrics.BatchCompleted(ctx, stats, uc.now().Sub(start))

	if len(stats.Errors) > 0 {
		uc.logger.Warn("QueueUseCase - RunOnce - batch of %d finished with %d errors", len(ids), len(stats.Errors))
	}

	return stats
}

// RetryFailed clears processing_error on up to limit failed events and runs
// exactly that set through the batch machinery.
func (uc *QueueUseCase) RetryFailed(ctx context.Context, limit int) (entity.ProcessingStats, error) {
	if limit <= 0 {
		limit = uc.settings.BatchSize
	}
	start := uc.now()

	// 1. выбираем события с ошибкой
	ids, err := uc.events.ListFailedIDs(ctx, uc.settings.MaxRetries, limit)
	if err != nil {
		return entity.ProcessingStats{}, fmt.Errorf("QueueUseCase - RetryFailed - uc.events.ListFailedIDs: %w", err)
	}
	if len(ids) == 0 {
		return entity.ProcessingStats{}, nil
	}

	// 2. сбрасываем ошибку одним апдейтом
	err = uc.events.ClearErrors(ctx, ids)
	if err != nil {
		return entity.ProcessingStats{}, fmt.Errorf("QueueUseCase - RetryFailed - uc.events.ClearErrors: %w", err)
	}

	// 3. прогоняем ровно этот набор
	stats := uc.processBatch(ctx, ids)
	uc.metrics.BatchCompleted(ctx, stats, uc.now().Sub(start))

	uc.logger.Info("QueueUseCase - RetryFailed - retried %d events: %d processed, %d failed, %d retried",
		len(ids), stats.Processed, stats.Failed, stats.Retried)

	return stats, nil
}

func (uc *QueueUseCase) processBatch(ctx context.Context, ids uuid.UUIDs) entity.ProcessingStats {
	results := make([]entity.ProcessResult, len(ids))

	chunk := max(uc.settings.MaxConcurrentJobs, 1)
	for lo := 0; lo < len(ids); lo += chunk {
		hi := min(lo+chunk, len(ids))

		// ошибки не отменяют соседей, поэтому без WithContext
		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				results[i] = uc.processSafe(ctx, ids[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	var stats entity.ProcessingStats
	at := uc.now()
	for _, r := range results {
		stats.Add(r, at)
	}

	return stats
}

func (uc *QueueUseCase) processSafe(ctx context.Context, id uuid.UUID) (res entity.ProcessResult) {
	defer func() {
		if r := recover(); r != nil {
			uc.logger.Error("QueueUseCase - processSafe - panic on event %s: %v", id, r)

			res = entity.ProcessResult{
				EventID: id,
				Error:   fmt.Sprintf("panic: %v", r),
				Kind:    errs.KindPanic,
			}
		}
	}()

	return uc.processor.ProcessOne(ctx, id)
}

// Cleanup deletes processed events older than olderThanDays. Unprocessed rows
// are never touched. With an archive configured the deleted rows are uploaded
// first and the delete is rolled back if the upload fails.
func (uc *QueueUseCase) Cleanup(ctx context.Context, olderThanDays int) (entity.CleanupResult, error) {
	if olderThanDays <= 0 {
		olderThanDays = uc.settings.RetentionDays
	}
	now := uc.now()
	cutoff := now.AddDate(0, 0, -olderThanDays)

	var res entity.CleanupResult
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// 1. удаляем обработанные события старше cutoff
		deleted, err := uc.events.DeleteProcessedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("uc.events.DeleteProcessedBefore: %w", err)
		}
		res.Deleted = int64(len(deleted))

		if uc.archive == nil || len(deleted) == 0 {
			return nil
		}

		// 2. архивируем удаленное, при ошибке транзакция откатится
		body, err := encodeArchive(deleted)
		if err != nil {
			return fmt.Errorf("encodeArchive: %w", err)
		}

		key := fmt.Sprintf("sale-events/%s/%s.jsonl", now.UTC().Format(time.DateOnly), uuid.NewString())
		err = uc.archive.Put(ctx, key, body, "application/x-ndjson")
		if err != nil {
			return fmt.Errorf("uc.archive.Put: %w", err)
		}
		res.ArchiveKey = key

		return nil
	})
	if err != nil {
		return entity.CleanupResult{}, fmt.Errorf("QueueUseCase - Cleanup - uc.tx.WithinTransaction: %w", err)
	}

	uc.metrics.EventsCleaned(ctx, res.Deleted)
	if res.Deleted > 0 {
		uc.logger.Info("QueueUseCase - Cleanup - deleted %d events older than %s", res.Deleted, cutoff.Format(time.RFC3339))
	}

	return res, nil
}

type archivedEvent struct {
	*entity.SaleEvent
	Provenance string          `json:"provenance"`
	RawData    json.RawMessage `json:"raw_data,omitempty"`
}

func encodeArchive(events []*entity.SaleEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	for _, e := range events {
		rec := archivedEvent{SaleEvent: e, Provenance: entity.ProvenanceName(e.Provenance)}
		if e.Provenance != nil {
			rec.RawData = e.Provenance.Raw()
		}

		if err := enc.Encode(rec); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// EscalateExhausted marks events that used up their verification attempts as
// escalated and audits each of them.
func (uc *QueueUseCase) EscalateExhausted(ctx context.Context) (int, error) {
	escalated, err := uc.events.EscalateExhausted(ctx, uc.settings.MaxRetries, uc.now())
	if err != nil {
		return 0, fmt.Errorf("QueueUseCase - EscalateExhausted - uc.events.EscalateExhausted: %w", err)
	}
	if len(escalated) == 0 {
		return 0, nil
	}

	for _, e := range escalated {
		entry := &entity.DelistingAuditLog{
			UserID:      &e.UserID,
			SaleEventID: &e.ID,
			Action:      entity.ActionSaleEventEscalated,
			Marketplace: &e.Marketplace,
			Context: map[string]any{
				"event_id":              e.ID.String(),
				"verification_attempts": e.VerificationAttempts,
			},
		}
		if e.VerificationError != nil {
			code := string(errs.KindVerificationFailed)
			entry.ErrorMessage = e.VerificationError
			entry.ErrorCode = &code
		}

		uc.audit.Record(ctx, entry)
	}

	uc.metrics.EventsEscalated(ctx, len(escalated))
	uc.logger.Warn("QueueUseCase - EscalateExhausted - %d events escalated for operator action", len(escalated))

	return len(escalated), nil
}

func (uc *QueueUseCase) QueueStats(ctx context.Context) (entity.QueueStats, error) {
	stats, err := uc.events.Stats(ctx, uc.settings.MaxRetries, uc.now().Add(-statsWindow))
	if err != nil {
		return entity.QueueStats{}, fmt.Errorf("QueueUseCase - QueueStats - uc.events.Stats: %w", err)
	}

	return stats, nil
}

func (uc *QueueUseCase) Escalated(ctx context.Context, limit int) ([]*entity.SaleEvent, error) {
	switch {
	case limit <= 0:
		limit = defaultEscalatedLimit
	case limit > maxEscalatedLimit:
		limit = maxEscalatedLimit
	}

	events, err := uc.events.ListEscalated(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("QueueUseCase - Escalated - uc.events.ListEscalated: %w", err)
	}

	return events, nil
}
