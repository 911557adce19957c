package persistent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/postgres"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// Table
	saleEventsTable = "sale_events"

	// only one original per event hash
	uniqueViolationCode = "23505"
	originalHashIndex   = "sale_events_original_hash_uniq"

	// Columns
	idColumn                    = "id"
	userIDColumn                = "user_id"
	marketplaceColumn           = "marketplace"
	externalEventIDColumn       = "external_event_id"
	externalListingIDColumn     = "external_listing_id"
	externalTransactionIDColumn = "external_transaction_id"
	salePriceColumn             = "sale_price"
	currencyColumn              = "currency"
	saleDateColumn              = "sale_date"
	buyerIDColumn               = "buyer_id"
	paymentStatusColumn         = "payment_status"
	rawWebhookDataColumn        = "raw_webhook_data"
	rawPollingDataColumn        = "raw_polling_data"
	processedColumn             = "processed"
	processingErrorColumn       = "processing_error"
	delistingJobIDColumn        = "delisting_job_id"
	verifiedColumn              = "verified"
	verificationAttemptsColumn  = "verification_attempts"
	verificationErrorColumn     = "verification_error"
	eventHashColumn             = "event_hash"
	isDuplicateColumn           = "is_duplicate"
	duplicateOfColumn           = "duplicate_of"
	nextAttemptAtColumn         = "next_attempt_at"
	escalatedAtColumn           = "escalated_at"
	createdAtColumn             = "created_at"
	updatedAtColumn             = "updated_at"
)

var saleEventColumns = []string{
	idColumn,
	userIDColumn,
	marketplaceColumn,
	externalEventIDColumn,
	externalListingIDColumn,
	externalTransactionIDColumn,
	salePriceColumn,
	currencyColumn,
	saleDateColumn,
	buyerIDColumn,
	paymentStatusColumn,
	rawWebhookDataColumn,
	rawPollingDataColumn,
	processedColumn,
	processingErrorColumn,
	delistingJobIDColumn,
	verifiedColumn,
	verificationAttemptsColumn,
	verificationErrorColumn,
	eventHashColumn,
	isDuplicateColumn,
	duplicateOfColumn,
	nextAttemptAtColumn,
	escalatedAtColumn,
	createdAtColumn,
	updatedAtColumn,
}

const hourlyActivitySQL = `
SELECT hour, sum(received)::bigint, sum(processed)::bigint
FROM (
    SELECT date_trunc('hour', created_at, 'UTC') AS hour, 1 AS received, 0 AS processed
    FROM sale_events
    WHERE created_at >= $1
    UNION ALL
    SELECT date_trunc('hour', updated_at, 'UTC'), 0, 1
    FROM sale_events
    WHERE processed = true AND updated_at >= $1
) activity
GROUP BY hour
ORDER BY hour`

type scanner interface {
	Scan(dest ...any) error
}

type SaleEventRepo struct {
	*postgres.Postgres
}

func NewSaleEventRepo(pg *postgres.Postgres) *SaleEventRepo {
	return &SaleEventRepo{pg}
}

func (r *SaleEventRepo) Create(ctx context.Context, event *entity.SaleEvent) error {
	webhook, polling := entity.ProvenanceColumns(event.Provenance)

	sql, args, err := r.Builder.
		Insert(saleEventsTable).
		Columns(saleEventColumns...).
		Values(
			event.ID,
			event.UserID,
			event.Marketplace,
			event.ExternalEventID,
			event.ExternalListingID,
			event.ExternalTransactionID,
			event.SalePrice,
			event.Currency,
			event.SaleDate,
			event.BuyerID,
			event.PaymentStatus,
			jsonb(webhook),
			jsonb(polling),
			event.Processed,
			event.ProcessingError,
			event.DelistingJobID,
			event.Verified,
			event.VerificationAttempts,
			event.VerificationError,
			event.EventHash,
			event.IsDuplicate,
			event.DuplicateOf,
			event.NextAttemptAt,
			event.EscalatedAt,
			event.CreatedAt,
			event.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("SaleEventRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == originalHashIndex {
			return fmt.Errorf("SaleEventRepo - Create: %w", errs.ErrDuplicateEventHash)
		}
		return fmt.Errorf("SaleEventRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *SaleEventRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.SaleEvent, error) {
	sql, args, err := r.Builder.
		Select(saleEventColumns...).
		From(saleEventsTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	event, err := scanSaleEvent(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("SaleEventRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("SaleEventRepo - GetByID - scanSaleEvent: %w", err)
	}

	return event, nil
}

func (r *SaleEventRepo) FindFirstByHash(ctx context.Context, hash string) (*entity.SaleEvent, error) {
	sql, args, err := r.Builder.
		Select(saleEventColumns...).
		From(saleEventsTable).
		Where(squirrel.And{
			squirrel.Eq{eventHashColumn: hash},
			squirrel.Eq{isDuplicateColumn: false},
		}).
		OrderBy("created_at ASC", "id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - FindFirstByHash - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	event, err := scanSaleEvent(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("SaleEventRepo - FindFirstByHash: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("SaleEventRepo - FindFirstByHash - scanSaleEvent: %w", err)
	}

	return event, nil
}

func (r *SaleEventRepo) ListPendingIDs(ctx context.Context, maxRetries, limit int, now time.Time) (uuid.UUIDs, error) {
	sql, args, err := r.Builder.
		Select(idColumn).
		From(saleEventsTable).
		Where(squirrel.And{
			squirrel.Eq{processedColumn: false},
			squirrel.Lt{verificationAttemptsColumn: maxRetries},
			squirrel.Eq{escalatedAtColumn: nil},
			squirrel.Or{
				squirrel.Eq{nextAttemptAtColumn: nil},
				squirrel.LtOrEq{nextAttemptAtColumn: now},
			},
		}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)). //nolint:gosec // positive config value
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - ListPendingIDs - r.Builder.ToSql: %w", err)
	}

	ids, err := r.queryIDs(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - ListPendingIDs - r.queryIDs: %w", err)
	}

	return ids, nil
}

func (r *SaleEventRepo) ListFailedIDs(ctx context.Context, maxRetries, limit int) (uuid.UUIDs, error) {
	sql, args, err := r.Builder.
		Select(idColumn).
		From(saleEventsTable).
		Where(squirrel.And{
			squirrel.Eq{processedColumn: false},
			squirrel.NotEq{processingErrorColumn: nil},
			squirrel.Lt{verificationAttemptsColumn: maxRetries},
		}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)). //nolint:gosec // positive value
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - ListFailedIDs - r.Builder.ToSql: %w", err)
	}

	ids, err := r.queryIDs(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - ListFailedIDs - r.queryIDs: %w", err)
	}

	return ids, nil
}

func (r *SaleEventRepo) ListEscalated(ctx context.Context, limit int) ([]*entity.SaleEvent, error) {
	sql, args, err := r.Builder.
		Select(saleEventColumns...).
		From(saleEventsTable).
		Where(squirrel.And{
			squirrel.Eq{processedColumn: false},
			squirrel.NotEq{escalatedAtColumn: nil},
		}).
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(limit)). //nolint:gosec // positive value
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - ListEscalated - r.Builder.ToSql: %w", err)
	}

	events, err := r.queryEvents(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - ListEscalated - r.queryEvents: %w", err)
	}

	return events, nil
}

func (r *SaleEventRepo) ClearErrors(ctx context.Context, ids uuid.UUIDs) error {
	sql, args, err := r.Builder.
		Update(saleEventsTable).
		Set(processingErrorColumn, nil).
		Set(nextAttemptAtColumn, nil).
		Set(escalatedAtColumn, nil).
		Set(updatedAtColumn, squirrel.Expr("now()")).
		Where(squirrel.Eq{idColumn: ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("SaleEventRepo - ClearErrors - r.Builder.ToSql: %w", err)
	}

	return r.execAffecting(ctx, "ClearErrors", sql, args)
}

func (r *SaleEventRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.Builder.
		Update(saleEventsTable).
		Set(processedColumn, true).
		Set(processingErrorColumn, nil).
		Set(nextAttemptAtColumn, nil).
		Set(updatedAtColumn, squirrel.Expr("now()")).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("SaleEventRepo - MarkProcessed - r.Builder.ToSql: %w", err)
	}

	return r.execAffecting(ctx, "MarkProcessed", sql, args)
}

func (r *SaleEventRepo) RecordVerificationSuccess(ctx context.Context, id uuid.UUID) error {
	sql, args, err := r.Builder.
		Update(saleEventsTable).
		Set(verifiedColumn, true).
		Set(verificationErrorColumn, nil).
		Set(nextAttemptAtColumn, nil).
		Set(updatedAtColumn, squirrel.Expr("now()")).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("SaleEventRepo - RecordVerificationSuccess - r.Builder.ToSql: %w", err)
	}

	return r.execAffecting(ctx, "RecordVerificationSuccess", sql, args)
}

func (r *SaleEventRepo) RecordVerificationFailure(ctx context.Context, id uuid.UUID, msg string, nextAttemptAt, escalatedAt *time.Time) error {
	b := r.Builder.
		Update(saleEventsTable).
		Set(verificationAttemptsColumn, squirrel.Expr(verificationAttemptsColumn+" + 1")).
		Set(verificationErrorColumn, msg).
		Set(nextAttemptAtColumn, nextAttemptAt).
		Set(updatedAtColumn, squirrel.Expr("now()")).
		Where(squirrel.Eq{idColumn: id})

	// терминальная ошибка остается видимой для ручного retry
	if escalatedAt != nil {
		b = b.
			Set(escalatedAtColumn, *escalatedAt).
			Set(processingErrorColumn, msg)
	}

	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("SaleEventRepo - RecordVerificationFailure - r.Builder.ToSql: %w", err)
	}

	return r.execAffecting(ctx, "RecordVerificationFailure", sql, args)
}

func (r *SaleEventRepo) RecordProcessingError(ctx context.Context, id uuid.UUID, msg string, nextAttemptAt time.Time) error {
	sql, args, err := r.Builder.
		Update(saleEventsTable).
		Set(processingErrorColumn, msg).
		Set(nextAttemptAtColumn, nextAttemptAt).
		Set(updatedAtColumn, squirrel.Expr("now()")).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("SaleEventRepo - RecordProcessingError - r.Builder.ToSql: %w", err)
	}

	return r.execAffecting(ctx, "RecordProcessingError", sql, args)
}

func (r *SaleEventRepo) EscalateExhausted(ctx context.Context, maxRetries int, now time.Time) ([]*entity.SaleEvent, error) {
	sql, args, err := r.Builder.
		Update(saleEventsTable).
		Set(escalatedAtColumn, now).
		Set(updatedAtColumn, squirrel.Expr("now()")).
		Where(squirrel.And{
			squirrel.Eq{processedColumn: false},
			squirrel.Eq{escalatedAtColumn: nil},
			squirrel.GtOrEq{verificationAttemptsColumn: maxRetries},
		}).
		Suffix("RETURNING " + strings.Join(saleEventColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - EscalateExhausted - r.Builder.ToSql: %w", err)
	}

	events, err := r.queryEvents(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - EscalateExhausted - r.queryEvents: %w", err)
	}

	return events, nil
}

// DeleteProcessedBefore never touches unprocessed rows, whatever their age.
func (r *SaleEventRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) ([]*entity.SaleEvent, error) {
	sql, args, err := r.Builder.
		Delete(saleEventsTable).
		Where(squirrel.And{
			squirrel.Eq{processedColumn: true},
			squirrel.Lt{createdAtColumn: cutoff},
		}).
		Suffix("RETURNING " + strings.Join(saleEventColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - DeleteProcessedBefore - r.Builder.ToSql: %w", err)
	}

	events, err := r.queryEvents(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("SaleEventRepo - DeleteProcessedBefore - r.queryEvents: %w", err)
	}

	return events, nil
}

func (r *SaleEventRepo) Stats(ctx context.Context, maxRetries int, since time.Time) (entity.QueueStats, error) {
	sql, args, err := r.Builder.
		Select().
		Column("count(*) FILTER (WHERE processed = false)").
		Column("count(*) FILTER (WHERE processed = false AND processing_error IS NOT NULL)").
		Column("count(*) FILTER (WHERE processed = false AND verified = false AND verification_error IS NOT NULL)").
		Column(squirrel.Expr("count(*) FILTER (WHERE processed = false AND (escalated_at IS NOT NULL OR verification_attempts >= ?))", maxRetries)).
		From(saleEventsTable).
		ToSql()
	if err != nil {
		return entity.QueueStats{}, fmt.Errorf("SaleEventRepo - Stats - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var stats entity.QueueStats
	err = executor.QueryRow(ctx, sql, args...).Scan(
		&stats.Unprocessed,
		&stats.ProcessingErrors,
		&stats.VerificationFailures,
		&stats.Escalated,
	)
	if err != nil {
		return entity.QueueStats{}, fmt.Errorf("SaleEventRepo - Stats - executor.QueryRow: %w", err)
	}

	rows, err := executor.Query(ctx, hourlyActivitySQL, since)
	if err != nil {
		return entity.QueueStats{}, fmt.Errorf("SaleEventRepo - Stats - executor.Query: %w", err)
	}
	defer rows.Close()

	stats.HourlyActivity = make([]entity.HourlyActivity, 0, 24)
	for rows.Next() {
		var h entity.HourlyActivity
		if err = rows.Scan(&h.Hour, &h.Received, &h.Processed); err != nil {
			return entity.QueueStats{}, fmt.Errorf("SaleEventRepo - Stats - rows.Scan: %w", err)
		}
		h.Hour = h.Hour.UTC()
		stats.HourlyActivity = append(stats.HourlyActivity, h)
	}

	if err = rows.Err(); err != nil {
		return entity.QueueStats{}, fmt.Errorf("SaleEventRepo - Stats - rows.Err: %w", err)
	}

	return stats, nil
}

func (r *SaleEventRepo) queryIDs(ctx context.Context, sql string, args []any) (uuid.UUIDs, error) {
	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("executor.Query: %w", err)
	}
	defer rows.Close()

	var ids uuid.UUIDs
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return ids, nil
}

func (r *SaleEventRepo) queryEvents(ctx context.Context, sql string, args []any) ([]*entity.SaleEvent, error) {
	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("executor.Query: %w", err)
	}
	defer rows.Close()

	events := make([]*entity.SaleEvent, 0)
	for rows.Next() {
		event, err := scanSaleEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanSaleEvent: %w", err)
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return events, nil
}

func (r *SaleEventRepo) execAffecting(ctx context.Context, method, sql string, args []any) error {
	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("SaleEventRepo - %s - executor.Exec: %w", method, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("SaleEventRepo - %s: %w", method, errs.ErrRecordNotFound)
	}

	return nil
}

func scanSaleEvent(row scanner) (*entity.SaleEvent, error) {
	var (
		event            entity.SaleEvent
		webhook, polling []byte
	)

	err := row.Scan(
		&event.ID,
		&event.UserID,
		&event.Marketplace,
		&event.ExternalEventID,
		&event.ExternalListingID,
		&event.ExternalTransactionID,
		&event.SalePrice,
		&event.Currency,
		&event.SaleDate,
		&event.BuyerID,
		&event.PaymentStatus,
		&webhook,
		&polling,
		&event.Processed,
		&event.ProcessingError,
		&event.DelistingJobID,
		&event.Verified,
		&event.VerificationAttempts,
		&event.VerificationError,
		&event.EventHash,
		&event.IsDuplicate,
		&event.DuplicateOf,
		&event.NextAttemptAt,
		&event.EscalatedAt,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.Provenance, err = entity.ProvenanceFromColumns(webhook, polling)
	if err != nil {
		return nil, err
	}

	return &event, nil
}

// jsonb keeps a missing payload NULL instead of an empty document.
func jsonb(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
