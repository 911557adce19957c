package persistent

import (
	"context"
	"errors"
	"fmt"
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
	delistingJobsTable = "delisting_jobs"

	// Columns
	inventoryItemIDColumn          = "inventory_item_id"
	saleEventIDColumn              = "sale_event_id"
	soldOnColumn                   = "sold_on"
	marketplacesTargetedColumn     = "marketplaces_targeted"
	marketplacesCompletedColumn    = "marketplaces_completed"
	marketplacesFailedColumn       = "marketplaces_failed"
	statusColumn                   = "status"
	retryCountColumn               = "retry_count"
	maxRetriesColumn               = "max_retries"
	scheduledForColumn             = "scheduled_for"
	requiresUserConfirmationColumn = "requires_user_confirmation"
	userConfirmedAtColumn          = "user_confirmed_at"
	userCancelledAtColumn          = "user_cancelled_at"
	cancellationReasonColumn       = "cancellation_reason"
	completedAtColumn              = "completed_at"

	materializeJobSQL = "SELECT materialize_delisting_job($1, $2, $3, $4, $5)"

	// raised by materialize_delisting_job for a missing event
	noDataFoundCode = "P0002"
)

var delistingJobColumns = []string{
	idColumn,
	userIDColumn,
	inventoryItemIDColumn,
	saleEventIDColumn,
	soldOnColumn,
	marketplacesTargetedColumn,
	marketplacesCompletedColumn,
	marketplacesFailedColumn,
	statusColumn,
	retryCountColumn,
	maxRetriesColumn,
	scheduledForColumn,
	requiresUserConfirmationColumn,
	userConfirmedAtColumn,
	userCancelledAtColumn,
	cancellationReasonColumn,
	createdAtColumn,
	updatedAtColumn,
	completedAtColumn,
}

type DelistingJobRepo struct {
	*postgres.Postgres
}

func NewDelistingJobRepo(pg *postgres.Postgres) *DelistingJobRepo {
	return &DelistingJobRepo{pg}
}

// MaterializeJob delegates to materialize_delisting_job, which locks the
// event and the item's listings for the duration of the call.
func (r *DelistingJobRepo) MaterializeJob(ctx context.Context, eventID uuid.UUID, policy entity.JobPolicy) (*uuid.UUID, error) {
	var excluded []string
	if len(policy.Excluded) > 0 {
		excluded = entity.MarketplacesToStrings(policy.Excluded)
	}

	var scheduledFor *time.Time
	if !policy.ScheduledFor.IsZero() {
		scheduledFor = &policy.ScheduledFor
	}

	executor := r.GetExecutor(ctx)

	var jobID *uuid.UUID
	err := executor.QueryRow(ctx, materializeJobSQL,
		eventID,
		policy.RequiresConfirmation,
		scheduledFor,
		excluded,
		policy.MaxRetries,
	).Scan(&jobID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == noDataFoundCode {
			return nil, fmt.Errorf("DelistingJobRepo - MaterializeJob: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("DelistingJobRepo - MaterializeJob - executor.QueryRow: %w", err)
	}

	return jobID, nil
}

func (r *DelistingJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.DelistingJob, error) {
	sql, args, err := r.Builder.
		Select(delistingJobColumns...).
		From(delistingJobsTable).
		Where(squirrel.Eq{idColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("DelistingJobRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	job, err := scanDelistingJob(executor.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("DelistingJobRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("DelistingJobRepo - GetByID - scanDelistingJob: %w", err)
	}

	return job, nil
}

func (r *DelistingJobRepo) Confirm(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	sql, args, err := r.Builder.
		Update(delistingJobsTable).
		Set(userConfirmedAtColumn, at).
		Set(updatedAtColumn, at).
		Where(squirrel.And{
			squirrel.Eq{idColumn: id},
			squirrel.Eq{userIDColumn: userID},
			squirrel.Eq{statusColumn: entity.JobPending},
			squirrel.Eq{requiresUserConfirmationColumn: true},
			squirrel.Eq{userConfirmedAtColumn: nil},
			squirrel.Eq{userCancelledAtColumn: nil},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("DelistingJobRepo - Confirm - r.Builder.ToSql: %w", err)
	}

	return r.transition(ctx, "Confirm", id, userID, sql, args)
}

func (r *DelistingJobRepo) Cancel(ctx context.Context, id, userID uuid.UUID, reason string, at time.Time) error {
	sql, args, err := r.Builder.
		Update(delistingJobsTable).
		Set(statusColumn, entity.JobCancelled).
		Set(userCancelledAtColumn, at).
		Set(cancellationReasonColumn, reason).
		Set(updatedAtColumn, at).
		Where(squirrel.And{
			squirrel.Eq{idColumn: id},
			squirrel.Eq{userIDColumn: userID},
			squirrel.Eq{statusColumn: entity.JobPending},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("DelistingJobRepo - Cancel - r.Builder.ToSql: %w", err)
	}

	return r.transition(ctx, "Cancel", id, userID, sql, args)
}

// transition runs a guarded update. When nothing changed it tells a missing
// job apart from a job in the wrong state.
func (r *DelistingJobRepo) transition(ctx context.Context, method string, id, userID uuid.UUID, sql string, args []any) error {
	executor := r.GetExecutor(ctx)

	tag, err := executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("DelistingJobRepo - %s - executor.Exec: %w", method, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	sql, args, err = r.Builder.
		Select("1").
		From(delistingJobsTable).
		Where(squirrel.And{
			squirrel.Eq{idColumn: id},
			squirrel.Eq{userIDColumn: userID},
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("DelistingJobRepo - %s - r.Builder.ToSql: %w", method, err)
	}

	var one int
	err = executor.QueryRow(ctx, sql, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("DelistingJobRepo - %s: %w", method, errs.ErrRecordNotFound)
		}
		return fmt.Errorf("DelistingJobRepo - %s - executor.QueryRow: %w", method, err)
	}

	return fmt.Errorf("DelistingJobRepo - %s: %w", method, errs.ErrInvalidTransition)
}

func scanDelistingJob(row scanner) (*entity.DelistingJob, error) {
	var (
		job                         entity.DelistingJob
		targeted, completed, failed []string
	)

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.InventoryItemID,
		&job.SaleEventID,
		&job.SoldOn,
		&targeted,
		&completed,
		&failed,
		&job.Status,
		&job.RetryCount,
		&job.MaxRetries,
		&job.ScheduledFor,
		&job.RequiresUserConfirmation,
		&job.UserConfirmedAt,
		&job.UserCancelledAt,
		&job.CancellationReason,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.MarketplacesTargeted = entity.MarketplacesFromStrings(targeted)
	job.MarketplacesCompleted = entity.MarketplacesFromStrings(completed)
	job.MarketplacesFailed = entity.MarketplacesFromStrings(failed)

	return &job, nil
}
