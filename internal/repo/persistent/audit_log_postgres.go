package persistent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/postgres"
	"github.com/google/uuid"
)

const (
	// Table
	auditLogsTable = "delisting_audit_logs"

	// Columns
	auditActionColumn       = "action"
	auditSuccessColumn      = "success"
	auditErrorMessageColumn = "error_message"
	auditErrorCodeColumn    = "error_code"
	auditDurationMsColumn   = "duration_ms"
	auditContextColumn      = "context"
)

var auditLogColumns = []string{
	idColumn,
	userIDColumn,
	delistingJobIDColumn,
	saleEventIDColumn,
	auditActionColumn,
	marketplaceColumn,
	auditSuccessColumn,
	auditErrorMessageColumn,
	auditErrorCodeColumn,
	auditDurationMsColumn,
	auditContextColumn,
	createdAtColumn,
}

// AuditLogRepo is append-only: rows are never updated or deleted here.
type AuditLogRepo struct {
	*postgres.Postgres
}

func NewAuditLogRepo(pg *postgres.Postgres) *AuditLogRepo {
	return &AuditLogRepo{pg}
}

func (r *AuditLogRepo) Create(ctx context.Context, entry *entity.DelistingAuditLog) error {
	auditCtx := entry.Context
	if auditCtx == nil {
		auditCtx = map[string]any{}
	}

	payload, err := json.Marshal(auditCtx)
	if err != nil {
		return fmt.Errorf("AuditLogRepo - Create - json.Marshal: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(auditLogsTable).
		Columns(auditLogColumns...).
		Values(
			entry.ID,
			entry.UserID,
			entry.DelistingJobID,
			entry.SaleEventID,
			entry.Action,
			entry.Marketplace,
			entry.Success,
			entry.ErrorMessage,
			entry.ErrorCode,
			entry.DurationMs,
			payload,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("AuditLogRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	_, err = executor.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("AuditLogRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

func (r *AuditLogRepo) ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]*entity.DelistingAuditLog, error) {
	sql, args, err := r.Builder.
		Select(auditLogColumns...).
		From(auditLogsTable).
		Where(squirrel.Eq{delistingJobIDColumn: jobID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)). //nolint:gosec // positive constant
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("AuditLogRepo - ListByJob - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("AuditLogRepo - ListByJob - executor.Query: %w", err)
	}
	defer rows.Close()

	logs := make([]*entity.DelistingAuditLog, 0)
	for rows.Next() {
		var (
			entry   entity.DelistingAuditLog
			payload []byte
		)

		err = rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.DelistingJobID,
			&entry.SaleEventID,
			&entry.Action,
			&entry.Marketplace,
			&entry.Success,
			&entry.ErrorMessage,
			&entry.ErrorCode,
			&entry.DurationMs,
			&payload,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("AuditLogRepo - ListByJob - rows.Scan: %w", err)
		}

		if len(payload) > 0 {
			if err = json.Unmarshal(payload, &entry.Context); err != nil {
				return nil, fmt.Errorf("AuditLogRepo - ListByJob - json.Unmarshal: %w", err)
			}
		}

		logs = append(logs, &entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("AuditLogRepo - ListByJob - rows.Err: %w", err)
	}

	return logs, nil
}

func (r *AuditLogRepo) CountBySaleEvent(ctx context.Context, eventID uuid.UUID, action entity.AuditAction) (int64, error) {
	sql, args, err := r.Builder.
		Select("count(*)").
		From(auditLogsTable).
		Where(squirrel.And{
			squirrel.Eq{saleEventIDColumn: eventID},
			squirrel.Eq{auditActionColumn: action},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("AuditLogRepo - CountBySaleEvent - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var n int64
	err = executor.QueryRow(ctx, sql, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("AuditLogRepo - CountBySaleEvent - executor.QueryRow: %w", err)
	}

	return n, nil
}
