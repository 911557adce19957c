package audit

import (
	"context"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/internal/repo"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/google/uuid"
)

// AuditUseCase appends audit rows. A failed write is logged and never
// bubbles up to the action being audited.
type AuditUseCase struct {
	repo   repo.AuditLogRepo
	logger logger.Interface
	now    func() time.Time
}

func New(r repo.AuditLogRepo, l logger.Interface) *AuditUseCase {
	return &AuditUseCase{repo: r, logger: l, now: time.Now}
}

func (uc *AuditUseCase) Record(ctx context.Context, entry *entity.DelistingAuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = uc.now()
	}

	// аудит не должен зависеть от отмены запроса
	err := uc.repo.Create(context.WithoutCancel(ctx), entry)
	if err != nil {
		uc.logger.Error(err, "AuditUseCase - Record - uc.repo.Create")
	}
}

// Failure fills the error columns of an entry.
func Failure(entry *entity.DelistingAuditLog, err error, code string) *entity.DelistingAuditLog {
	entry.Success = false
	if err != nil {
		msg := err.Error()
		entry.ErrorMessage = &msg
	}
	if code != "" {
		entry.ErrorCode = &code
	}
	return entry
}

func Duration(entry *entity.DelistingAuditLog, d time.Duration) *entity.DelistingAuditLog {
	ms := d.Milliseconds()
	entry.DurationMs = &ms
	return entry
}
