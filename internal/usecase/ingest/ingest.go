package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/internal/repo"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

type IngestUseCase struct {
	events repo.SaleEventRepo
	logger logger.Interface

	now func() time.Time
}

func New(events repo.SaleEventRepo, l logger.Interface) *IngestUseCase {
	return &IngestUseCase{events: events, logger: l, now: time.Now}
}

// Ingest stores a new unprocessed sale event. An earlier event with the same
// hash turns this one into a duplicate of it.
func (uc *IngestUseCase) Ingest(ctx context.Context, event *entity.SaleEvent) (*entity.SaleEvent, error) {
	// 1. базовые инварианты
	err := validate(event)
	if err != nil {
		return nil, fmt.Errorf("IngestUseCase - Ingest - validate: %w", err)
	}

	now := uc.now()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Processed = false
	event.Verified = false
	event.VerificationAttempts = 0
	event.IsDuplicate = false
	event.DuplicateOf = nil
	event.CreatedAt = now
	event.UpdatedAt = now

	// 2. дедупликация по хэшу
	if hash := EventHash(event); hash != "" {
		event.EventHash = &hash

		err = uc.markDuplicate(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("IngestUseCase - Ingest - uc.markDuplicate: %w", err)
		}
	}

	// 3. сохраняем
	err = uc.events.Create(ctx, event)
	if errors.Is(err, errs.ErrDuplicateEventHash) && !event.IsDuplicate {
		// оригинал записал параллельный воркер - перечитываем и пишем дубликат
		err = uc.markDuplicate(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("IngestUseCase - Ingest - uc.markDuplicate: %w", err)
		}
		err = uc.events.Create(ctx, event)
	}
	if err != nil {
		return nil, fmt.Errorf("IngestUseCase - Ingest - uc.events.Create: %w", err)
	}

	if event.IsDuplicate {
		uc.logger.Info("IngestUseCase - Ingest - sale event %s duplicates %s", event.ID, *event.DuplicateOf)
	}

	return event, nil
}

func (uc *IngestUseCase) markDuplicate(ctx context.Context, event *entity.SaleEvent) error {
	first, err := uc.events.FindFirstByHash(ctx, *event.EventHash)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("uc.events.FindFirstByHash: %w", err)
	}

	event.IsDuplicate = true
	event.DuplicateOf = &first.ID

	return nil
}

// EventHash identifies the sale behind an event. It is empty when the event
// carries neither an external event id nor a transaction id.
func EventHash(e *entity.SaleEvent) string {
	var key string
	switch {
	case e.ExternalEventID != nil && *e.ExternalEventID != "":
		key = strings.Join([]string{string(e.Marketplace), "event", *e.ExternalEventID}, ":")
	case e.ExternalTransactionID != nil && *e.ExternalTransactionID != "":
		key = strings.Join([]string{string(e.Marketplace), "listing", e.ExternalListingID, *e.ExternalTransactionID}, ":")
	default:
		return ""
	}

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func validate(e *entity.SaleEvent) error {
	var problems []string

	if e.UserID == uuid.Nil {
		problems = append(problems, "user_id is required")
	}
	if !e.Marketplace.Valid() {
		problems = append(problems, fmt.Sprintf("unknown marketplace %q", e.Marketplace))
	}
	if strings.TrimSpace(e.ExternalListingID) == "" {
		problems = append(problems, "external_listing_id is required")
	}
	if e.SalePrice.IsNegative() {
		problems = append(problems, "sale_price must not be negative")
	}
	if len(e.Currency) != 3 {
		problems = append(problems, "currency must be a 3-letter code")
	}
	if e.SaleDate.IsZero() {
		problems = append(problems, "sale_date is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errs.ErrInvalidSaleEvent, strings.Join(problems, "; "))
	}

	return nil
}
