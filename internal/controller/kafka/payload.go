package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	sourceWebhook = "webhook"
	sourcePolling = "polling"
	sourceManual  = "manual"
)

// SaleEventPayload is produced by webhook handlers and pollers after they
// checked the marketplace signature.
type SaleEventPayload struct {
	UserID                string          `json:"user_id" validate:"required,uuid"`
	Marketplace           string          `json:"marketplace" validate:"required,oneof=ebay poshmark facebook"`
	ExternalEventID       *string         `json:"external_event_id,omitempty" validate:"omitempty,min=1,max=255"`
	ExternalListingID     string          `json:"external_listing_id" validate:"required,max=255"`
	ExternalTransactionID *string         `json:"external_transaction_id,omitempty" validate:"omitempty,min=1,max=255"`
	SalePrice             decimal.Decimal `json:"sale_price"`
	Currency              string          `json:"currency" validate:"required,len=3,alpha"`
	SaleDate              time.Time       `json:"sale_date" validate:"required"`
	BuyerID               *string         `json:"buyer_id,omitempty" validate:"omitempty,max=255"`
	PaymentStatus         *string         `json:"payment_status,omitempty" validate:"omitempty,max=64"`
	Source                string          `json:"source" validate:"required,oneof=webhook polling manual"`
	Raw                   json.RawMessage `json:"raw,omitempty"`
}

func (p *SaleEventPayload) toEntity() (*entity.SaleEvent, error) {
	userID, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil, fmt.Errorf("uuid.Parse: %w", err)
	}

	raw := p.Raw
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	var provenance entity.Provenance
	switch p.Source {
	case sourceWebhook:
		provenance = entity.WebhookProvenance{Data: raw}
	case sourcePolling:
		provenance = entity.PollingProvenance{Data: raw}
	case sourceManual:
		provenance = nil
	}

	return &entity.SaleEvent{
		UserID:                userID,
		Marketplace:           entity.Marketplace(p.Marketplace),
		ExternalEventID:       p.ExternalEventID,
		ExternalListingID:     p.ExternalListingID,
		ExternalTransactionID: p.ExternalTransactionID,
		SalePrice:             p.SalePrice,
		Currency:              p.Currency,
		SaleDate:              p.SaleDate,
		BuyerID:               p.BuyerID,
		PaymentStatus:         p.PaymentStatus,
		Provenance:            provenance,
	}, nil
}
