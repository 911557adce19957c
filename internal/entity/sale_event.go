package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SaleEvent struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`

	Marketplace           Marketplace `json:"marketplace"`
	ExternalEventID       *string     `json:"external_event_id,omitempty"`
	ExternalListingID     string      `json:"external_listing_id"`
	ExternalTransactionID *string     `json:"external_transaction_id,omitempty"`

	SalePrice     decimal.Decimal `json:"sale_price"`
	Currency      string          `json:"currency"`
	SaleDate      time.Time       `json:"sale_date"`
	BuyerID       *string         `json:"buyer_id,omitempty"`
	PaymentStatus *string         `json:"payment_status,omitempty"`

	// nil when the event was created manually
	Provenance Provenance `json:"-"`

	Processed       bool       `json:"processed"`
	ProcessingError *string    `json:"processing_error,omitempty"`
	DelistingJobID  *uuid.UUID `json:"delisting_job_id,omitempty"`

	Verified             bool    `json:"verified"`
	VerificationAttempts int     `json:"verification_attempts"`
	VerificationError    *string `json:"verification_error,omitempty"`

	EventHash   *string    `json:"event_hash,omitempty"`
	IsDuplicate bool       `json:"is_duplicate"`
	DuplicateOf *uuid.UUID `json:"duplicate_of,omitempty"`

	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	EscalatedAt   *time.Time `json:"escalated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provenance records which ingestion path produced a sale event.
type Provenance interface {
	Raw() json.RawMessage
	provenance()
}

// WebhookProvenance is set by webhook handlers after the signature check.
type WebhookProvenance struct {
	Data json.RawMessage
}

// PollingProvenance is set by pollers that already saw the sale in the
// marketplace's listing snapshot.
type PollingProvenance struct {
	Data json.RawMessage
}

func (p WebhookProvenance) Raw() json.RawMessage { return p.Data }
func (p PollingProvenance) Raw() json.RawMessage { return p.Data }

func (WebhookProvenance) provenance() {}
func (PollingProvenance) provenance() {}

// ProvenanceFromColumns maps the two nullable payload columns to a Provenance.
func ProvenanceFromColumns(webhook, polling []byte) (Provenance, error) {
	switch {
	case webhook != nil && polling != nil:
		return nil, fmt.Errorf("ProvenanceFromColumns: %w", errs.ErrInvalidProvenance)
	case webhook != nil:
		return WebhookProvenance{Data: webhook}, nil
	case polling != nil:
		return PollingProvenance{Data: polling}, nil
	default:
		return nil, nil
	}
}

func ProvenanceColumns(p Provenance) (webhook, polling []byte) {
	switch v := p.(type) {
	case WebhookProvenance:
		return v.Data, nil
	case PollingProvenance:
		return nil, v.Data
	default:
		return nil, nil
	}
}

func ProvenanceName(p Provenance) string {
	switch p.(type) {
	case WebhookProvenance:
		return "webhook"
	case PollingProvenance:
		return "polling"
	default:
		return "none"
	}
}
