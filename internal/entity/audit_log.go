package entity

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	ActionSaleEventProcessed    AuditAction = "sale_event_processed"
	ActionSaleEventEscalated    AuditAction = "sale_event_escalated"
	ActionVerificationFailed    AuditAction = "verification_failed"
	ActionJobConfirmed          AuditAction = "job_confirmed"
	ActionJobCancelled          AuditAction = "job_cancelled"
	ActionJobNotificationFailed AuditAction = "job_notification_failed"
)

// DelistingAuditLog is append-only. One row per attempted action.
type DelistingAuditLog struct {
	ID             uuid.UUID      `json:"id"`
	UserID         *uuid.UUID     `json:"user_id,omitempty"`
	DelistingJobID *uuid.UUID     `json:"delisting_job_id,omitempty"`
	SaleEventID    *uuid.UUID     `json:"sale_event_id,omitempty"`
	Action         AuditAction    `json:"action"`
	Marketplace    *Marketplace   `json:"marketplace,omitempty"`
	Success        bool           `json:"success"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	ErrorCode      *string        `json:"error_code,omitempty"`
	DurationMs     *int64         `json:"duration_ms,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
