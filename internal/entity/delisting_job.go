package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending         JobStatus = "pending"
	JobProcessing      JobStatus = "processing"
	JobCompleted       JobStatus = "completed"
	JobPartiallyFailed JobStatus = "partially_failed"
	JobFailed          JobStatus = "failed"
	JobCancelled       JobStatus = "cancelled"
)

func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobPartiallyFailed, JobFailed, JobCancelled:
		return true
	}
	return false
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobProcessing, JobCancelled},
	JobProcessing: {JobPending, JobCompleted, JobPartiallyFailed, JobFailed},
}

func CanTransition(from, to JobStatus) bool {
	return slices.Contains(jobTransitions[from], to)
}

type DelistingJob struct {
	ID              uuid.UUID   `json:"id"`
	UserID          uuid.UUID   `json:"user_id"`
	InventoryItemID uuid.UUID   `json:"inventory_item_id"`
	SaleEventID     *uuid.UUID  `json:"sale_event_id,omitempty"`
	SoldOn          Marketplace `json:"sold_on"`

	MarketplacesTargeted  []Marketplace `json:"marketplaces_targeted"`
	MarketplacesCompleted []Marketplace `json:"marketplaces_completed"`
	MarketplacesFailed    []Marketplace `json:"marketplaces_failed"`

	Status JobStatus `json:"status"`

	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	ScheduledFor time.Time `json:"scheduled_for"`

	RequiresUserConfirmation bool       `json:"requires_user_confirmation"`
	UserConfirmedAt          *time.Time `json:"user_confirmed_at,omitempty"`
	UserCancelledAt          *time.Time `json:"user_cancelled_at,omitempty"`
	CancellationReason       *string    `json:"cancellation_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Eligible reports whether the job may be picked up by the delisting executor.
// A job waiting for user confirmation is never eligible.
func (j *DelistingJob) Eligible(now time.Time) bool {
	if j.Status != JobPending || j.UserCancelledAt != nil {
		return false
	}
	if j.RequiresUserConfirmation && j.UserConfirmedAt == nil {
		return false
	}
	return !j.ScheduledFor.After(now)
}

func (j *DelistingJob) AwaitingConfirmation() bool {
	return j.Status == JobPending && j.RequiresUserConfirmation &&
		j.UserConfirmedAt == nil && j.UserCancelledAt == nil
}

// TerminalStatus derives the final status from the three marketplace sets.
// completed and failed must be disjoint and together cover targeted.
func TerminalStatus(targeted, completed, failed []Marketplace) (JobStatus, error) {
	for _, m := range completed {
		if slices.Contains(failed, m) {
			return "", fmt.Errorf("TerminalStatus - %s both completed and failed: %w", m, errs.ErrInvalidTransition)
		}
	}

	if len(completed)+len(failed) != len(targeted) {
		return "", fmt.Errorf("TerminalStatus - not every target settled: %w", errs.ErrInvalidTransition)
	}
	for _, m := range targeted {
		if !slices.Contains(completed, m) && !slices.Contains(failed, m) {
			return "", fmt.Errorf("TerminalStatus - %s not settled: %w", m, errs.ErrInvalidTransition)
		}
	}

	switch {
	case len(failed) == 0:
		return JobCompleted, nil
	case len(completed) == 0:
		return JobFailed, nil
	default:
		return JobPartiallyFailed, nil
	}
}
