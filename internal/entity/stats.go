package entity

import (
	"time"

	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

// ProcessResult is the outcome of processing a single sale event.
type ProcessResult struct {
	EventID    uuid.UUID     `json:"event_id"`
	Success    bool          `json:"success"`
	JobID      *uuid.UUID    `json:"job_id,omitempty"`
	Error      string        `json:"error,omitempty"`
	Kind       errs.Kind     `json:"kind,omitempty"`
	Retryable  bool          `json:"retryable"`
	RetryAfter time.Duration `json:"-"`
}

type ProcessingError struct {
	EventID   string    `json:"event_id"`
	Error     string    `json:"error"`
	Kind      errs.Kind `json:"kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ProcessingStats struct {
	Processed   int               `json:"processed"`
	Failed      int               `json:"failed"`
	Retried     int               `json:"retried"`
	JobsCreated int               `json:"jobs_created"`
	Errors      []ProcessingError `json:"errors"`
}

// Add folds a single result into the stats.
func (s *ProcessingStats) Add(r ProcessResult, at time.Time) {
	switch {
	case r.Success:
		s.Processed++
		if r.JobID != nil {
			s.JobsCreated++
		}
		return
	case r.Retryable:
		s.Retried++
	default:
		s.Failed++
	}

	s.Errors = append(s.Errors, ProcessingError{
		EventID:   r.EventID.String(),
		Error:     r.Error,
		Kind:      r.Kind,
		Timestamp: at,
	})
}

type HourlyActivity struct {
	Hour      time.Time `json:"hour"`
	Received  int64     `json:"received"`
	Processed int64     `json:"processed"`
}

type QueueStats struct {
	Unprocessed          int64            `json:"unprocessed"`
	ProcessingErrors     int64            `json:"processing_errors"`
	VerificationFailures int64            `json:"verification_failures"`
	Escalated            int64            `json:"escalated"`
	HourlyActivity       []HourlyActivity `json:"hourly_activity"`
}

type CleanupResult struct {
	Deleted    int64  `json:"deleted"`
	ArchiveKey string `json:"archive_key,omitempty"`
}
