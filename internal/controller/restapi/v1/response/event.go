package response

import "github.com/andreyxaxa/Resale-Delister/internal/entity"

type ProcessResult struct {
	EventID      string  `json:"event_id"`
	Success      bool    `json:"success"`
	JobID        *string `json:"job_id,omitempty"`
	Error        string  `json:"error,omitempty"`
	Kind         string  `json:"kind,omitempty" example:"rate_limited"`
	Retryable    bool    `json:"retryable"`
	RetryAfterMs int64   `json:"retry_after_ms,omitempty" example:"60000"`
}

func NewProcessResult(r entity.ProcessResult) ProcessResult {
	resp := ProcessResult{
		EventID:      r.EventID.String(),
		Success:      r.Success,
		Error:        r.Error,
		Kind:         string(r.Kind),
		Retryable:    r.Retryable,
		RetryAfterMs: r.RetryAfter.Milliseconds(),
	}

	if r.JobID != nil {
		id := r.JobID.String()
		resp.JobID = &id
	}

	return resp
}

type EscalatedEvent struct {
	*entity.SaleEvent
	Provenance string `json:"provenance" example:"webhook"`
}

type EscalatedEvents struct {
	Events []EscalatedEvent `json:"events"`
	Count  int              `json:"count"`
}

func NewEscalatedEvents(events []*entity.SaleEvent) EscalatedEvents {
	out := make([]EscalatedEvent, 0, len(events))
	for _, e := range events {
		out = append(out, EscalatedEvent{SaleEvent: e, Provenance: entity.ProvenanceName(e.Provenance)})
	}

	return EscalatedEvents{Events: out, Count: len(out)}
}
