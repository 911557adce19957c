package response

import "github.com/andreyxaxa/Resale-Delister/internal/entity"

type Job struct {
	*entity.DelistingJob
	AwaitingConfirmation bool                        `json:"awaiting_confirmation"`
	AuditLog             []*entity.DelistingAuditLog `json:"audit_log,omitempty"`
}

func NewJob(job *entity.DelistingJob, logs []*entity.DelistingAuditLog) Job {
	return Job{
		DelistingJob:         job,
		AwaitingConfirmation: job.AwaitingConfirmation(),
		AuditLog:             logs,
	}
}
