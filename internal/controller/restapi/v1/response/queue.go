package response

import "github.com/andreyxaxa/Resale-Delister/internal/entity"

type QueueStats struct {
	Unprocessed          int64                   `json:"unprocessed" example:"12"`
	ProcessingErrors     int64                   `json:"processing_errors" example:"1"`
	VerificationFailures int64                   `json:"verification_failures" example:"2"`
	Escalated            int64                   `json:"escalated" example:"0"`
	HourlyActivity       []entity.HourlyActivity `json:"hourly_activity"`
}

func NewQueueStats(s entity.QueueStats) QueueStats {
	hourly := s.HourlyActivity
	if hourly == nil {
		hourly = []entity.HourlyActivity{}
	}

	return QueueStats{
		Unprocessed:          s.Unprocessed,
		ProcessingErrors:     s.ProcessingErrors,
		VerificationFailures: s.VerificationFailures,
		Escalated:            s.Escalated,
		HourlyActivity:       hourly,
	}
}

type ProcessingStats struct {
	Processed   int                      `json:"processed" example:"10"`
	Failed      int                      `json:"failed" example:"1"`
	Retried     int                      `json:"retried" example:"2"`
	JobsCreated int                      `json:"jobs_created" example:"7"`
	Errors      []entity.ProcessingError `json:"errors"`
}

func NewProcessingStats(s entity.ProcessingStats) ProcessingStats {
	errList := s.Errors
	if errList == nil {
		errList = []entity.ProcessingError{}
	}

	return ProcessingStats{
		Processed:   s.Processed,
		Failed:      s.Failed,
		Retried:     s.Retried,
		JobsCreated: s.JobsCreated,
		Errors:      errList,
	}
}
