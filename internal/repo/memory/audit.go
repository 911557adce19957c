package memory

import (
	"context"
	"slices"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/google/uuid"
)

type AuditLogRepo struct {
	*Store
}

func (r *AuditLogRepo) Create(_ context.Context, entry *entity.DelistingAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Audit.Create"); err != nil {
		return err
	}

	r.st.audit = append(r.st.audit, *entry)

	return nil
}

func (r *AuditLogRepo) ListByJob(_ context.Context, jobID uuid.UUID, limit int) ([]*entity.DelistingAuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Audit.ListByJob"); err != nil {
		return nil, err
	}

	var out []*entity.DelistingAuditLog
	for _, a := range slices.Backward(r.st.audit) {
		if a.DelistingJobID == nil || *a.DelistingJobID != jobID {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, &a)
	}

	return out, nil
}

func (r *AuditLogRepo) CountBySaleEvent(_ context.Context, eventID uuid.UUID, action entity.AuditAction) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Audit.CountBySaleEvent"); err != nil {
		return 0, err
	}

	var n int64
	for _, a := range r.st.audit {
		if a.SaleEventID != nil && *a.SaleEventID == eventID && a.Action == action {
			n++
		}
	}

	return n, nil
}
