package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

type SaleEventRepo struct {
	*Store
}

func (r *SaleEventRepo) Create(_ context.Context, event *entity.SaleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.Create"); err != nil {
		return err
	}
	if _, ok := r.st.events[event.ID]; ok {
		return fmt.Errorf("SaleEventRepo - Create: event %s already exists", event.ID)
	}
	if event.EventHash != nil && !event.IsDuplicate {
		for _, e := range r.st.events {
			if e.EventHash != nil && *e.EventHash == *event.EventHash && !e.IsDuplicate {
				return fmt.Errorf("SaleEventRepo - Create: %w", errs.ErrDuplicateEventHash)
			}
		}
	}

	now := r.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	r.st.events[event.ID] = *event

	return nil
}

func (r *SaleEventRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.SaleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.GetByID"); err != nil {
		return nil, err
	}

	e, ok := r.st.events[id]
	if !ok {
		return nil, fmt.Errorf("SaleEventRepo - GetByID: %w", errs.ErrRecordNotFound)
	}

	return &e, nil
}

func (r *SaleEventRepo) FindFirstByHash(_ context.Context, hash string) (*entity.SaleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.FindFirstByHash"); err != nil {
		return nil, err
	}

	matches := r.filter(func(e *entity.SaleEvent) bool {
		return e.EventHash != nil && *e.EventHash == hash && !e.IsDuplicate
	})
	if len(matches) == 0 {
		return nil, fmt.Errorf("SaleEventRepo - FindFirstByHash: %w", errs.ErrRecordNotFound)
	}

	return &matches[0], nil
}

func (r *SaleEventRepo) ListPendingIDs(_ context.Context, maxRetries, limit int, now time.Time) (uuid.UUIDs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.ListPendingIDs"); err != nil {
		return nil, err
	}

	return ids(r.filter(func(e *entity.SaleEvent) bool {
		return !e.Processed &&
			e.VerificationAttempts < maxRetries &&
			e.EscalatedAt == nil &&
			(e.NextAttemptAt == nil || !e.NextAttemptAt.After(now))
	}), limit), nil
}

func (r *SaleEventRepo) ListFailedIDs(_ context.Context, maxRetries, limit int) (uuid.UUIDs, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.ListFailedIDs"); err != nil {
		return nil, err
	}

	return ids(r.filter(func(e *entity.SaleEvent) bool {
		return !e.Processed && e.ProcessingError != nil && e.VerificationAttempts < maxRetries
	}), limit), nil
}

func (r *SaleEventRepo) ListEscalated(_ context.Context, limit int) ([]*entity.SaleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.ListEscalated"); err != nil {
		return nil, err
	}

	matches := r.filter(func(e *entity.SaleEvent) bool {
		return !e.Processed && e.EscalatedAt != nil
	})

	return pointers(matches, limit), nil
}

func (r *SaleEventRepo) ClearErrors(_ context.Context, list uuid.UUIDs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.ClearErrors"); err != nil {
		return err
	}

	return r.update(list, func(e *entity.SaleEvent) {
		e.ProcessingError = nil
		e.NextAttemptAt = nil
		e.EscalatedAt = nil
	})
}

func (r *SaleEventRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.MarkProcessed"); err != nil {
		return err
	}

	return r.update(uuid.UUIDs{id}, func(e *entity.SaleEvent) {
		e.Processed = true
		e.ProcessingError = nil
		e.NextAttemptAt = nil
	})
}

func (r *SaleEventRepo) RecordVerificationSuccess(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.RecordVerificationSuccess"); err != nil {
		return err
	}

	return r.update(uuid.UUIDs{id}, func(e *entity.SaleEvent) {
		e.Verified = true
		e.VerificationError = nil
		e.NextAttemptAt = nil
	})
}

func (r *SaleEventRepo) RecordVerificationFailure(_ context.Context, id uuid.UUID, msg string, nextAttemptAt, escalatedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.RecordVerificationFailure"); err != nil {
		return err
	}

	return r.update(uuid.UUIDs{id}, func(e *entity.SaleEvent) {
		e.VerificationAttempts++
		e.VerificationError = &msg
		e.NextAttemptAt = nextAttemptAt
		if escalatedAt != nil {
			e.EscalatedAt = escalatedAt
			e.ProcessingError = &msg
		}
	})
}

func (r *SaleEventRepo) RecordProcessingError(_ context.Context, id uuid.UUID, msg string, nextAttemptAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.RecordProcessingError"); err != nil {
		return err
	}

	return r.update(uuid.UUIDs{id}, func(e *entity.SaleEvent) {
		e.ProcessingError = &msg
		e.NextAttemptAt = &nextAttemptAt
	})
}

func (r *SaleEventRepo) EscalateExhausted(_ context.Context, maxRetries int, now time.Time) ([]*entity.SaleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.EscalateExhausted"); err != nil {
		return nil, err
	}

	matches := r.filter(func(e *entity.SaleEvent) bool {
		return !e.Processed && e.EscalatedAt == nil && e.VerificationAttempts >= maxRetries
	})

	out := make([]*entity.SaleEvent, 0, len(matches))
	for _, e := range matches {
		e.EscalatedAt = &now
		e.UpdatedAt = r.Now()
		r.st.events[e.ID] = e
		out = append(out, &e)
	}

	return out, nil
}

func (r *SaleEventRepo) DeleteProcessedBefore(_ context.Context, cutoff time.Time) ([]*entity.SaleEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.DeleteProcessedBefore"); err != nil {
		return nil, err
	}

	matches := r.filter(func(e *entity.SaleEvent) bool {
		return e.Processed && e.CreatedAt.Before(cutoff)
	})

	out := make([]*entity.SaleEvent, 0, len(matches))
	for _, e := range matches {
		delete(r.st.events, e.ID)
		out = append(out, &e)
	}

	return out, nil
}

func (r *SaleEventRepo) Stats(_ context.Context, maxRetries int, since time.Time) (entity.QueueStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("SaleEvents.Stats"); err != nil {
		return entity.QueueStats{}, err
	}

	var stats entity.QueueStats
	hours := make(map[time.Time]*entity.HourlyActivity)
	bucket := func(t time.Time) *entity.HourlyActivity {
		h := t.UTC().Truncate(time.Hour)
		if _, ok := hours[h]; !ok {
			hours[h] = &entity.HourlyActivity{Hour: h}
		}
		return hours[h]
	}

	for _, e := range r.st.events {
		if !e.Processed {
			stats.Unprocessed++
			if e.ProcessingError != nil {
				stats.ProcessingErrors++
			}
			if e.VerificationError != nil && !e.Verified {
				stats.VerificationFailures++
			}
			if e.EscalatedAt != nil || e.VerificationAttempts >= maxRetries {
				stats.Escalated++
			}
		}

		if !e.CreatedAt.Before(since) {
			bucket(e.CreatedAt).Received++
		}
		if e.Processed && !e.UpdatedAt.Before(since) {
			bucket(e.UpdatedAt).Processed++
		}
	}

	stats.HourlyActivity = make([]entity.HourlyActivity, 0, len(hours))
	for _, h := range hours {
		stats.HourlyActivity = append(stats.HourlyActivity, *h)
	}
	slices.SortFunc(stats.HourlyActivity, func(a, b entity.HourlyActivity) int {
		return a.Hour.Compare(b.Hour)
	})

	return stats, nil
}

// filter returns matching events oldest first. mu must be held.
func (r *SaleEventRepo) filter(match func(e *entity.SaleEvent) bool) []entity.SaleEvent {
	var out []entity.SaleEvent
	for _, e := range r.st.events {
		if match(&e) {
			out = append(out, e)
		}
	}

	slices.SortFunc(out, func(a, b entity.SaleEvent) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})

	return out
}

// update applies f to every listed event. mu must be held.
func (r *SaleEventRepo) update(list uuid.UUIDs, f func(e *entity.SaleEvent)) error {
	affected := 0
	for _, id := range list {
		e, ok := r.st.events[id]
		if !ok {
			continue
		}
		f(&e)
		e.UpdatedAt = r.Now()
		r.st.events[id] = e
		affected++
	}

	if affected == 0 {
		return fmt.Errorf("SaleEventRepo - update: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func ids(events []entity.SaleEvent, limit int) uuid.UUIDs {
	out := make(uuid.UUIDs, 0, len(events))
	for _, e := range events {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, e.ID)
	}
	return out
}

func pointers(events []entity.SaleEvent, limit int) []*entity.SaleEvent {
	out := make([]*entity.SaleEvent, 0, len(events))
	for i := range events {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, &events[i])
	}
	return out
}
