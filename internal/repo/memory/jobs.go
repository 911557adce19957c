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

type DelistingJobRepo struct {
	*Store
}

// MaterializeJob follows materialize_delisting_job from the migrations.
func (r *DelistingJobRepo) MaterializeJob(_ context.Context, eventID uuid.UUID, policy entity.JobPolicy) (*uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Jobs.MaterializeJob"); err != nil {
		return nil, err
	}

	event, ok := r.st.events[eventID]
	if !ok {
		return nil, fmt.Errorf("DelistingJobRepo - MaterializeJob: %w", errs.ErrRecordNotFound)
	}
	if event.Processed {
		return event.DelistingJobID, nil
	}

	now := r.Now()
	finish := func(jobID *uuid.UUID) (*uuid.UUID, error) {
		event.Processed = true
		event.DelistingJobID = jobID
		event.ProcessingError = nil
		event.NextAttemptAt = nil
		event.UpdatedAt = now
		r.st.events[event.ID] = event
		return jobID, nil
	}

	// 1. листинг, на котором продали
	sold := -1
	for i, l := range r.st.listings {
		if l.UserID == event.UserID && l.Marketplace == event.Marketplace && l.ExternalListingID == event.ExternalListingID {
			sold = i
			break
		}
	}
	if sold < 0 {
		return finish(nil)
	}
	r.st.listings[sold].Status = ListingSold
	itemID := r.st.listings[sold].InventoryItemID

	// 2. активные листинги на других площадках
	var targets []entity.Marketplace
	for _, l := range r.st.listings {
		if l.InventoryItemID != itemID || l.UserID != event.UserID || l.Status != ListingActive {
			continue
		}
		if l.Marketplace == event.Marketplace || slices.Contains(policy.Excluded, l.Marketplace) {
			continue
		}
		if !slices.Contains(targets, l.Marketplace) {
			targets = append(targets, l.Marketplace)
		}
	}
	if len(targets) == 0 {
		return finish(nil)
	}

	// 3. открытая задача по товару переиспользуется
	for id, job := range r.st.jobs {
		if job.InventoryItemID != itemID || (job.Status != entity.JobPending && job.Status != entity.JobProcessing) {
			continue
		}
		// проданная площадка и неактивные листинги выпадают из целей,
		// уже отработанные площадки остаются
		merged := make([]entity.Marketplace, 0, len(job.MarketplacesTargeted)+len(targets))
		for _, m := range append(slices.Clone(job.MarketplacesTargeted), targets...) {
			if slices.Contains(merged, m) {
				continue
			}
			done := slices.Contains(job.MarketplacesCompleted, m) || slices.Contains(job.MarketplacesFailed, m)
			if done || (m != event.Marketplace && r.activeListing(itemID, event.UserID, m)) {
				merged = append(merged, m)
			}
		}
		job.MarketplacesTargeted = merged
		job.UpdatedAt = now
		r.st.jobs[id] = job

		jobID := id
		return finish(&jobID)
	}

	job := entity.DelistingJob{
		ID:                       uuid.New(),
		UserID:                   event.UserID,
		InventoryItemID:          itemID,
		SaleEventID:              &event.ID,
		SoldOn:                   event.Marketplace,
		MarketplacesTargeted:     targets,
		MarketplacesCompleted:    []entity.Marketplace{},
		MarketplacesFailed:       []entity.Marketplace{},
		Status:                   entity.JobPending,
		MaxRetries:               policy.MaxRetries,
		ScheduledFor:             policy.ScheduledFor,
		RequiresUserConfirmation: policy.RequiresConfirmation,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	r.st.jobs[job.ID] = job

	return finish(&job.ID)
}

// activeListing must be called with mu held.
func (r *DelistingJobRepo) activeListing(itemID, userID uuid.UUID, m entity.Marketplace) bool {
	for _, l := range r.st.listings {
		if l.InventoryItemID == itemID && l.UserID == userID && l.Marketplace == m && l.Status == ListingActive {
			return true
		}
	}
	return false
}

func (r *DelistingJobRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.DelistingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Jobs.GetByID"); err != nil {
		return nil, err
	}

	job, ok := r.st.jobs[id]
	if !ok {
		return nil, fmt.Errorf("DelistingJobRepo - GetByID: %w", errs.ErrRecordNotFound)
	}

	return &job, nil
}

func (r *DelistingJobRepo) Confirm(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Jobs.Confirm"); err != nil {
		return err
	}

	job, ok := r.st.jobs[id]
	if !ok || job.UserID != userID {
		return fmt.Errorf("DelistingJobRepo - Confirm: %w", errs.ErrRecordNotFound)
	}
	if !job.AwaitingConfirmation() {
		return fmt.Errorf("DelistingJobRepo - Confirm: %w", errs.ErrInvalidTransition)
	}

	job.UserConfirmedAt = &at
	job.UpdatedAt = at
	r.st.jobs[id] = job

	return nil
}

func (r *DelistingJobRepo) Cancel(_ context.Context, id, userID uuid.UUID, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Jobs.Cancel"); err != nil {
		return err
	}

	job, ok := r.st.jobs[id]
	if !ok || job.UserID != userID {
		return fmt.Errorf("DelistingJobRepo - Cancel: %w", errs.ErrRecordNotFound)
	}
	if !entity.CanTransition(job.Status, entity.JobCancelled) {
		return fmt.Errorf("DelistingJobRepo - Cancel: %w", errs.ErrInvalidTransition)
	}

	job.Status = entity.JobCancelled
	job.UserCancelledAt = &at
	job.CancellationReason = &reason
	job.UpdatedAt = at
	r.st.jobs[id] = job

	return nil
}
