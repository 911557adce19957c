package memory

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
)

type PreferencesRepo struct {
	*Store
}

func (r *PreferencesRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*entity.UserDelistingPreferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Preferences.GetByUserID"); err != nil {
		return nil, err
	}

	p, ok := r.st.prefs[userID]
	if !ok {
		return nil, fmt.Errorf("PreferencesRepo - GetByUserID: %w", errs.ErrRecordNotFound)
	}

	return &p, nil
}

type ArchiveRepo struct {
	*Store
}

func (r *ArchiveRepo) Put(_ context.Context, key string, body []byte, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enter("Archive.Put"); err != nil {
		return err
	}

	r.st.archive[key] = body

	return nil
}
