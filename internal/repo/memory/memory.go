// Package memory is an in-process test double of the repo contracts. It
// mirrors the postgres semantics closely enough to drive usecase tests,
// including transactional rollback, job materialization and the unique
// original hash. The service itself always runs on repo/persistent.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingSold     ListingStatus = "sold"
	ListingDelisted ListingStatus = "delisted"
)

type Listing struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	InventoryItemID   uuid.UUID
	Marketplace       entity.Marketplace
	ExternalListingID string
	Status            ListingStatus
}

type state struct {
	events   map[uuid.UUID]entity.SaleEvent
	jobs     map[uuid.UUID]entity.DelistingJob
	audit    []entity.DelistingAuditLog
	prefs    map[uuid.UUID]entity.UserDelistingPreferences
	listings []Listing
	archive  map[string][]byte
}

func (s *state) clone() *state {
	c := &state{
		events:   make(map[uuid.UUID]entity.SaleEvent, len(s.events)),
		jobs:     make(map[uuid.UUID]entity.DelistingJob, len(s.jobs)),
		audit:    slices.Clone(s.audit),
		prefs:    make(map[uuid.UUID]entity.UserDelistingPreferences, len(s.prefs)),
		listings: slices.Clone(s.listings),
		archive:  make(map[string][]byte, len(s.archive)),
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	for k, v := range s.prefs {
		c.prefs[k] = v
	}
	for k, v := range s.archive {
		c.archive[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state

	failures map[string]error
	calls    map[string]int

	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		st: &state{
			events:  make(map[uuid.UUID]entity.SaleEvent),
			jobs:    make(map[uuid.UUID]entity.DelistingJob),
			prefs:   make(map[uuid.UUID]entity.UserDelistingPreferences),
			archive: make(map[string][]byte),
		},
		failures: make(map[string]error),
		calls:    make(map[string]int),
		Now:      time.Now,
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[op]
}

// enter must be called with mu held.
func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.failures[op]
}

// WithinTransaction restores the previous state when f fails.
func (s *Store) WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := f(ctx); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}

	return nil
}

func (s *Store) AddEvent(e entity.SaleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.Now()
	}
	s.st.events[e.ID] = e
}

func (s *Store) Event(id uuid.UUID) (entity.SaleEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.st.events[id]
	return e, ok
}

func (s *Store) AddJob(j entity.DelistingJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.jobs[j.ID] = j
}

func (s *Store) Job(id uuid.UUID) (entity.DelistingJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.st.jobs[id]
	return j, ok
}

func (s *Store) AddListing(l Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = ListingActive
	}
	s.st.listings = append(s.st.listings, l)
}

func (s *Store) Listings() []Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.st.listings)
}

func (s *Store) SetPreferences(p entity.UserDelistingPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.prefs[p.UserID] = p
}

func (s *Store) AuditLogs() []entity.DelistingAuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.st.audit)
}

func (s *Store) Archived() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]byte, len(s.st.archive))
	for k, v := range s.st.archive {
		out[k] = v
	}
	return out
}

func (s *Store) SaleEvents() *SaleEventRepo { return &SaleEventRepo{s} }

func (s *Store) Jobs() *DelistingJobRepo { return &DelistingJobRepo{s} }

func (s *Store) Audit() *AuditLogRepo { return &AuditLogRepo{s} }

func (s *Store) Preferences() *PreferencesRepo { return &PreferencesRepo{s} }

func (s *Store) ArchiveRepo() *ArchiveRepo { return &ArchiveRepo{s} }
