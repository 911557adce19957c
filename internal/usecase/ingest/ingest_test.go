package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/internal/repo"
	"github.com/andreyxaxa/Resale-Delister/internal/repo/memory"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newEvent() *entity.SaleEvent {
	return &entity.SaleEvent{
		UserID:            uuid.New(),
		Marketplace:       entity.Poshmark,
		ExternalEventID:   ptr("evt-1001"),
		ExternalListingID: "L-77",
		SalePrice:         decimal.RequireFromString("19.99"),
		Currency:          "USD",
		SaleDate:          time.Date(2026, 5, 9, 18, 30, 0, 0, time.UTC),
		Provenance:        entity.WebhookProvenance{Data: []byte(`{"id":"evt-1001"}`)},
	}
}

func newUseCase() (*IngestUseCase, *memory.Store) {
	store := memory.NewStore()
	return New(store.SaleEvents(), logger.NewNop()), store
}

func TestIngest_Stores(t *testing.T) {
	uc, store := newUseCase()

	got, err := uc.Ingest(context.Background(), newEvent())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.Processed)
	assert.False(t, got.IsDuplicate)
	require.NotNil(t, got.EventHash)
	assert.Len(t, *got.EventHash, 64)

	stored, ok := store.Event(got.ID)
	require.True(t, ok)
	assert.Equal(t, *got.EventHash, *stored.EventHash)
	assert.Equal(t, "webhook", entity.ProvenanceName(stored.Provenance))
}

func TestIngest_Duplicate(t *testing.T) {
	uc, store := newUseCase()

	first, err := uc.Ingest(context.Background(), newEvent())
	require.NoError(t, err)

	again := newEvent()
	again.UserID = first.UserID
	second, err := uc.Ingest(context.Background(), again)
	require.NoError(t, err)

	assert.True(t, second.IsDuplicate)
	require.NotNil(t, second.DuplicateOf)
	assert.Equal(t, first.ID, *second.DuplicateOf)

	third, err := uc.Ingest(context.Background(), newEvent())
	require.NoError(t, err)
	assert.Equal(t, first.ID, *third.DuplicateOf)

	stored, _ := store.Event(second.ID)
	assert.True(t, stored.IsDuplicate)
}

// racingEvents stores a concurrent original right after the first lookup
// missed it, the way a second consumer worker would.
type racingEvents struct {
	repo.SaleEventRepo

	other   *entity.SaleEvent
	lookups int
}

func (r *racingEvents) FindFirstByHash(ctx context.Context, hash string) (*entity.SaleEvent, error) {
	r.lookups++
	if r.lookups == 1 {
		r.other.EventHash = &hash
		if err := r.SaleEventRepo.Create(ctx, r.other); err != nil {
			return nil, err
		}
		return nil, errs.ErrRecordNotFound
	}
	return r.SaleEventRepo.FindFirstByHash(ctx, hash)
}

func TestIngest_ConcurrentOriginalBecomesDuplicate(t *testing.T) {
	store := memory.NewStore()
	other := newEvent()
	other.ID = uuid.New()
	events := &racingEvents{SaleEventRepo: store.SaleEvents(), other: other}
	uc := New(events, logger.NewNop())

	got, err := uc.Ingest(context.Background(), newEvent())
	require.NoError(t, err)

	assert.True(t, got.IsDuplicate)
	require.NotNil(t, got.DuplicateOf)
	assert.Equal(t, other.ID, *got.DuplicateOf)
	assert.Equal(t, 2, events.lookups)
	assert.Equal(t, 3, store.Calls("SaleEvents.Create"))

	stored, ok := store.Event(got.ID)
	require.True(t, ok)
	assert.True(t, stored.IsDuplicate)
}

func TestIngest_OriginalHashIsUnique(t *testing.T) {
	store := memory.NewStore()
	events := store.SaleEvents()

	first := newEvent()
	first.ID = uuid.New()
	first.EventHash = ptr(EventHash(first))
	require.NoError(t, events.Create(context.Background(), first))

	second := newEvent()
	second.ID = uuid.New()
	second.EventHash = first.EventHash
	err := events.Create(context.Background(), second)
	assert.ErrorIs(t, err, errs.ErrDuplicateEventHash)

	second.IsDuplicate = true
	second.DuplicateOf = &first.ID
	assert.NoError(t, events.Create(context.Background(), second))
}

func TestIngest_NoHashWithoutIdentifiers(t *testing.T) {
	uc, _ := newUseCase()

	e := newEvent()
	e.ExternalEventID = nil

	first, err := uc.Ingest(context.Background(), e)
	require.NoError(t, err)
	assert.Nil(t, first.EventHash)

	e2 := newEvent()
	e2.ExternalEventID = nil
	second, err := uc.Ingest(context.Background(), e2)
	require.NoError(t, err)
	assert.False(t, second.IsDuplicate)
}

func TestIngest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		mut  func(e *entity.SaleEvent)
		want string
	}{
		{"no user", func(e *entity.SaleEvent) { e.UserID = uuid.Nil }, "user_id"},
		{"bad marketplace", func(e *entity.SaleEvent) { e.Marketplace = "etsy" }, "marketplace"},
		{"no listing", func(e *entity.SaleEvent) { e.ExternalListingID = " " }, "external_listing_id"},
		{"negative price", func(e *entity.SaleEvent) { e.SalePrice = decimal.NewFromInt(-1) }, "sale_price"},
		{"bad currency", func(e *entity.SaleEvent) { e.Currency = "dollars" }, "currency"},
		{"no date", func(e *entity.SaleEvent) { e.SaleDate = time.Time{} }, "sale_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, store := newUseCase()
			e := newEvent()
			tt.mut(e)

			_, err := uc.Ingest(context.Background(), e)

			require.ErrorIs(t, err, errs.ErrInvalidSaleEvent)
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, store.Calls("SaleEvents.Create"))
		})
	}
}

func TestIngest_StoreError(t *testing.T) {
	uc, store := newUseCase()
	store.FailOn("SaleEvents.FindFirstByHash", errors.New("connection refused"))

	_, err := uc.Ingest(context.Background(), newEvent())

	require.Error(t, err)
	assert.NotErrorIs(t, err, errs.ErrInvalidSaleEvent)
	assert.Zero(t, store.Calls("SaleEvents.Create"))
}

func TestEventHash(t *testing.T) {
	a := newEvent()
	b := newEvent()
	b.Marketplace = entity.Ebay

	assert.Equal(t, EventHash(a), EventHash(newEvent()))
	assert.NotEqual(t, EventHash(a), EventHash(b))

	byTx := newEvent()
	byTx.ExternalEventID = nil
	byTx.ExternalTransactionID = ptr("T-1")
	otherTx := newEvent()
	otherTx.ExternalEventID = nil
	otherTx.ExternalTransactionID = ptr("T-2")

	assert.NotEmpty(t, EventHash(byTx))
	assert.NotEqual(t, EventHash(byTx), EventHash(otherTx))

	none := newEvent()
	none.ExternalEventID = ptr("")
	assert.Empty(t, EventHash(none))
}
