package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{msgs: make(chan kafka.Message, 16)}
}

func (r *fakeReader) ReadEvent(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitEvent(_ context.Context, msg kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msg.Offset)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeIngest struct {
	mu     sync.Mutex
	events []*entity.SaleEvent
	err    error
}

func (f *fakeIngest) Ingest(_ context.Context, e *entity.SaleEvent) (*entity.SaleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.events = append(f.events, e)
	return e, nil
}

func (f *fakeIngest) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

const validPayload = `{
	"user_id": "6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11",
	"marketplace": "ebay",
	"external_event_id": "EV-1",
	"external_listing_id": "L-1",
	"sale_price": "25.00",
	"currency": "USD",
	"sale_date": "2026-05-10T09:00:00Z",
	"source": "webhook",
	"raw": {"signature": "ok"}
}`

func newController(ingest *fakeIngest, reader *fakeReader) *KafkaController {
	return New(ingest, reader, logger.NewNop(), time.Second, time.Second, 2)
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		ingestErr  error
		wantCommit bool
		wantErr    bool
		wantStored bool
	}{
		{name: "valid", value: validPayload, wantCommit: true, wantStored: true},
		{name: "malformed json", value: `{"user_id":`, wantCommit: true, wantErr: true},
		{name: "unknown marketplace", value: `{"user_id":"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11","marketplace":"etsy",
			"external_listing_id":"L","sale_price":"1","currency":"USD","sale_date":"2026-05-10T09:00:00Z","source":"webhook"}`,
			wantCommit: true, wantErr: true},
		{name: "missing sale date", value: `{"user_id":"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11","marketplace":"ebay",
			"external_listing_id":"L","sale_price":"1","currency":"USD","source":"polling"}`,
			wantCommit: true, wantErr: true},
		{name: "rejected by ingest", value: validPayload, ingestErr: fmt.Errorf("x: %w", errs.ErrInvalidSaleEvent),
			wantCommit: true, wantErr: true},
		{name: "store error", value: validPayload, ingestErr: errors.New("db down"),
			wantCommit: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ingest := &fakeIngest{err: tt.ingestErr}
			c := newController(ingest, newFakeReader())

			commit, err := c.handle(context.Background(), kafka.Message{Value: []byte(tt.value)})
			assert.Equal(t, tt.wantCommit, commit)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantStored, ingest.Count() == 1)
		})
	}
}

func TestHandle_MapsProvenance(t *testing.T) {
	ingest := &fakeIngest{}
	c := newController(ingest, newFakeReader())

	_, err := c.handle(context.Background(), kafka.Message{Value: []byte(validPayload)})
	require.NoError(t, err)
	require.Len(t, ingest.events, 1)

	e := ingest.events[0]
	assert.Equal(t, entity.Ebay, e.Marketplace)
	assert.Equal(t, "L-1", e.ExternalListingID)
	assert.Equal(t, "25", e.SalePrice.String())
	require.IsType(t, entity.WebhookProvenance{}, e.Provenance)
	assert.JSONEq(t, `{"signature":"ok"}`, string(e.Provenance.Raw()))

	manual := `{"user_id":"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11","marketplace":"poshmark",
		"external_listing_id":"P","sale_price":"3","currency":"USD","sale_date":"2026-05-10T09:00:00Z","source":"manual"}`
	_, err = c.handle(context.Background(), kafka.Message{Value: []byte(manual)})
	require.NoError(t, err)
	assert.Nil(t, ingest.events[1].Provenance)
}

func TestController_CommitsOnlyStored(t *testing.T) {
	reader := newFakeReader()
	ingest := &fakeIngest{}
	c := newController(ingest, reader)

	reader.msgs <- kafka.Message{Offset: 1, Value: []byte(validPayload)}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte(`garbage`)}

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), errs.ErrAlreadyStarted)

	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, time.Second, time.Millisecond)
	assert.ElementsMatch(t, []int64{1, 2}, reader.Committed())
	assert.Equal(t, 1, ingest.Count())

	ingest.mu.Lock()
	ingest.err = errors.New("db down")
	ingest.mu.Unlock()
	reader.msgs <- kafka.Message{Offset: 3, Value: []byte(validPayload)}

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, reader.Committed(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.True(t, reader.closed)
}
