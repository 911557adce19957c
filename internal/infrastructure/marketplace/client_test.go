package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *entity.SaleEvent {
	tx := "TX-9"
	return &entity.SaleEvent{
		ID:                    uuid.New(),
		UserID:                uuid.New(),
		Marketplace:           entity.Ebay,
		ExternalListingID:     "L-1",
		ExternalTransactionID: &tx,
		SalePrice:             decimal.RequireFromString("19.9"),
		Currency:              "USD",
		SaleDate:              time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{RateLimit(1000, 100)}, opts...)
	return New(srv.URL, logger.NewNop(), opts...)
}

func TestConfirmSale_Confirmed(t *testing.T) {
	var got confirmRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/marketplaces/ebay/sales/confirm", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"confirmed":true}`))
	})

	e := testEvent()
	require.NoError(t, c.ConfirmSale(context.Background(), e))

	assert.Equal(t, e.UserID.String(), got.UserID)
	assert.Equal(t, "L-1", got.ExternalListingID)
	assert.Equal(t, "19.90", got.SalePrice)
	assert.Equal(t, "2026-05-10T09:00:00Z", got.SaleDate)
	require.NotNil(t, got.ExternalTransactionID)
	assert.Equal(t, "TX-9", *got.ExternalTransactionID)
}

func TestConfirmSale_NotConfirmed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"confirmed":false,"reason":"order cancelled"}`))
	})

	err := c.ConfirmSale(context.Background(), testEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrSaleNotConfirmed)
	assert.Equal(t, errs.KindVerificationFailed, errs.KindOf(err))
}

func TestConfirmSale_StatusKinds(t *testing.T) {
	tests := []struct {
		status int
		want   errs.Kind
	}{
		{http.StatusTooManyRequests, errs.KindRateLimited},
		{http.StatusUnauthorized, errs.KindTokenExpired},
		{http.StatusForbidden, errs.KindInsufficientPermissions},
		{http.StatusBadRequest, errs.KindInvalidRequest},
		{http.StatusUnprocessableEntity, errs.KindInvalidRequest},
		{http.StatusNotFound, errs.KindNotFound},
		{http.StatusGatewayTimeout, errs.KindTimeout},
		{http.StatusInternalServerError, errs.KindAPIUnavailable},
		{http.StatusServiceUnavailable, errs.KindAPIUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			})

			err := c.ConfirmSale(context.Background(), testEvent())
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
		})
	}
}

func TestConfirmSale_BadBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	err := c.ConfirmSale(context.Background(), testEvent())
	assert.Equal(t, errs.KindAPIUnavailable, errs.KindOf(err))
}

func TestConfirmSale_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, logger.NewNop(), RateLimit(1000, 100))

	err := c.ConfirmSale(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, errs.KindNetworkError, errs.KindOf(err))
}

func TestConfirmSale_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"confirmed":true}`))
	}, Timeout(20*time.Millisecond))

	err := c.ConfirmSale(context.Background(), testEvent())
	require.Error(t, err)
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
}

func TestConfirmSale_BreakerOpens(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, BreakerThreshold(2), BreakerTimeout(time.Minute))

	for range 2 {
		assert.Equal(t, errs.KindAPIUnavailable, errs.KindOf(c.ConfirmSale(context.Background(), testEvent())))
	}

	err := c.ConfirmSale(context.Background(), testEvent())
	assert.Equal(t, errs.KindAPIUnavailable, errs.KindOf(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestConfirmSale_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}, BreakerThreshold(1))

	for range 3 {
		assert.Equal(t, errs.KindTokenExpired, errs.KindOf(c.ConfirmSale(context.Background(), testEvent())))
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestConfirmSale_RateLimiterHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"confirmed":true}`))
	}, RateLimit(0.001, 1))

	require.NoError(t, c.ConfirmSale(context.Background(), testEvent()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.ConfirmSale(ctx, testEvent())
	assert.Equal(t, errs.KindRateLimited, errs.KindOf(err))
}
