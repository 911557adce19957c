package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"
)

const (
	_defaultTimeout          = 10 * time.Second
	_defaultRPS              = 5
	_defaultBurst            = 10
	_defaultBreakerThreshold = 5
	_defaultBreakerTimeout   = 30 * time.Second

	_maxErrorBody = 1 << 10
)

// Client confirms sales through the marketplace gateway:
// POST {baseURL}/v1/marketplaces/{marketplace}/sales/confirm.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker

	breakerThreshold uint32
	breakerTimeout   time.Duration

	l logger.Interface
}

type confirmRequest struct {
	UserID                string  `json:"user_id"`
	ExternalListingID     string  `json:"external_listing_id"`
	ExternalEventID       *string `json:"external_event_id,omitempty"`
	ExternalTransactionID *string `json:"external_transaction_id,omitempty"`
	SalePrice             string  `json:"sale_price"`
	Currency              string  `json:"currency"`
	SaleDate              string  `json:"sale_date"`
}

type confirmResponse struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason,omitempty"`
}

func New(baseURL string, l logger.Interface, opts ...Option) *Client {
	c := &Client{
		baseURL:          baseURL,
		httpClient:       &http.Client{Timeout: _defaultTimeout},
		limiter:          rate.NewLimiter(_defaultRPS, _defaultBurst),
		breakerThreshold: _defaultBreakerThreshold,
		breakerTimeout:   _defaultBreakerTimeout,
		l:                l,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketplace-verify",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerThreshold
		},
		// ответы 4xx - это ответ маркетплейса, а не его недоступность
		IsSuccessful: func(err error) bool {
			switch errs.KindOf(err) {
			case errs.KindAPIUnavailable, errs.KindNetworkError, errs.KindTimeout:
				return false
			}
			return true
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.l.Warn("Circuit breaker %s changed from %s to %s", name, from, to)
		},
	})

	return c
}

func (c *Client) ConfirmSale(ctx context.Context, event *entity.SaleEvent) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("Client - ConfirmSale - c.limiter.Wait: %w", errs.NewKindError(errs.KindRateLimited, err))
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.confirm(ctx, event)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = errs.NewKindError(errs.KindAPIUnavailable, err)
		}
		return fmt.Errorf("Client - ConfirmSale - c.breaker.Execute: %w", err)
	}

	return nil
}

func (c *Client) confirm(ctx context.Context, event *entity.SaleEvent) error {
	body, err := json.Marshal(confirmRequest{
		UserID:                event.UserID.String(),
		ExternalListingID:     event.ExternalListingID,
		ExternalEventID:       event.ExternalEventID,
		ExternalTransactionID: event.ExternalTransactionID,
		SalePrice:             event.SalePrice.StringFixed(2),
		Currency:              event.Currency,
		SaleDate:              event.SaleDate.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", errs.NewKindError(errs.KindInvalidRequest, err))
	}

	endpoint, err := url.JoinPath(c.baseURL, "v1", "marketplaces", string(event.Marketplace), "sales", "confirm")
	if err != nil {
		return fmt.Errorf("url.JoinPath: %w", errs.NewKindError(errs.KindInvalidRequest, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", errs.NewKindError(errs.KindInvalidRequest, err))
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := errs.KindOf(err)
		if kind == errs.KindUnknown {
			kind = errs.KindNetworkError
		}
		return fmt.Errorf("c.httpClient.Do: %w", errs.NewKindError(kind, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, _maxErrorBody))
		return errs.NewKindError(KindForStatus(resp.StatusCode),
			fmt.Errorf("%s returned status %d: %s", event.Marketplace, resp.StatusCode, bytes.TrimSpace(msg)))
	}

	var out confirmResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("json.Decode: %w", errs.NewKindError(errs.KindAPIUnavailable, err))
	}

	if !out.Confirmed {
		return errs.NewKindError(errs.KindVerificationFailed, fmt.Errorf("%w: %s", errs.ErrSaleNotConfirmed, out.Reason))
	}

	return nil
}

// KindForStatus maps a marketplace HTTP status to the failure taxonomy.
func KindForStatus(code int) errs.Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return errs.KindRateLimited
	case code == http.StatusUnauthorized:
		return errs.KindTokenExpired
	case code == http.StatusForbidden:
		return errs.KindInsufficientPermissions
	case code == http.StatusNotFound:
		return errs.KindNotFound
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return errs.KindTimeout
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return errs.KindInvalidRequest
	case code >= 500:
		return errs.KindAPIUnavailable
	default:
		return errs.KindVerificationFailed
	}
}
