package marketplace

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

type Option func(*Client)

func Timeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// RateLimit caps outgoing verification calls across all marketplaces.
func RateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func HTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// BreakerThreshold is the number of consecutive upstream failures that opens the breaker.
func BreakerThreshold(n uint32) Option {
	return func(c *Client) {
		c.breakerThreshold = n
	}
}

func BreakerTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.breakerTimeout = timeout
	}
}
