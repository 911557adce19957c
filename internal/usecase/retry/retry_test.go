package retry

import (
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/stretchr/testify/assert"
)

func TestDelayWithJitter_Bounds(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		kind    errs.Kind
		r       float64
		want    time.Duration
	}{
		{name: "attempt 0 no jitter", attempt: 0, kind: errs.KindNetworkError, r: 0.5, want: time.Second},
		{name: "attempt 1 low jitter", attempt: 1, kind: errs.KindTimeout, r: 0, want: 1500 * time.Millisecond},
		{name: "attempt 2 high jitter", attempt: 2, kind: errs.KindTimeout, r: 1, want: 5 * time.Second},
		{name: "negative attempt", attempt: -3, kind: errs.KindTimeout, r: 0.5, want: time.Second},
		{name: "rate limit floor", attempt: 1, kind: errs.KindRateLimited, r: 0.5, want: time.Minute},
		{name: "rate limit above floor", attempt: 7, kind: errs.KindRateLimited, r: 0.5, want: 128 * time.Second},
		{name: "cap", attempt: 12, kind: errs.KindAPIUnavailable, r: 0.5, want: 5 * time.Minute},
		{name: "huge attempt", attempt: 1 << 30, kind: errs.KindRateLimited, r: 0.99, want: 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, delayWithJitter(tt.attempt, tt.kind, tt.r))
		})
	}
}

func TestDelay_Properties(t *testing.T) {
	kinds := []errs.Kind{errs.KindRateLimited, errs.KindNetworkError, errs.KindTimeout, errs.KindAPIUnavailable}

	for _, kind := range kinds {
		for attempt := 0; attempt < 15; attempt++ {
			for i := 0; i < 50; i++ {
				d := Delay(attempt, kind)
				assert.LessOrEqual(t, d, MaxDelay)
				if kind == errs.KindRateLimited {
					assert.GreaterOrEqual(t, d, RateLimitFloor)
				}
			}
		}
	}
}

func TestDelay_NonDecreasingInExpectation(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 12; attempt++ {
		mid := delayWithJitter(attempt, errs.KindNetworkError, 0.5)
		assert.GreaterOrEqual(t, mid, prev)
		prev = mid
	}
}

func TestIsRetryable(t *testing.T) {
	tests := map[errs.Kind]bool{
		errs.KindAPIUnavailable:          true,
		errs.KindRateLimited:             true,
		errs.KindNetworkError:            true,
		errs.KindTimeout:                 true,
		errs.KindInvalidRequest:          false,
		errs.KindTokenExpired:            false,
		errs.KindInsufficientPermissions: false,
		errs.KindNotFound:                false,
		errs.KindUnknown:                 false,
	}

	for kind, want := range tests {
		assert.Equal(t, want, IsRetryable(kind), kind)
	}
}
