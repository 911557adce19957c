package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
)

const (
	BaseDelay      = time.Second
	MaxDelay       = 5 * time.Minute
	RateLimitFloor = time.Minute
	Jitter         = 0.25

	// 2^9 s already exceeds MaxDelay
	maxExponent = 9
)

// Delay returns the backoff before the next attempt: 2^attempt seconds
// jittered by ±25%, floored at one minute for rate limits, capped at five
// minutes.
func Delay(attempt int, kind errs.Kind) time.Duration {
	return delayWithJitter(attempt, kind, rand.Float64())
}

// delayWithJitter takes r in [0,1) so tests can pin the jitter.
func delayWithJitter(attempt int, kind errs.Kind, r float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxExponent {
		attempt = maxExponent
	}

	base := float64(BaseDelay) * math.Pow(2, float64(attempt))
	d := time.Duration(base * (1 + Jitter*(2*r-1)))

	if kind == errs.KindRateLimited && d < RateLimitFloor {
		d = RateLimitFloor
	}
	if d > MaxDelay {
		d = MaxDelay
	}

	return d
}

func IsRetryable(kind errs.Kind) bool {
	switch kind {
	case errs.KindAPIUnavailable, errs.KindRateLimited, errs.KindNetworkError, errs.KindTimeout:
		return true
	default:
		return false
	}
}
