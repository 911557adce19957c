package errs

import (
	"context"
	"errors"
	"net"
)

// Kind classifies a failure for retry decisions and audit error codes.
type Kind string

const (
	KindNone                    Kind = ""
	KindNotFound                Kind = "not_found"
	KindVerificationFailed      Kind = "verification_failed"
	KindStoreError              Kind = "store_error"
	KindRateLimited             Kind = "rate_limited"
	KindNetworkError            Kind = "network_error"
	KindTimeout                 Kind = "timeout"
	KindAPIUnavailable          Kind = "api_unavailable"
	KindInvalidRequest          Kind = "invalid_request"
	KindTokenExpired            Kind = "token_expired"
	KindInsufficientPermissions Kind = "insufficient_permissions"
	KindQueueError              Kind = "queue_error"
	KindPanic                   Kind = "panic"
	KindUnknown                 Kind = "unknown"
)

// KindError attaches a Kind to an underlying error.
type KindError struct {
	Kind Kind
	Err  error
}

func NewKindError(kind Kind, err error) *KindError {
	return &KindError{Kind: kind, Err: err}
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first KindError in err's chain. Errors without
// one are classified by a few well-known causes, otherwise KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}

	if errors.Is(err, ErrRecordNotFound) {
		return KindNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetworkError
	}

	return KindUnknown
}
