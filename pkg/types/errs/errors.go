package errs

import "errors"

var (
	ErrRecordNotFound     = errors.New("record not found")
	ErrAlreadyStarted     = errors.New("already started")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidProvenance  = errors.New("sale event carries both webhook and polling data")
	ErrSaleNotConfirmed   = errors.New("marketplace did not confirm the sale")
	ErrUnknownMarketplace = errors.New("unknown marketplace")
	ErrInvalidSaleEvent   = errors.New("invalid sale event")
	ErrDuplicateEventHash = errors.New("an original sale event with this hash already exists")
)
