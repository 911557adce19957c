package verifier

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
)

type Result struct {
	Verified  bool
	Err       error
	Kind      errs.Kind
	Retryable bool
}

type Verifier struct {
	marketplace infrastructure.MarketplaceVerifier
}

func New(mv infrastructure.MarketplaceVerifier) *Verifier {
	return &Verifier{marketplace: mv}
}

// Verify trusts webhook and polling provenance, both were checked at the
// ingestion boundary. Events without provenance are confirmed with the
// marketplace. Every marketplace failure is retryable; the kind is kept for
// the audit trail and exhausted events are escalated by the queue.
func (v *Verifier) Verify(ctx context.Context, event *entity.SaleEvent) Result {
	switch event.Provenance.(type) {
	case entity.WebhookProvenance, entity.PollingProvenance:
		return Result{Verified: true}
	}

	if v.marketplace == nil {
		return Result{
			Err:       fmt.Errorf("Verifier - Verify: no marketplace verifier for %s", event.Marketplace),
			Kind:      errs.KindAPIUnavailable,
			Retryable: true,
		}
	}

	err := v.marketplace.ConfirmSale(ctx, event)
	if err == nil {
		return Result{Verified: true}
	}

	kind := errs.KindOf(err)
	if kind == errs.KindUnknown {
		kind = errs.KindVerificationFailed
	}

	return Result{
		Err:       fmt.Errorf("Verifier - Verify - v.marketplace.ConfirmSale: %w", err),
		Kind:      kind,
		Retryable: true,
	}
}
