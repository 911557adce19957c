package infrastructure

import (
	"context"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/segmentio/kafka-go"
)

type (
	// MarketplaceVerifier asks the marketplace whether the sale really
	// happened. Errors carry an errs.Kind.
	MarketplaceVerifier interface {
		ConfirmSale(ctx context.Context, event *entity.SaleEvent) error
	}

	JobNotifier interface {
		NotifyJobReady(ctx context.Context, job *entity.DelistingJob) error
		Close() error
	}

	SaleEventReader interface {
		ReadEvent(ctx context.Context) (kafka.Message, error)
		CommitEvent(ctx context.Context, msg kafka.Message) error
		Close() error
	}

	Locker interface {
		Acquire(ctx context.Context) (bool, error)
		Release(ctx context.Context) error
	}
)
