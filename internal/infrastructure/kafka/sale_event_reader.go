package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Resale-Delister/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

type SaleEventReader struct {
	*consumer.Consumer
}

func NewSaleEventReader(consumer *consumer.Consumer) *SaleEventReader {
	return &SaleEventReader{consumer}
}

func (r *SaleEventReader) ReadEvent(ctx context.Context) (kafka.Message, error) {
	msg, err := r.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("SaleEventReader - ReadEvent - r.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (r *SaleEventReader) CommitEvent(ctx context.Context, msg kafka.Message) error {
	err := r.Reader.CommitMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("SaleEventReader - CommitEvent - r.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (r *SaleEventReader) Close() error {
	err := r.Consumer.Close()
	if err != nil {
		return fmt.Errorf("SaleEventReader - Close: %w", err)
	}

	return nil
}
