package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/kafka/producer"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const jobReadyEventType = "job_ready"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// JobReadyPayload is what the delisting executor consumes from the jobs topic.
type JobReadyPayload struct {
	JobID                uuid.UUID            `json:"job_id"`
	UserID               uuid.UUID            `json:"user_id"`
	InventoryItemID      uuid.UUID            `json:"inventory_item_id"`
	SaleEventID          *uuid.UUID           `json:"sale_event_id,omitempty"`
	SoldOn               entity.Marketplace   `json:"sold_on"`
	MarketplacesTargeted []entity.Marketplace `json:"marketplaces_targeted"`
	ScheduledFor         time.Time            `json:"scheduled_for"`
	MaxRetries           int                  `json:"max_retries"`
	UserConfirmedAt      *time.Time           `json:"user_confirmed_at,omitempty"`
}

type JobPublisher struct {
	writer  messageWriter
	closer  io.Closer
	topic   string
	timeout time.Duration
}

func NewJobPublisher(p *producer.Producer, topic string, timeout time.Duration) *JobPublisher {
	return &JobPublisher{
		writer:  p.Writer,
		closer:  p,
		topic:   topic,
		timeout: timeout,
	}
}

func (jp *JobPublisher) NotifyJobReady(ctx context.Context, job *entity.DelistingJob) error {
	msg, err := jobReadyMessage(jp.topic, job)
	if err != nil {
		return fmt.Errorf("JobPublisher - NotifyJobReady - jobReadyMessage: %w", err)
	}

	if jp.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, jp.timeout)
		defer cancel()
	}

	err = jp.writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("JobPublisher - NotifyJobReady - jp.writer.WriteMessages: %w", err)
	}

	return nil
}

func (jp *JobPublisher) Close() error {
	if jp.closer == nil {
		return nil
	}

	err := jp.closer.Close()
	if err != nil {
		return fmt.Errorf("JobPublisher - Close: %w", err)
	}

	return nil
}

// ключ = job id, все сообщения одной задачи попадают в одну партицию
func jobReadyMessage(topic string, job *entity.DelistingJob) (kafka.Message, error) {
	payload, err := json.Marshal(JobReadyPayload{
		JobID:                job.ID,
		UserID:               job.UserID,
		InventoryItemID:      job.InventoryItemID,
		SaleEventID:          job.SaleEventID,
		SoldOn:               job.SoldOn,
		MarketplacesTargeted: job.MarketplacesTargeted,
		ScheduledFor:         job.ScheduledFor.UTC(),
		MaxRetries:           job.MaxRetries,
		UserConfirmedAt:      job.UserConfirmedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("json.Marshal: %w", err)
	}

	return kafka.Message{
		Topic: topic,
		Key:   []byte(job.ID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(jobReadyEventType)},
			{Key: "job_id", Value: []byte(job.ID.String())},
		},
	}, nil
}
