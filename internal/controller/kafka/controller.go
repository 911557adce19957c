package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
)

type KafkaController struct {
	ingest   usecase.IngestUseCase
	reader   infrastructure.SaleEventReader
	validate *validator.Validate
	logger   logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	ingest usecase.IngestUseCase,
	reader infrastructure.SaleEventReader,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	workers int,
) *KafkaController {
	if workers <= 0 {
		workers = 1
	}

	return &KafkaController{
		ingest:         ingest,
		reader:         reader,
		validate:       validator.New(),
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		workers:        workers,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start: %w", errs.ErrAlreadyStarted)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	// канал для задач
	tasks := make(chan kafka.Message, c.workers*2)

	// запускаем воркеры
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(tasks)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(tasks)

		for {
			// 1. читаем из кафки
			msg, err := c.reader.ReadEvent(c.ctx)
			if err != nil {
				if c.ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				c.logger.Error(err, "KafkaController - Start - c.reader.ReadEvent")

				continue
			}

			// 2. отправляем в канал для воркеров
			select {
			case tasks <- msg:
			case <-c.ctx.Done():
				return
			}
		}
	}()

	return nil
}

// handle stores one message. commit is false only when the message must be
// redelivered: malformed and invalid messages are committed and dropped.
func (c *KafkaController) handle(ctx context.Context, msg kafka.Message) (commit bool, err error) {
	var payload SaleEventPayload
	err = json.Unmarshal(msg.Value, &payload)
	if err != nil {
		return true, fmt.Errorf("KafkaController - handle - json.Unmarshal: %w", err)
	}

	err = c.validate.Struct(payload)
	if err != nil {
		return true, fmt.Errorf("KafkaController - handle - c.validate.Struct: %w", err)
	}

	event, err := payload.toEntity()
	if err != nil {
		return true, fmt.Errorf("KafkaController - handle - payload.toEntity: %w", err)
	}

	_, err = c.ingest.Ingest(ctx, event)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidSaleEvent) {
			return true, fmt.Errorf("KafkaController - handle - c.ingest.Ingest: %w", err)
		}
		return false, fmt.Errorf("KafkaController - handle - c.ingest.Ingest: %w", err)
	}

	return true, nil
}

func (c *KafkaController) worker(tasks <-chan kafka.Message) {
	defer c.wg.Done()

	// читаем канал, пока не закроется
	for msg := range tasks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - worker - panic")
				}
			}()

			// записываем событие, отмена контроллера не прерывает запись
			processCtx, processCancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.processTimeout)
			commit, err := c.handle(processCtx, msg)
			processCancel()
			if err != nil {
				if commit {
					c.logger.Warn("KafkaController - worker - dropping message at offset %d: %v", msg.Offset, err)
				} else {
					c.logger.Error(err, "KafkaController - worker - c.handle")
				}
			}
			if !commit {
				return
			}

			// коммитим после записи в бд
			commitCtx, commitCancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.commitTimeout)
			err = c.reader.CommitEvent(commitCtx, msg)
			commitCancel()
			if err != nil {
				c.logger.Error(err, "KafkaController - worker - c.reader.CommitEvent")
			}
		}()
	}
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		if err := c.reader.Close(); err != nil {
			c.logger.Error(err, "KafkaController - Shutdown - c.reader.Close")
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("KafkaController - Shutdown: %w", ctx.Err())
	}
}
