package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure"
	"github.com/andreyxaxa/Resale-Delister/internal/usecase"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
)

const (
	loopProcess  = "process"
	loopEscalate = "escalate"
	loopCleanup  = "cleanup"
)

type Settings struct {
	ProcessingInterval  time.Duration
	EscalateInterval    time.Duration
	CleanupInterval     time.Duration
	CleanupInitialDelay time.Duration
	RetentionDays       int
}

type Option func(*Supervisor)

// Locker makes every tick of a loop run under its own lock. A tick that
// cannot take the lock is skipped.
func Locker(lockFor func(loop string) infrastructure.Locker) Option {
	return func(s *Supervisor) {
		s.lockFor = lockFor
	}
}

// Supervisor owns the background loops over the sale event queue. The next
// tick of a loop is scheduled only after the current one has returned, so
// ticks of one loop never overlap.
type Supervisor struct {
	queue    usecase.QueueUseCase
	logger   logger.Interface
	settings Settings
	lockFor  func(loop string) infrastructure.Locker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(q usecase.QueueUseCase, l logger.Interface, s Settings, opts ...Option) *Supervisor {
	sv := &Supervisor{
		queue:    q,
		logger:   l,
		settings: s,
	}

	for _, opt := range opts {
		opt(sv)
	}

	return sv
}

func (s *Supervisor) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("Supervisor - Start: %w", errs.ErrAlreadyStarted)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	// 1. обработка очереди, первый проход сразу
	s.loop(loopProcess, 0, s.settings.ProcessingInterval, s.process)

	// 2. эскалация событий, исчерпавших попытки
	if s.settings.EscalateInterval > 0 {
		s.loop(loopEscalate, s.settings.EscalateInterval, s.settings.EscalateInterval, s.escalate)
	}

	// 3. очистка обработанных событий
	if s.settings.CleanupInterval > 0 {
		s.loop(loopCleanup, s.settings.CleanupInitialDelay, s.settings.CleanupInterval, s.cleanup)
	}

	return nil
}

func (s *Supervisor) process(ctx context.Context) {
	stats := s.queue.RunOnce(ctx)
	if stats.Processed+stats.Failed+stats.Retried == 0 && len(stats.Errors) == 0 {
		return
	}

	s.logger.Info("Supervisor - process - processed %d, failed %d, retried %d, jobs created %d",
		stats.Processed, stats.Failed, stats.Retried, stats.JobsCreated)
}

func (s *Supervisor) escalate(ctx context.Context) {
	_, err := s.queue.EscalateExhausted(ctx)
	if err != nil {
		s.logger.Error(err, "Supervisor - escalate - s.queue.EscalateExhausted")
	}
}

func (s *Supervisor) cleanup(ctx context.Context) {
	res, err := s.queue.Cleanup(ctx, s.settings.RetentionDays)
	if err != nil {
		s.logger.Error(err, "Supervisor - cleanup - s.queue.Cleanup")

		return
	}

	s.logger.Info("Supervisor - cleanup - deleted %d events", res.Deleted)
}

func (s *Supervisor) loop(name string, initialDelay, interval time.Duration, task func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(initialDelay)
		defer timer.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-timer.C:
				if s.ctx.Err() != nil {
					return
				}
				s.tick(name, task)
				timer.Reset(interval)
			}
		}
	}()
}

// tick runs one iteration to completion. Shutdown does not cancel a running tick.
func (s *Supervisor) tick(name string, task func(ctx context.Context)) {
	ctx := context.WithoutCancel(s.ctx)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("panic %v", r), "Supervisor - tick - "+name)
		}
	}()

	if s.lockFor != nil {
		l := s.lockFor(name)

		ok, err := l.Acquire(ctx)
		if err != nil {
			s.logger.Error(err, "Supervisor - tick - "+name+" - l.Acquire")

			return
		}
		if !ok {
			s.logger.Debug("Supervisor - tick - %s - lock is held elsewhere, skipping", name)

			return
		}

		defer func() {
			if err := l.Release(ctx); err != nil {
				s.logger.Error(err, "Supervisor - tick - "+name+" - l.Release")
			}
		}()
	}

	task(ctx)
}

// Shutdown stops scheduling new ticks and waits for running ones.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Supervisor - Shutdown: %w", ctx.Err())
	}
}
