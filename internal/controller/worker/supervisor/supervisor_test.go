package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/internal/infrastructure"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	runs       atomic.Int32
	inFlight   atomic.Int32
	peak       atomic.Int32
	escalates  atomic.Int32
	cleanups   atomic.Int32
	cleanupArg atomic.Int32

	delay      time.Duration
	panicFirst bool
	ctxErr     atomic.Value
}

func (f *fakeQueue) RunOnce(ctx context.Context) entity.ProcessingStats {
	n := f.runs.Add(1)

	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	if f.panicFirst && n == 1 {
		panic("boom")
	}

	time.Sleep(f.delay)
	if err := ctx.Err(); err != nil {
		f.ctxErr.Store(err)
	}

	return entity.ProcessingStats{Processed: 1}
}

func (f *fakeQueue) RetryFailed(context.Context, int) (entity.ProcessingStats, error) {
	return entity.ProcessingStats{}, nil
}

func (f *fakeQueue) Cleanup(_ context.Context, days int) (entity.CleanupResult, error) {
	f.cleanups.Add(1)
	f.cleanupArg.Store(int32(days)) //nolint:gosec // test value
	return entity.CleanupResult{}, nil
}

func (f *fakeQueue) EscalateExhausted(context.Context) (int, error) {
	f.escalates.Add(1)
	return 0, errors.New("store down")
}

func (f *fakeQueue) QueueStats(context.Context) (entity.QueueStats, error) {
	return entity.QueueStats{}, nil
}

func (f *fakeQueue) Escalated(context.Context, int) ([]*entity.SaleEvent, error) {
	return nil, nil
}

type fakeLock struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
	err      error
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held {
		return false, nil
	}
	l.acquired++
	return true, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

func settings() Settings {
	return Settings{
		ProcessingInterval:  5 * time.Millisecond,
		CleanupInterval:     24 * time.Hour,
		CleanupInitialDelay: time.Hour,
		RetentionDays:       30,
	}
}

func shutdown(t *testing.T, s *Supervisor) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestSupervisor_StartOnce(t *testing.T) {
	s := New(&fakeQueue{}, logger.NewNop(), settings())

	require.NoError(t, s.Start(context.Background()))
	defer shutdown(t, s)

	assert.ErrorIs(t, s.Start(context.Background()), errs.ErrAlreadyStarted)
}

func TestSupervisor_ProcessLoopNeverOverlaps(t *testing.T) {
	q := &fakeQueue{delay: 20 * time.Millisecond}
	s := New(q, logger.NewNop(), settings())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return q.runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	shutdown(t, s)

	assert.Equal(t, int32(1), q.peak.Load())
}

func TestSupervisor_PanicDoesNotStopLoop(t *testing.T) {
	q := &fakeQueue{panicFirst: true}
	s := New(q, logger.NewNop(), settings())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return q.runs.Load() >= 3 }, 2*time.Second, time.Millisecond)
	shutdown(t, s)
}

func TestSupervisor_CleanupInitialDelay(t *testing.T) {
	q := &fakeQueue{}
	s := New(q, logger.NewNop(), settings())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return q.runs.Load() >= 2 }, 2*time.Second, time.Millisecond)
	shutdown(t, s)

	assert.Zero(t, q.cleanups.Load())
}

func TestSupervisor_CleanupAndEscalateLoops(t *testing.T) {
	q := &fakeQueue{}
	st := settings()
	st.CleanupInterval = 5 * time.Millisecond
	st.CleanupInitialDelay = time.Millisecond
	st.EscalateInterval = 5 * time.Millisecond
	st.RetentionDays = 7

	s := New(q, logger.NewNop(), st)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool {
		return q.cleanups.Load() >= 2 && q.escalates.Load() >= 2
	}, 2*time.Second, time.Millisecond)
	shutdown(t, s)

	assert.Equal(t, int32(7), q.cleanupArg.Load())
}

func TestSupervisor_ShutdownLetsTickFinish(t *testing.T) {
	q := &fakeQueue{delay: 50 * time.Millisecond}
	s := New(q, logger.NewNop(), settings())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return q.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	shutdown(t, s)

	assert.Zero(t, q.inFlight.Load())
	assert.Nil(t, q.ctxErr.Load())
}

func TestSupervisor_ShutdownTimeout(t *testing.T) {
	q := &fakeQueue{delay: 200 * time.Millisecond}
	s := New(q, logger.NewNop(), settings())

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return q.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)

	shutdown(t, s)
}

func TestSupervisor_ShutdownBeforeStart(t *testing.T) {
	s := New(&fakeQueue{}, logger.NewNop(), settings())
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestSupervisor_LockHeldSkipsTick(t *testing.T) {
	q := &fakeQueue{}
	lk := &fakeLock{held: true}
	s := New(q, logger.NewNop(), settings(), Locker(func(string) infrastructure.Locker { return lk }))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	shutdown(t, s)

	assert.Zero(t, q.runs.Load())
}

func TestSupervisor_LockAcquiredAndReleased(t *testing.T) {
	q := &fakeQueue{}
	lk := &fakeLock{}

	var loops sync.Map
	s := New(q, logger.NewNop(), settings(), Locker(func(loop string) infrastructure.Locker {
		loops.Store(loop, true)
		return lk
	}))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return q.runs.Load() >= 2 }, 2*time.Second, time.Millisecond)
	shutdown(t, s)

	lk.mu.Lock()
	defer lk.mu.Unlock()
	assert.Equal(t, lk.acquired, lk.released)
	assert.GreaterOrEqual(t, lk.acquired, 2)

	_, ok := loops.Load(loopProcess)
	assert.True(t, ok)
}

func TestSupervisor_LockErrorSkipsTick(t *testing.T) {
	q := &fakeQueue{}
	lk := &fakeLock{err: errors.New("redis down")}
	s := New(q, logger.NewNop(), settings(), Locker(func(string) infrastructure.Locker { return lk }))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	shutdown(t, s)

	assert.Zero(t, q.runs.Load())
}
