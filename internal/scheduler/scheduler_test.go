package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafe-fulfillment/internal/clock"
	"cafe-fulfillment/internal/logger"
)

func newTestScheduler(t *testing.T, workers int) (*DelayedTaskScheduler, *clock.FakeClock) {
	t.Helper()
	fc := clock.NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	log := logger.NewLogger()
	s := New(fc, workers, log)
	t.Cleanup(s.Stop)
	return s, fc
}

func waitForWaiters(t *testing.T, fc *clock.FakeClock, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return fc.Waiters() >= n
	}, time.Second, time.Millisecond, "scheduler never armed its timers")
}

func TestScheduleFiresAfterDelay(t *testing.T) {
	s, fc := newTestScheduler(t, 2)

	fired := make(chan struct{})
	s.Schedule("order-1", fc.Now().Add(10*time.Minute), func() {
		close(fired)
	})

	waitForWaiters(t, fc, 1)

	select {
	case <-fired:
		t.Fatal("task fired before its time")
	case <-time.After(20 * time.Millisecond):
	}

	fc.Advance(10 * time.Minute)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire after advancing past fireAt")
	}
}

func TestSchedulePastTimeFiresImmediately(t *testing.T) {
	s, fc := newTestScheduler(t, 2)

	fired := make(chan struct{})
	s.Schedule("order-1", fc.Now().Add(-5*time.Minute), func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("past fireAt was not clamped to immediate execution")
	}
}

func TestPanicIsIsolated(t *testing.T) {
	s, fc := newTestScheduler(t, 1)

	fired := make(chan struct{})
	s.Schedule("bad", fc.Now(), func() {
		panic("kitchen fire")
	})
	s.Schedule("good", fc.Now(), func() {
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("a panicking task stopped the scheduler")
	}
}

func TestSameKeyTasksRunInScheduleOrder(t *testing.T) {
	s, fc := newTestScheduler(t, 4)

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	// B's timer fires first, but A was scheduled first under the same key.
	s.Schedule("order-1", fc.Now().Add(10*time.Minute), record("A"))
	s.Schedule("order-1", fc.Now().Add(5*time.Minute), record("B"))

	waitForWaiters(t, fc, 2)
	fc.Advance(5 * time.Minute)

	// B must not run while A is still pending.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, order)
	mu.Unlock()

	fc.Advance(5 * time.Minute)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"A", "B"}, order)
	mu.Unlock()
}

func TestDifferentKeysRunIndependently(t *testing.T) {
	s, fc := newTestScheduler(t, 4)

	fired := make(chan string, 2)
	s.Schedule("order-1", fc.Now().Add(time.Hour), func() { fired <- "slow" })
	s.Schedule("order-2", fc.Now().Add(time.Minute), func() { fired <- "fast" })

	waitForWaiters(t, fc, 2)
	fc.Advance(time.Minute)

	select {
	case name := <-fired:
		assert.Equal(t, "fast", name)
	case <-time.After(time.Second):
		t.Fatal("unrelated key was blocked by a pending task")
	}
}

func TestStopAbandonsPendingTasks(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	s := New(fc, 2, logger.NewLogger())

	fired := make(chan struct{}, 1)
	s.Schedule("order-1", fc.Now().Add(time.Hour), func() {
		fired <- struct{}{}
	})

	waitForWaiters(t, fc, 1)
	s.Stop()

	fc.Advance(2 * time.Hour)
	select {
	case <-fired:
		t.Fatal("task fired after Stop")
	case <-time.After(20 * time.Millisecond):
	}

	// Schedule after Stop is a logged no-op.
	s.Schedule("order-1", fc.Now(), func() {
		fired <- struct{}{}
	})
	select {
	case <-fired:
		t.Fatal("task scheduled after Stop was executed")
	case <-time.After(20 * time.Millisecond):
	}
}

// Hammers Schedule with due tasks against a concurrent Stop. Any task that
// passes the stopped check must be fully registered before Stop's shutdown
// sequence runs, or a late waiter could send on the closed task channel and
// panic. Best run with -race.
func TestConcurrentScheduleAndStop(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	for i := 0; i < 200; i++ {
		s := New(clock.New(), 2, logger.NewLogger())

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for n := 0; n < 10; n++ {
					s.Schedule("order-1", time.Time{}, func() {})
				}
			}()
		}

		s.Stop()
		wg.Wait()
	}
}
