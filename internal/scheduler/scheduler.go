package scheduler

import (
	"fmt"
	"sync"
	"time"

	"cafe-fulfillment/internal/clock"
	"cafe-fulfillment/internal/logger"
)

// DelayedTaskScheduler runs callbacks at-or-after an absolute time on a
// bounded worker pool. Timing is best effort: "fire at T" means no earlier
// than T. Pending tasks live only in process memory; a restart loses them
// (single-node deployment assumption).
//
// Tasks sharing a key form a FIFO chain: a task never starts before every
// task scheduled earlier under the same key has finished. There is no
// ordering between different keys.
type DelayedTaskScheduler struct {
	clock clock.Clock
	log   *logger.Logger

	tasks chan job
	quit  chan struct{}

	mu      sync.Mutex
	stopped bool
	chains  map[string]chan struct{}

	waiters sync.WaitGroup
	workers sync.WaitGroup
}

type job struct {
	key  string
	run  func()
	done chan struct{}
}

func New(c clock.Clock, workers int, log *logger.Logger) *DelayedTaskScheduler {
	if workers <= 0 {
		workers = 1
	}

	s := &DelayedTaskScheduler{
		clock:  c,
		log:    log,
		tasks:  make(chan job),
		quit:   make(chan struct{}),
		chains: make(map[string]chan struct{}),
	}

	s.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}

	return s
}

// Schedule registers task to run at-or-after fireAt and returns immediately.
// A fireAt in the past fires as soon as a worker is free.
func (s *DelayedTaskScheduler) Schedule(key string, fireAt time.Time, task func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.log.Warn("SCHEDULER", fmt.Sprintf("Schedule called after Stop, dropping task for key %s", key))
		return
	}
	prev := s.chains[key]
	done := make(chan struct{})
	s.chains[key] = done
	// Registered under the lock: once Stop has set stopped, no task can hold
	// a waiter slot Stop's Wait has not seen.
	s.waiters.Add(1)
	s.mu.Unlock()

	delay := fireAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}

	s.log.LogScheduler("REGISTER", key, fmt.Sprintf("Task scheduled to fire in %s", delay))

	go func() {
		defer s.waiters.Done()

		select {
		case <-s.clock.After(delay):
		case <-s.quit:
			close(done)
			return
		}

		// Hold the per-key chain outside the worker pool so a waiting
		// successor never occupies a worker slot.
		if prev != nil {
			select {
			case <-prev:
			case <-s.quit:
				close(done)
				return
			}
		}

		select {
		case s.tasks <- job{key: key, run: task, done: done}:
		case <-s.quit:
			close(done)
		}
	}()
}

func (s *DelayedTaskScheduler) worker() {
	defer s.workers.Done()
	for j := range s.tasks {
		s.execute(j)
	}
}

func (s *DelayedTaskScheduler) execute(j job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("SCHEDULER", fmt.Sprintf("Task for key %s panicked: %v", j.key, r))
		}
		s.release(j.key, j.done)
	}()

	s.log.LogScheduler("FIRE", j.key, "Running scheduled task")
	j.run()
}

// release drops the chain entry once the last task for the key has run, so
// idle keys do not accumulate in the map.
func (s *DelayedTaskScheduler) release(key string, done chan struct{}) {
	s.mu.Lock()
	if s.chains[key] == done {
		delete(s.chains, key)
	}
	s.mu.Unlock()
}

// Stop abandons tasks still waiting on their timers and waits for running
// ones to finish.
func (s *DelayedTaskScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.quit)
	s.waiters.Wait()
	close(s.tasks)
	s.workers.Wait()

	s.log.LogProcess("SCHEDULER", "Scheduler stopped")
}
