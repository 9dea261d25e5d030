package core

import (
	"sync"
	"time"
)

// Batch acquisition defaults; see SchedulerConfig for the knobs.
const (
	DefaultIdleWaitTime    = 30 * time.Second
	DefaultMaxBatchSize    = 1
	DefaultBatchTimeWindow = 0 * time.Millisecond
)

// schedulerThread is the single goroutine driving the acquire/fire loop.
// It sleeps until the next trigger is due, wakes early when a mutation
// signals an earlier candidate, and hands fired bundles to the worker
// pool.
type schedulerThread struct {
	store  JobStore
	pool   *WorkerPool
	clock  Clock
	logger Logger

	idleWaitTime    time.Duration
	maxBatchSize    int
	batchTimeWindow time.Duration

	// dispatch runs one fired bundle on a worker; wired by the scheduler.
	dispatch func(bundle *TriggerFiredBundle) bool

	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	halted    bool
	signaled  bool
	candidate time.Time
	wake      chan struct{}

	done chan struct{}
}

func newSchedulerThread(store JobStore, pool *WorkerPool, clock Clock, logger Logger) *schedulerThread {
	t := &schedulerThread{
		store:           store,
		pool:            pool,
		clock:           clock,
		logger:          logger,
		idleWaitTime:    DefaultIdleWaitTime,
		maxBatchSize:    DefaultMaxBatchSize,
		batchTimeWindow: DefaultBatchTimeWindow,
		paused:          true,
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// togglePause moves the loop between running and standby.
func (t *schedulerThread) togglePause(pause bool) {
	t.mu.Lock()
	t.paused = pause
	t.cond.Broadcast()
	t.mu.Unlock()
	if !pause {
		t.notifyWake()
	}
}

func (t *schedulerThread) halt() {
	t.mu.Lock()
	t.halted = true
	t.cond.Broadcast()
	t.mu.Unlock()
	t.notifyWake()
	<-t.done
}

// signalSchedulingChange records that scheduling data changed and wakes
// the loop if the new candidate fire time is earlier than what it is
// sleeping toward. A zero candidate always wakes.
func (t *schedulerThread) signalSchedulingChange(candidateNewNextFireTime time.Time) {
	t.mu.Lock()
	t.signaled = true
	if t.candidate.IsZero() || candidateNewNextFireTime.IsZero() ||
		candidateNewNextFireTime.Before(t.candidate) {
		t.candidate = candidateNewNextFireTime
	}
	t.mu.Unlock()
	t.notifyWake()
}

func (t *schedulerThread) notifyWake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *schedulerThread) clearSignaled() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	candidate, was := t.candidate, t.signaled
	t.signaled = false
	t.candidate = time.Time{}
	return candidate, was
}

// waitWhilePaused blocks in standby; it reports false when the loop must
// exit.
func (t *schedulerThread) waitWhilePaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.paused && !t.halted {
		t.cond.Wait()
	}
	return !t.halted
}

func (t *schedulerThread) isHalted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.halted
}

// sleepUntil waits for the deadline, the wake channel, or halt, whichever
// comes first. It reports true when it was woken early by a signal.
func (t *schedulerThread) sleepUntil(deadline time.Time) bool {
	d := deadline.Sub(t.clock.Now())
	if d <= 0 {
		return false
	}
	timer := t.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C():
		return false
	case <-t.wake:
		return true
	}
}

func (t *schedulerThread) run() {
	defer close(t.done)

	for {
		if !t.waitWhilePaused() {
			return
		}

		available := t.pool.BlockForAvailableWorkers()
		if available < 1 {
			// Pool shut down.
			if t.isHalted() {
				return
			}
			continue
		}
		maxCount := available
		if maxCount > t.maxBatchSize {
			maxCount = t.maxBatchSize
		}

		now := t.clock.Now()
		t.clearSignaled()
		acquired := t.store.AcquireNextTriggers(now.Add(t.idleWaitTime), maxCount, t.batchTimeWindow)

		if len(acquired) == 0 {
			// Nothing due inside the horizon; idle until a signal or the
			// full idle wait elapses.
			t.sleepUntil(t.clock.Now().Add(t.idleWaitTime))
			continue
		}

		fireTime := acquired[0].NextFireTime()
		for t.clock.Now().Before(fireTime) {
			if !t.sleepUntil(fireTime) {
				break
			}
			if t.isHalted() {
				break
			}
			// A mutation may have produced an earlier trigger than the
			// batch we hold; release and start over if so.
			if candidate, was := t.clearSignaled(); was {
				if candidate.IsZero() || candidate.Before(fireTime) {
					for _, trigger := range acquired {
						t.store.ReleaseAcquiredTrigger(trigger)
					}
					acquired = nil
					break
				}
			}
		}
		if len(acquired) == 0 {
			continue
		}
		if t.isHalted() {
			for _, trigger := range acquired {
				t.store.ReleaseAcquiredTrigger(trigger)
			}
			return
		}

		results := t.store.TriggersFired(acquired)
		for i, res := range results {
			if res.Err != nil {
				t.logger.Errorf("firing trigger %q: %v", acquired[i].Key(), res.Err)
				t.store.ReleaseAcquiredTrigger(acquired[i])
				continue
			}
			if res.Bundle == nil {
				// Trigger vanished between acquire and fire.
				continue
			}
			if !t.dispatch(res.Bundle) {
				t.logger.Errorf("worker pool rejected trigger %q; trigger set to ERROR state", acquired[i].Key())
				t.store.TriggeredJobComplete(res.Bundle.Trigger, res.Bundle.JobDetail, InstructionSetTriggerError)
			}
		}
	}
}
