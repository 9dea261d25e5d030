package core

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type realClock struct{}

func NewRealClock() Clock {
	return &realClock{}
}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func (c *realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

func (c *realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (c *realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}

var (
	defaultClock     Clock = NewRealClock()
	defaultClockLock sync.RWMutex
)

// GetDefaultClock returns the process-wide clock used when a scheduler is
// built without an explicit one.
func GetDefaultClock() Clock {
	defaultClockLock.RLock()
	defer defaultClockLock.RUnlock()
	return defaultClock
}

// SetDefaultClock swaps the process-wide clock. Intended for tests.
func SetDefaultClock(c Clock) {
	defaultClockLock.Lock()
	defer defaultClockLock.Unlock()
	defaultClock = c
}

// FakeClock is a manually advanced clock for tests. Timers fire when
// Advance moves the clock past their deadline.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		t.fire(c.now)
	} else {
		c.timers = append(c.timers, t)
	}
	return t
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C()
}

func (c *FakeClock) Sleep(d time.Duration) {
	<-c.After(d)
}

// Advance moves the clock forward and fires any timers whose deadline was
// reached.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	remaining := c.timers[:0]
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range due {
		t.fire(now)
	}
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	ch       chan time.Time
	stopped  bool
	fired    bool
	mu       sync.Mutex
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.fired && !t.stopped
	t.stopped = true
	return active
}

func (t *fakeTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return
	}
	t.fired = true
	select {
	case t.ch <- now:
	default:
	}
}
