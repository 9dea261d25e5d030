package core

import (
	"fmt"
	"sync"
	"time"
)

// testLogger records log lines for assertions.
type testLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *testLogger) logf(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+": "+fmt.Sprintf(format, args...))
}

func (l *testLogger) Criticalf(format string, args ...any) { l.logf("CRIT", format, args...) }
func (l *testLogger) Debugf(format string, args ...any)    { l.logf("DEBUG", format, args...) }
func (l *testLogger) Errorf(format string, args ...any)    { l.logf("ERROR", format, args...) }
func (l *testLogger) Noticef(format string, args ...any)   { l.logf("NOTICE", format, args...) }
func (l *testLogger) Warningf(format string, args ...any)  { l.logf("WARN", format, args...) }

// fakeSignaler records signaler callbacks for assertions.
type fakeSignaler struct {
	mu         sync.Mutex
	misfired   []TriggerKey
	finalized  []TriggerKey
	jobDeleted []JobKey
	errors     []string
	signals    []time.Time
}

func (s *fakeSignaler) NotifyTriggerListenersMisfired(trigger Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misfired = append(s.misfired, trigger.Key())
}

func (s *fakeSignaler) NotifySchedulerListenersFinalized(trigger Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized = append(s.finalized, trigger.Key())
}

func (s *fakeSignaler) NotifySchedulerListenersJobDeleted(key JobKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobDeleted = append(s.jobDeleted, key)
}

func (s *fakeSignaler) NotifySchedulerListenersError(msg string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Sprintf("%s: %v", msg, err))
}

func (s *fakeSignaler) SignalSchedulingChange(candidate time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, candidate)
}

func (s *fakeSignaler) misfiredKeys() []TriggerKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TriggerKey, len(s.misfired))
	copy(out, s.misfired)
	return out
}

func (s *fakeSignaler) deletedJobs() []JobKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobKey, len(s.jobDeleted))
	copy(out, s.jobDeleted)
	return out
}

// newTestStore builds an initialized RAMJobStore with a fake signaler.
func newTestStore() (*RAMJobStore, *fakeSignaler) {
	store := NewRAMJobStore()
	sig := &fakeSignaler{}
	store.Initialize(sig, &testLogger{})
	return store, sig
}

// storedJob stores a fresh durable job and returns its key.
func storedJob(store *RAMJobStore, name string) JobKey {
	key := NewJobKey(name)
	detail := NewJobDetail(key, "noop")
	detail.Durable = true
	if err := store.StoreJob(detail, false); err != nil {
		panic(err)
	}
	return key
}
