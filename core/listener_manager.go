package core

import (
	"fmt"
	"sync"
)

type registeredJobListener struct {
	listener JobListener
	matchers []Matcher
}

type registeredTriggerListener struct {
	listener TriggerListener
	matchers []Matcher
}

// ListenerManager holds the registered listeners and performs the matched,
// error-isolated fan-out. A listener panic is logged and never propagates
// to the caller or to other listeners.
type ListenerManager struct {
	mu                 sync.RWMutex
	jobListeners       []registeredJobListener
	triggerListeners   []registeredTriggerListener
	schedulerListeners []SchedulerListener
	logger             Logger
}

func NewListenerManager(logger Logger) *ListenerManager {
	return &ListenerManager{logger: logger}
}

// AddJobListener registers a job listener. With no matchers the listener
// receives every job's events.
func (m *ListenerManager) AddJobListener(listener JobListener, matchers ...Matcher) error {
	if listener.Name() == "" {
		return fmt.Errorf("add job listener: empty name: %w", ErrInvalidKey)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.jobListeners {
		if reg.listener.Name() == listener.Name() {
			return fmt.Errorf("add job listener %q: %w", listener.Name(), ErrListenerExists)
		}
	}
	m.jobListeners = append(m.jobListeners, registeredJobListener{listener: listener, matchers: matchers})
	return nil
}

func (m *ListenerManager) RemoveJobListener(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, reg := range m.jobListeners {
		if reg.listener.Name() == name {
			m.jobListeners = append(m.jobListeners[:i], m.jobListeners[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove job listener %q: %w", name, ErrListenerNotFound)
}

// AddTriggerListener registers a trigger listener, matched against trigger
// keys.
func (m *ListenerManager) AddTriggerListener(listener TriggerListener, matchers ...Matcher) error {
	if listener.Name() == "" {
		return fmt.Errorf("add trigger listener: empty name: %w", ErrInvalidKey)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.triggerListeners {
		if reg.listener.Name() == listener.Name() {
			return fmt.Errorf("add trigger listener %q: %w", listener.Name(), ErrListenerExists)
		}
	}
	m.triggerListeners = append(m.triggerListeners, registeredTriggerListener{listener: listener, matchers: matchers})
	return nil
}

func (m *ListenerManager) RemoveTriggerListener(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, reg := range m.triggerListeners {
		if reg.listener.Name() == name {
			m.triggerListeners = append(m.triggerListeners[:i], m.triggerListeners[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove trigger listener %q: %w", name, ErrListenerNotFound)
}

func (m *ListenerManager) AddSchedulerListener(listener SchedulerListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedulerListeners = append(m.schedulerListeners, listener)
}

func matchersMatch(matchers []Matcher, key Key) bool {
	if len(matchers) == 0 {
		return true
	}
	for _, matcher := range matchers {
		if matcher.IsMatch(key) {
			return true
		}
	}
	return false
}

func (m *ListenerManager) matchedJobListeners(key JobKey) []JobListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]JobListener, 0, len(m.jobListeners))
	for _, reg := range m.jobListeners {
		if matchersMatch(reg.matchers, key.Key) {
			out = append(out, reg.listener)
		}
	}
	return out
}

func (m *ListenerManager) matchedTriggerListeners(key TriggerKey) []TriggerListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TriggerListener, 0, len(m.triggerListeners))
	for _, reg := range m.triggerListeners {
		if matchersMatch(reg.matchers, key.Key) {
			out = append(out, reg.listener)
		}
	}
	return out
}

func (m *ListenerManager) allSchedulerListeners() []SchedulerListener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SchedulerListener, len(m.schedulerListeners))
	copy(out, m.schedulerListeners)
	return out
}

// safeNotify runs a single listener callback, isolating panics.
func (m *ListenerManager) safeNotify(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Errorf("listener panic in %s: %v", what, r)
		}
	}()
	fn()
}

// ---- fan-out, called by the scheduler and the job shell ----

func (m *ListenerManager) notifyJobToBeExecuted(ctx *JobExecutionContext) {
	for _, l := range m.matchedJobListeners(ctx.JobDetail.Key) {
		l := l
		m.safeNotify("JobToBeExecuted", func() { l.JobToBeExecuted(ctx) })
	}
}

func (m *ListenerManager) notifyJobExecutionVetoed(ctx *JobExecutionContext) {
	for _, l := range m.matchedJobListeners(ctx.JobDetail.Key) {
		l := l
		m.safeNotify("JobExecutionVetoed", func() { l.JobExecutionVetoed(ctx) })
	}
}

func (m *ListenerManager) notifyJobWasExecuted(ctx *JobExecutionContext, jobErr error) {
	for _, l := range m.matchedJobListeners(ctx.JobDetail.Key) {
		l := l
		m.safeNotify("JobWasExecuted", func() { l.JobWasExecuted(ctx, jobErr) })
	}
}

func (m *ListenerManager) notifyTriggerFired(trigger Trigger, ctx *JobExecutionContext) {
	for _, l := range m.matchedTriggerListeners(trigger.Key()) {
		l := l
		m.safeNotify("TriggerFired", func() { l.TriggerFired(trigger, ctx) })
	}
}

// notifyAndVeto runs VetoJobExecution on all matched listeners. Every
// listener is consulted even after a veto, so all of them observe the
// firing; the aggregated result is an OR.
func (m *ListenerManager) notifyAndVeto(trigger Trigger, ctx *JobExecutionContext) bool {
	vetoed := false
	for _, l := range m.matchedTriggerListeners(trigger.Key()) {
		l := l
		m.safeNotify("VetoJobExecution", func() {
			if l.VetoJobExecution(trigger, ctx) {
				vetoed = true
			}
		})
	}
	return vetoed
}

func (m *ListenerManager) notifyTriggerMisfired(trigger Trigger) {
	for _, l := range m.matchedTriggerListeners(trigger.Key()) {
		l := l
		m.safeNotify("TriggerMisfired", func() { l.TriggerMisfired(trigger) })
	}
}

func (m *ListenerManager) notifyTriggerComplete(trigger Trigger, ctx *JobExecutionContext, instruction CompletedExecutionInstruction) {
	for _, l := range m.matchedTriggerListeners(trigger.Key()) {
		l := l
		m.safeNotify("TriggerComplete", func() { l.TriggerComplete(trigger, ctx, instruction) })
	}
}

func (m *ListenerManager) notifySchedulerListeners(what string, fn func(SchedulerListener)) {
	for _, l := range m.allSchedulerListeners() {
		l := l
		m.safeNotify(what, func() { fn(l) })
	}
}
