package core

import (
	"fmt"
	"sync"
	"time"
)

// SchedulerConfig carries the tunables of one scheduler instance. Zero
// values fall back to the documented defaults.
type SchedulerConfig struct {
	InstanceName string
	InstanceID   string

	// IdleWaitTime bounds the scheduler thread's sleep between empty
	// acquisition passes.
	IdleWaitTime time.Duration

	// MaxBatchSize is the maximum number of triggers acquired per pass.
	MaxBatchSize int

	// BatchTimeWindow lets a pass pick up triggers due shortly after the
	// first one, trading punctuality for batching.
	BatchTimeWindow time.Duration

	// WorkerCount is the worker pool size.
	WorkerCount int

	// MisfireThreshold is how late a fire time may run before the misfire
	// policy applies.
	MisfireThreshold time.Duration
}

type schedulerState int

const (
	schedulerNotStarted schedulerState = iota
	schedulerRunning
	schedulerStandby
	schedulerShutdown
)

// SchedulerMetadata is a point-in-time summary of the scheduler.
type SchedulerMetadata struct {
	InstanceName     string
	InstanceID       string
	Started          bool
	InStandbyMode    bool
	Shutdown         bool
	RunningSince     time.Time
	ExecutedJobs     int64
	WorkerCount      int
	JobStoreType     string
	IdleWaitTime     time.Duration
	MaxBatchSize     int
	MisfireThreshold time.Duration
}

// Scheduler is the facade tying the store, the worker pool, the timing
// thread and the listener fan-out together. All methods are safe for
// concurrent use.
type Scheduler struct {
	instanceName string
	instanceID   string

	store     JobStore
	pool      *WorkerPool
	listeners *ListenerManager
	thread    *schedulerThread
	clock     Clock
	logger    Logger

	mu           sync.Mutex
	state        schedulerState
	runningSince time.Time
	executedJobs int64
	jobFactory   JobFactory
	contextMap   map[string]any

	misfireThreshold time.Duration
}

// NewScheduler builds a scheduler over an in-memory store with the given
// configuration.
func NewScheduler(cfg SchedulerConfig, logger Logger) (*Scheduler, error) {
	return NewSchedulerWithStore(cfg, NewRAMJobStore(), logger)
}

func NewSchedulerWithStore(cfg SchedulerConfig, store JobStore, logger Logger) (*Scheduler, error) {
	if cfg.InstanceName == "" {
		cfg.InstanceName = "QuartziteScheduler"
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = "NON_CLUSTERED"
	}
	if cfg.IdleWaitTime <= 0 {
		cfg.IdleWaitTime = DefaultIdleWaitTime
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.BatchTimeWindow < 0 {
		return nil, fmt.Errorf("%w: negative batch time window", ErrSchedulerConfig)
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.MisfireThreshold <= 0 {
		cfg.MisfireThreshold = DefaultMisfireThreshold
	}

	pool, err := NewWorkerPool(cfg.WorkerCount, logger)
	if err != nil {
		return nil, err
	}

	clock := GetDefaultClock()
	s := &Scheduler{
		instanceName:     cfg.InstanceName,
		instanceID:       cfg.InstanceID,
		store:            store,
		pool:             pool,
		listeners:        NewListenerManager(logger),
		clock:            clock,
		logger:           logger,
		jobFactory:       NewRegistryJobFactory(),
		contextMap:       make(map[string]any),
		misfireThreshold: cfg.MisfireThreshold,
	}

	s.thread = newSchedulerThread(store, pool, clock, logger)
	s.thread.idleWaitTime = cfg.IdleWaitTime
	s.thread.maxBatchSize = cfg.MaxBatchSize
	s.thread.batchTimeWindow = cfg.BatchTimeWindow
	s.thread.dispatch = s.dispatchBundle

	store.Initialize(&schedulerSignaler{scheduler: s}, logger)
	store.SetMisfireThreshold(cfg.MisfireThreshold)

	go s.thread.run()
	return s, nil
}

func (s *Scheduler) InstanceName() string { return s.instanceName }
func (s *Scheduler) InstanceID() string   { return s.instanceID }

// ListenerManager exposes listener registration.
func (s *Scheduler) ListenerManager() *ListenerManager { return s.listeners }

// SetJobFactory replaces the factory used to instantiate jobs at fire
// time.
func (s *Scheduler) SetJobFactory(f JobFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobFactory = f
}

func (s *Scheduler) factory() JobFactory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobFactory
}

// RegisterJobType binds a job type name to a constructor on the default
// registry factory. It fails when a custom factory was installed.
func (s *Scheduler) RegisterJobType(jobType string, ctor JobConstructor) error {
	rf, ok := s.factory().(*RegistryJobFactory)
	if !ok {
		return fmt.Errorf("register job type %q: custom job factory installed: %w", jobType, ErrSchedulerConfig)
	}
	rf.Register(jobType, ctor)
	return nil
}

// Context is the scheduler-scoped shared value map.
func (s *Scheduler) Context() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextMap
}

func (s *Scheduler) Metadata() SchedulerMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerMetadata{
		InstanceName:     s.instanceName,
		InstanceID:       s.instanceID,
		Started:          s.state == schedulerRunning || s.state == schedulerStandby,
		InStandbyMode:    s.state == schedulerStandby || s.state == schedulerNotStarted,
		Shutdown:         s.state == schedulerShutdown,
		RunningSince:     s.runningSince,
		ExecutedJobs:     s.executedJobs,
		WorkerCount:      s.pool.Size(),
		JobStoreType:     fmt.Sprintf("%T", s.store),
		IdleWaitTime:     s.thread.idleWaitTime,
		MaxBatchSize:     s.thread.maxBatchSize,
		MisfireThreshold: s.misfireThreshold,
	}
}

// ---- lifecycle ----

func (s *Scheduler) checkNotShutdown(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == schedulerShutdown {
		return fmt.Errorf("%s: %w", op, ErrSchedulerUnavailable)
	}
	return nil
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.state == schedulerShutdown {
		s.mu.Unlock()
		return fmt.Errorf("start: %w", ErrSchedulerUnavailable)
	}
	if s.state == schedulerRunning {
		s.mu.Unlock()
		return nil
	}
	if s.runningSince.IsZero() {
		s.runningSince = s.clock.Now()
	}
	s.state = schedulerRunning
	s.mu.Unlock()

	s.listeners.notifySchedulerListeners("SchedulerStarting", func(l SchedulerListener) {
		l.SchedulerStarting()
	})
	s.thread.togglePause(false)
	s.logger.Noticef("scheduler %s started", s.instanceName)
	s.listeners.notifySchedulerListeners("SchedulerStarted", func(l SchedulerListener) {
		l.SchedulerStarted()
	})
	return nil
}

// StartDelayed starts the scheduler after the given delay, from a
// background goroutine.
func (s *Scheduler) StartDelayed(delay time.Duration) {
	go func() {
		s.clock.Sleep(delay)
		if err := s.Start(); err != nil {
			s.logger.Errorf("delayed start: %v", err)
		}
	}()
}

// Standby halts trigger dispatch but keeps the workers and the stored
// data; Start resumes.
func (s *Scheduler) Standby() error {
	s.mu.Lock()
	if s.state == schedulerShutdown {
		s.mu.Unlock()
		return fmt.Errorf("standby: %w", ErrSchedulerUnavailable)
	}
	s.state = schedulerStandby
	s.mu.Unlock()

	s.thread.togglePause(true)
	s.logger.Noticef("scheduler %s in standby mode", s.instanceName)
	s.listeners.notifySchedulerListeners("SchedulerInStandbyMode", func(l SchedulerListener) {
		l.SchedulerInStandbyMode()
	})
	return nil
}

// Shutdown stops the scheduler permanently. With waitForJobs set it
// blocks until in-flight executions complete.
func (s *Scheduler) Shutdown(waitForJobs bool) error {
	s.mu.Lock()
	if s.state == schedulerShutdown {
		s.mu.Unlock()
		return nil
	}
	s.state = schedulerShutdown
	s.mu.Unlock()

	s.logger.Noticef("scheduler %s shutting down (wait=%t)", s.instanceName, waitForJobs)
	s.listeners.notifySchedulerListeners("SchedulerShuttingDown", func(l SchedulerListener) {
		l.SchedulerShuttingDown()
	})
	s.thread.halt()
	s.pool.Shutdown(waitForJobs)
	s.store.Shutdown()

	s.listeners.notifySchedulerListeners("SchedulerShutdown", func(l SchedulerListener) {
		l.SchedulerShutdown()
	})
	s.logger.Noticef("scheduler %s shut down", s.instanceName)
	return nil
}

func (s *Scheduler) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == schedulerRunning
}

func (s *Scheduler) IsInStandbyMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == schedulerStandby
}

func (s *Scheduler) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == schedulerShutdown
}

// ---- scheduling ----

// ScheduleJob stores the job and its trigger atomically and returns the
// trigger's first fire time.
func (s *Scheduler) ScheduleJob(job *JobDetail, trigger OperableTrigger) (time.Time, error) {
	if err := s.checkNotShutdown("schedule job"); err != nil {
		return time.Time{}, err
	}
	if trigger.JobKey() != job.Key {
		return time.Time{}, WrapTriggerError("schedule", trigger.Key(),
			fmt.Errorf("trigger references job %q, not %q: %w", trigger.JobKey(), job.Key, ErrInvalidTrigger))
	}
	first, prepared, err := s.prepareTrigger(trigger)
	if err != nil {
		return time.Time{}, err
	}
	if err := s.store.StoreJobAndTrigger(job, prepared); err != nil {
		return time.Time{}, err
	}
	s.notifyJobScheduled(job, prepared)
	s.signalSchedulingChange(first)
	return first, nil
}

// ScheduleTrigger stores a trigger for an already-stored job.
func (s *Scheduler) ScheduleTrigger(trigger OperableTrigger) (time.Time, error) {
	if err := s.checkNotShutdown("schedule trigger"); err != nil {
		return time.Time{}, err
	}
	first, prepared, err := s.prepareTrigger(trigger)
	if err != nil {
		return time.Time{}, err
	}
	if err := s.store.StoreTrigger(prepared, false); err != nil {
		return time.Time{}, err
	}
	s.listeners.notifySchedulerListeners("JobScheduled", func(l SchedulerListener) {
		l.JobScheduled(prepared)
	})
	s.signalSchedulingChange(first)
	return first, nil
}

// ScheduleJobs stores several job/trigger bundles; with replace unset the
// operation fails atomically on the first key collision.
func (s *Scheduler) ScheduleJobs(bundles []JobAndTriggers, replace bool) error {
	if err := s.checkNotShutdown("schedule jobs"); err != nil {
		return err
	}
	prepared := make([]JobAndTriggers, 0, len(bundles))
	for _, b := range bundles {
		pb := JobAndTriggers{Job: b.Job}
		for _, t := range b.Triggers {
			if t.JobKey() != b.Job.Key {
				return WrapTriggerError("schedule", t.Key(),
					fmt.Errorf("trigger references job %q, not %q: %w", t.JobKey(), b.Job.Key, ErrInvalidTrigger))
			}
			_, pt, err := s.prepareTrigger(t)
			if err != nil {
				return err
			}
			pb.Triggers = append(pb.Triggers, pt)
		}
		prepared = append(prepared, pb)
	}
	if err := s.store.StoreJobsAndTriggers(prepared, replace); err != nil {
		return err
	}
	for _, b := range prepared {
		for _, t := range b.Triggers {
			s.notifyJobScheduled(b.Job, t)
		}
	}
	s.signalSchedulingChange(time.Time{})
	return nil
}

// prepareTrigger validates the trigger and computes its first fire time,
// honoring the referenced calendar. The returned clone is what gets
// stored.
func (s *Scheduler) prepareTrigger(trigger OperableTrigger) (time.Time, OperableTrigger, error) {
	if err := trigger.Validate(); err != nil {
		return time.Time{}, nil, err
	}
	var cal Calendar
	if name := trigger.CalendarName(); name != "" {
		var err error
		cal, err = s.store.RetrieveCalendar(name)
		if err != nil {
			return time.Time{}, nil, err
		}
	}
	prepared := trigger.Clone()
	first := prepared.ComputeFirstFireTime(cal)
	if first.IsZero() {
		return time.Time{}, nil, WrapTriggerError("schedule", trigger.Key(),
			fmt.Errorf("will never fire: %w", ErrInvalidTrigger))
	}
	return first, prepared, nil
}

func (s *Scheduler) notifyJobScheduled(job *JobDetail, trigger OperableTrigger) {
	s.listeners.notifySchedulerListeners("JobAdded", func(l SchedulerListener) {
		l.JobAdded(job.Clone())
	})
	s.listeners.notifySchedulerListeners("JobScheduled", func(l SchedulerListener) {
		l.JobScheduled(trigger)
	})
}

// UnscheduleJob removes the trigger; per the orphaning rule this may also
// delete a non-durable job.
func (s *Scheduler) UnscheduleJob(key TriggerKey) (bool, error) {
	if err := s.checkNotShutdown("unschedule job"); err != nil {
		return false, err
	}
	removed, err := s.store.RemoveTrigger(key)
	if err != nil {
		return false, err
	}
	if removed {
		s.listeners.notifySchedulerListeners("JobUnscheduled", func(l SchedulerListener) {
			l.JobUnscheduled(key)
		})
	}
	return removed, nil
}

func (s *Scheduler) UnscheduleJobs(keys []TriggerKey) (bool, error) {
	all := true
	for _, key := range keys {
		removed, err := s.UnscheduleJob(key)
		if err != nil {
			return false, err
		}
		all = all && removed
	}
	return all, nil
}

// RescheduleJob atomically swaps the trigger under oldKey for newTrigger
// (same job) and returns the new first fire time; zero when oldKey did
// not exist.
func (s *Scheduler) RescheduleJob(oldKey TriggerKey, newTrigger OperableTrigger) (time.Time, error) {
	if err := s.checkNotShutdown("reschedule job"); err != nil {
		return time.Time{}, err
	}
	first, prepared, err := s.prepareTrigger(newTrigger)
	if err != nil {
		return time.Time{}, err
	}
	replaced, err := s.store.ReplaceTrigger(oldKey, prepared)
	if err != nil {
		return time.Time{}, err
	}
	if !replaced {
		return time.Time{}, nil
	}
	s.listeners.notifySchedulerListeners("JobUnscheduled", func(l SchedulerListener) {
		l.JobUnscheduled(oldKey)
	})
	s.listeners.notifySchedulerListeners("JobScheduled", func(l SchedulerListener) {
		l.JobScheduled(prepared)
	})
	s.signalSchedulingChange(first)
	return first, nil
}

// AddJob stores a job with no trigger. Non-durable jobs are rejected
// unless storeNonDurable allows them to await scheduling.
func (s *Scheduler) AddJob(job *JobDetail, replace, storeNonDurable bool) error {
	if err := s.checkNotShutdown("add job"); err != nil {
		return err
	}
	if !job.Durable && !storeNonDurable {
		return WrapJobError("add", job.Key,
			fmt.Errorf("non-durable job cannot be stored without a trigger: %w", ErrJobPersistence))
	}
	if err := s.store.StoreJob(job, replace); err != nil {
		return err
	}
	s.listeners.notifySchedulerListeners("JobAdded", func(l SchedulerListener) {
		l.JobAdded(job.Clone())
	})
	return nil
}

func (s *Scheduler) DeleteJob(key JobKey) (bool, error) {
	if err := s.checkNotShutdown("delete job"); err != nil {
		return false, err
	}
	triggers := s.store.TriggersForJob(key)
	removed, err := s.store.RemoveJob(key)
	if err != nil {
		return false, err
	}
	if removed {
		for _, t := range triggers {
			key := t.Key()
			s.listeners.notifySchedulerListeners("JobUnscheduled", func(l SchedulerListener) {
				l.JobUnscheduled(key)
			})
		}
		s.listeners.notifySchedulerListeners("JobDeleted", func(l SchedulerListener) {
			l.JobDeleted(key)
		})
	}
	return removed, nil
}

func (s *Scheduler) DeleteJobs(keys []JobKey) (bool, error) {
	all := true
	for _, key := range keys {
		removed, err := s.DeleteJob(key)
		if err != nil {
			return false, err
		}
		all = all && removed
	}
	return all, nil
}

// TriggerJob fires the job now by synthesizing a one-shot trigger.
func (s *Scheduler) TriggerJob(key JobKey, data *JobDataMap) error {
	if err := s.checkNotShutdown("trigger job"); err != nil {
		return err
	}
	if !s.store.CheckJobExists(key) {
		return WrapJobError("trigger", key, ErrJobNotFound)
	}
	name := fmt.Sprintf("MT_%s", s.nextManualTriggerID())
	trigger := NewOneShotTrigger(NewTriggerKeyWithGroup(name, "MANUAL_TRIGGER"), key, s.clock.Now())
	trigger.SetMisfireInstruction(MisfireInstructionIgnoreMisfirePolicy)
	if data != nil {
		trigger.SetJobData(data.Clone())
	}
	trigger.ComputeFirstFireTime(nil)
	if err := s.store.StoreTrigger(trigger, false); err != nil {
		return err
	}
	s.signalSchedulingChange(trigger.NextFireTime())
	return nil
}

var manualTriggerCounter struct {
	mu sync.Mutex
	n  int64
}

func (s *Scheduler) nextManualTriggerID() string {
	manualTriggerCounter.mu.Lock()
	defer manualTriggerCounter.mu.Unlock()
	manualTriggerCounter.n++
	return fmt.Sprintf("%d_%d", s.clock.Now().UnixMilli(), manualTriggerCounter.n)
}

// ---- pause / resume ----

func (s *Scheduler) PauseTrigger(key TriggerKey) error {
	if err := s.store.PauseTrigger(key); err != nil {
		return err
	}
	s.listeners.notifySchedulerListeners("TriggerPaused", func(l SchedulerListener) {
		l.TriggerPaused(key)
	})
	return nil
}

func (s *Scheduler) PauseTriggers(matcher GroupMatcher) error {
	groups, err := s.store.PauseTriggers(matcher)
	if err != nil {
		return err
	}
	for _, group := range groups {
		group := group
		s.listeners.notifySchedulerListeners("TriggersPaused", func(l SchedulerListener) {
			l.TriggersPaused(group)
		})
	}
	return nil
}

func (s *Scheduler) PauseJob(key JobKey) error {
	if err := s.store.PauseJob(key); err != nil {
		return err
	}
	s.listeners.notifySchedulerListeners("JobPaused", func(l SchedulerListener) {
		l.JobPaused(key)
	})
	return nil
}

func (s *Scheduler) PauseJobs(matcher GroupMatcher) error {
	groups, err := s.store.PauseJobs(matcher)
	if err != nil {
		return err
	}
	for _, group := range groups {
		group := group
		s.listeners.notifySchedulerListeners("JobsPaused", func(l SchedulerListener) {
			l.JobsPaused(group)
		})
	}
	return nil
}

func (s *Scheduler) ResumeTrigger(key TriggerKey) error {
	if err := s.store.ResumeTrigger(key); err != nil {
		return err
	}
	s.listeners.notifySchedulerListeners("TriggerResumed", func(l SchedulerListener) {
		l.TriggerResumed(key)
	})
	s.signalSchedulingChange(time.Time{})
	return nil
}

func (s *Scheduler) ResumeTriggers(matcher GroupMatcher) error {
	groups, err := s.store.ResumeTriggers(matcher)
	if err != nil {
		return err
	}
	for _, group := range groups {
		group := group
		s.listeners.notifySchedulerListeners("TriggersResumed", func(l SchedulerListener) {
			l.TriggersResumed(group)
		})
	}
	s.signalSchedulingChange(time.Time{})
	return nil
}

func (s *Scheduler) ResumeJob(key JobKey) error {
	if err := s.store.ResumeJob(key); err != nil {
		return err
	}
	s.listeners.notifySchedulerListeners("JobResumed", func(l SchedulerListener) {
		l.JobResumed(key)
	})
	s.signalSchedulingChange(time.Time{})
	return nil
}

func (s *Scheduler) ResumeJobs(matcher GroupMatcher) error {
	groups, err := s.store.ResumeJobs(matcher)
	if err != nil {
		return err
	}
	for _, group := range groups {
		group := group
		s.listeners.notifySchedulerListeners("JobsResumed", func(l SchedulerListener) {
			l.JobsResumed(group)
		})
	}
	s.signalSchedulingChange(time.Time{})
	return nil
}

func (s *Scheduler) PauseAll() error {
	return s.store.PauseAll()
}

func (s *Scheduler) ResumeAll() error {
	if err := s.store.ResumeAll(); err != nil {
		return err
	}
	s.signalSchedulingChange(time.Time{})
	return nil
}

// ---- queries ----

func (s *Scheduler) JobGroupNames() []string        { return s.store.JobGroupNames() }
func (s *Scheduler) TriggerGroupNames() []string    { return s.store.TriggerGroupNames() }
func (s *Scheduler) PausedTriggerGroups() []string  { return s.store.PausedTriggerGroups() }
func (s *Scheduler) JobKeys(m GroupMatcher) []JobKey { return s.store.JobKeys(m) }

func (s *Scheduler) TriggerKeys(m GroupMatcher) []TriggerKey { return s.store.TriggerKeys(m) }

func (s *Scheduler) TriggersOfJob(key JobKey) []Trigger {
	ops := s.store.TriggersForJob(key)
	out := make([]Trigger, len(ops))
	for i, t := range ops {
		out[i] = t
	}
	return out
}

func (s *Scheduler) JobDetail(key JobKey) (*JobDetail, error) {
	return s.store.RetrieveJob(key)
}

func (s *Scheduler) Trigger(key TriggerKey) (Trigger, error) {
	return s.store.RetrieveTrigger(key)
}

func (s *Scheduler) TriggerState(key TriggerKey) TriggerState {
	return s.store.TriggerState(key)
}

func (s *Scheduler) CheckJobExists(key JobKey) bool         { return s.store.CheckJobExists(key) }
func (s *Scheduler) CheckTriggerExists(key TriggerKey) bool { return s.store.CheckTriggerExists(key) }

// Clear removes all jobs, triggers and calendars.
func (s *Scheduler) Clear() error {
	if err := s.checkNotShutdown("clear"); err != nil {
		return err
	}
	if err := s.store.ClearAllSchedulingData(); err != nil {
		return err
	}
	s.listeners.notifySchedulerListeners("SchedulingDataCleared", func(l SchedulerListener) {
		l.SchedulingDataCleared()
	})
	return nil
}

// ---- calendars ----

func (s *Scheduler) AddCalendar(name string, cal Calendar, replace, updateTriggers bool) error {
	if err := s.checkNotShutdown("add calendar"); err != nil {
		return err
	}
	if err := s.store.StoreCalendar(name, cal, replace, updateTriggers); err != nil {
		return err
	}
	if updateTriggers {
		s.signalSchedulingChange(time.Time{})
	}
	return nil
}

func (s *Scheduler) DeleteCalendar(name string) (bool, error) {
	if err := s.checkNotShutdown("delete calendar"); err != nil {
		return false, err
	}
	return s.store.RemoveCalendar(name)
}

func (s *Scheduler) Calendar(name string) (Calendar, error) {
	return s.store.RetrieveCalendar(name)
}

func (s *Scheduler) CalendarNames() []string {
	return s.store.CalendarNames()
}

// ---- internals ----

func (s *Scheduler) signalSchedulingChange(candidate time.Time) {
	s.thread.signalSchedulingChange(candidate)
}

// dispatchBundle is installed as the thread's dispatch hook; it builds the
// run shell and hands it to the pool.
func (s *Scheduler) dispatchBundle(bundle *TriggerFiredBundle) bool {
	shell, err := newJobRunShell(s, bundle)
	if err != nil {
		s.logger.Errorf("instantiating job for trigger %q: %v", bundle.Trigger.Key(), err)
		s.listeners.notifySchedulerListeners("SchedulerError", func(l SchedulerListener) {
			l.SchedulerError("job instantiation failed", err)
		})
		s.store.TriggeredJobComplete(bundle.Trigger, bundle.JobDetail, InstructionSetAllJobTriggersError)
		return true
	}
	ok := s.pool.RunInWorker(func() {
		shell.run()
		s.mu.Lock()
		s.executedJobs++
		s.mu.Unlock()
	})
	return ok
}

// schedulerSignaler adapts the scheduler to the store's outbound callback
// surface.
type schedulerSignaler struct {
	scheduler *Scheduler
}

func (sig *schedulerSignaler) NotifyTriggerListenersMisfired(trigger Trigger) {
	sig.scheduler.listeners.notifyTriggerMisfired(trigger)
}

func (sig *schedulerSignaler) NotifySchedulerListenersFinalized(trigger Trigger) {
	sig.scheduler.listeners.notifySchedulerListeners("TriggerFinalized", func(l SchedulerListener) {
		l.TriggerFinalized(trigger)
	})
}

func (sig *schedulerSignaler) NotifySchedulerListenersJobDeleted(key JobKey) {
	sig.scheduler.listeners.notifySchedulerListeners("JobDeleted", func(l SchedulerListener) {
		l.JobDeleted(key)
	})
}

func (sig *schedulerSignaler) NotifySchedulerListenersError(msg string, err error) {
	sig.scheduler.listeners.notifySchedulerListeners("SchedulerError", func(l SchedulerListener) {
		l.SchedulerError(msg, err)
	})
}

func (sig *schedulerSignaler) SignalSchedulingChange(candidateNewNextFireTime time.Time) {
	sig.scheduler.signalSchedulingChange(candidateNewNextFireTime)
}
