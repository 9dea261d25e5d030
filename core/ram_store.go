package core

import (
	"container/heap"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMisfireThreshold is how far past its fire time a trigger may slip
// before the misfire policy applies.
const DefaultMisfireThreshold = 5 * time.Second

// RAMJobStore keeps all scheduling state in memory, guarded by one lock.
// Signals destined for listeners are captured under the lock and delivered
// after it is released; the signaler must not call back into the store.
type RAMJobStore struct {
	mu sync.Mutex

	jobs        map[JobKey]*JobDetail
	jobsByGroup map[string]map[JobKey]*JobDetail

	triggers        map[TriggerKey]*triggerRecord
	triggersByGroup map[string]map[TriggerKey]*triggerRecord
	triggersByJob   map[JobKey]map[TriggerKey]*triggerRecord

	readySet triggerHeap

	calendars map[string]Calendar

	pausedTriggerGroups map[string]struct{}
	pausedJobGroups     map[string]struct{}
	blockedJobs         map[JobKey]struct{}

	misfireThreshold time.Duration
	fireCounter      int64

	signaler SchedulerSignaler
	logger   Logger
}

var _ JobStore = (*RAMJobStore)(nil)

func NewRAMJobStore() *RAMJobStore {
	return &RAMJobStore{
		jobs:                make(map[JobKey]*JobDetail),
		jobsByGroup:         make(map[string]map[JobKey]*JobDetail),
		triggers:            make(map[TriggerKey]*triggerRecord),
		triggersByGroup:     make(map[string]map[TriggerKey]*triggerRecord),
		triggersByJob:       make(map[JobKey]map[TriggerKey]*triggerRecord),
		calendars:           make(map[string]Calendar),
		pausedTriggerGroups: make(map[string]struct{}),
		pausedJobGroups:     make(map[string]struct{}),
		blockedJobs:         make(map[JobKey]struct{}),
		misfireThreshold:    DefaultMisfireThreshold,
		fireCounter:         time.Now().UnixMilli(),
	}
}

func (s *RAMJobStore) Initialize(signaler SchedulerSignaler, logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signaler = signaler
	s.logger = logger
}

func (s *RAMJobStore) SetMisfireThreshold(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.misfireThreshold = d
	}
}

func (s *RAMJobStore) Shutdown() {}

// runSignals delivers captured signal closures after the store lock was
// released.
func runSignals(signals []func()) {
	for _, sig := range signals {
		sig()
	}
}

// ---- jobs and triggers ----

func (s *RAMJobStore) StoreJob(job *JobDetail, replaceExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeJobLocked(job, replaceExisting)
}

func (s *RAMJobStore) storeJobLocked(job *JobDetail, replaceExisting bool) error {
	if _, exists := s.jobs[job.Key]; exists && !replaceExisting {
		return WrapJobError("store", job.Key, ErrJobAlreadyExists)
	}
	clone := job.Clone()
	s.jobs[job.Key] = clone
	group := s.jobsByGroup[job.Key.Group]
	if group == nil {
		group = make(map[JobKey]*JobDetail)
		s.jobsByGroup[job.Key.Group] = group
	}
	group[job.Key] = clone
	return nil
}

func (s *RAMJobStore) StoreTrigger(trigger OperableTrigger, replaceExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeTriggerLocked(trigger, replaceExisting)
}

func (s *RAMJobStore) storeTriggerLocked(trigger OperableTrigger, replaceExisting bool) error {
	key := trigger.Key()
	if existing, exists := s.triggers[key]; exists {
		if !replaceExisting {
			return WrapTriggerError("store", key, ErrTriggerAlreadyExists)
		}
		s.removeTriggerLocked(existing, false)
	}
	if _, ok := s.jobs[trigger.JobKey()]; !ok {
		return fmt.Errorf("store trigger %q: referenced job %q: %w", key, trigger.JobKey(), ErrJobNotFound)
	}

	rec := &triggerRecord{trigger: trigger.Clone(), heapIndex: -1}
	s.triggers[key] = rec
	group := s.triggersByGroup[key.Group]
	if group == nil {
		group = make(map[TriggerKey]*triggerRecord)
		s.triggersByGroup[key.Group] = group
	}
	group[key] = rec
	byJob := s.triggersByJob[trigger.JobKey()]
	if byJob == nil {
		byJob = make(map[TriggerKey]*triggerRecord)
		s.triggersByJob[trigger.JobKey()] = byJob
	}
	byJob[key] = rec

	_, triggerGroupPaused := s.pausedTriggerGroups[key.Group]
	_, jobGroupPaused := s.pausedJobGroups[trigger.JobKey().Group]
	_, jobBlocked := s.blockedJobs[trigger.JobKey()]

	switch {
	case triggerGroupPaused || jobGroupPaused:
		if jobBlocked {
			rec.state = statePausedBlocked
		} else {
			rec.state = statePaused
		}
	case jobBlocked:
		rec.state = stateBlocked
	default:
		rec.state = stateWaiting
		heap.Push(&s.readySet, rec)
	}
	return nil
}

func (s *RAMJobStore) StoreJobAndTrigger(job *JobDetail, trigger OperableTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storeJobLocked(job, false); err != nil {
		return err
	}
	return s.storeTriggerLocked(trigger, false)
}

func (s *RAMJobStore) StoreJobsAndTriggers(bundles []JobAndTriggers, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !replace {
		for _, b := range bundles {
			if _, exists := s.jobs[b.Job.Key]; exists {
				return WrapJobError("store", b.Job.Key, ErrJobAlreadyExists)
			}
			for _, t := range b.Triggers {
				if _, exists := s.triggers[t.Key()]; exists {
					return WrapTriggerError("store", t.Key(), ErrTriggerAlreadyExists)
				}
			}
		}
	}
	for _, b := range bundles {
		if err := s.storeJobLocked(b.Job, true); err != nil {
			return err
		}
		for _, t := range b.Triggers {
			if err := s.storeTriggerLocked(t, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *RAMJobStore) RemoveJob(key JobKey) (bool, error) {
	s.mu.Lock()
	removed := s.removeJobLocked(key)
	s.mu.Unlock()
	return removed, nil
}

func (s *RAMJobStore) removeJobLocked(key JobKey) bool {
	found := false
	for _, rec := range s.triggersForJobLocked(key) {
		s.removeTriggerLocked(rec, false)
		found = true
	}
	if _, ok := s.jobs[key]; ok {
		found = true
		delete(s.jobs, key)
		if group := s.jobsByGroup[key.Group]; group != nil {
			delete(group, key)
			if len(group) == 0 {
				delete(s.jobsByGroup, key.Group)
			}
		}
		delete(s.blockedJobs, key)
	}
	return found
}

func (s *RAMJobStore) RemoveJobs(keys []JobKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := true
	for _, key := range keys {
		all = s.removeJobLocked(key) && all
	}
	return all, nil
}

// removeTriggerLocked detaches rec from every index. With removeOrphans
// set, a non-durable job left with no triggers is deleted and a jobDeleted
// signal is returned for delivery outside the lock.
func (s *RAMJobStore) removeTriggerLocked(rec *triggerRecord, removeOrphans bool) (signals []func()) {
	key := rec.trigger.Key()
	delete(s.triggers, key)
	if group := s.triggersByGroup[key.Group]; group != nil {
		delete(group, key)
		if len(group) == 0 {
			delete(s.triggersByGroup, key.Group)
		}
	}
	jobKey := rec.trigger.JobKey()
	if byJob := s.triggersByJob[jobKey]; byJob != nil {
		delete(byJob, key)
		if len(byJob) == 0 {
			delete(s.triggersByJob, jobKey)
		}
	}
	if rec.heapIndex >= 0 {
		heap.Remove(&s.readySet, rec.heapIndex)
	}

	if !removeOrphans {
		return nil
	}
	job, ok := s.jobs[jobKey]
	if !ok || job.Durable || len(s.triggersByJob[jobKey]) > 0 {
		return nil
	}
	s.removeJobLocked(jobKey)
	if sig := s.signaler; sig != nil {
		signals = append(signals, func() {
			sig.NotifySchedulerListenersJobDeleted(jobKey)
		})
	}
	return signals
}

func (s *RAMJobStore) RemoveTrigger(key TriggerKey) (bool, error) {
	s.mu.Lock()
	rec, ok := s.triggers[key]
	var signals []func()
	if ok {
		signals = s.removeTriggerLocked(rec, true)
	}
	s.mu.Unlock()
	runSignals(signals)
	return ok, nil
}

func (s *RAMJobStore) RemoveTriggers(keys []TriggerKey) (bool, error) {
	all := true
	for _, key := range keys {
		removed, err := s.RemoveTrigger(key)
		if err != nil {
			return false, err
		}
		all = all && removed
	}
	return all, nil
}

func (s *RAMJobStore) ReplaceTrigger(key TriggerKey, newTrigger OperableTrigger) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.triggers[key]
	if !ok {
		return false, nil
	}
	if rec.trigger.JobKey() != newTrigger.JobKey() {
		return false, WrapTriggerError("replace", key, fmt.Errorf("new trigger references a different job: %w", ErrInvalidTrigger))
	}
	s.removeTriggerLocked(rec, false)
	if err := s.storeTriggerLocked(newTrigger, false); err != nil {
		// Restore the old trigger so the store is untouched on failure.
		restoreErr := s.storeTriggerLocked(rec.trigger, false)
		if restoreErr != nil && s.logger != nil {
			s.logger.Errorf("failed to restore trigger %q after replace error: %v", key, restoreErr)
		}
		return false, err
	}
	return true, nil
}

func (s *RAMJobStore) RetrieveJob(key JobKey) (*JobDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[key]
	if !ok {
		return nil, WrapJobError("retrieve", key, ErrJobNotFound)
	}
	return job.Clone(), nil
}

func (s *RAMJobStore) RetrieveTrigger(key TriggerKey) (OperableTrigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.triggers[key]
	if !ok {
		return nil, WrapTriggerError("retrieve", key, ErrTriggerNotFound)
	}
	return rec.trigger.Clone(), nil
}

func (s *RAMJobStore) CheckJobExists(key JobKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[key]
	return ok
}

func (s *RAMJobStore) CheckTriggerExists(key TriggerKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.triggers[key]
	return ok
}

func (s *RAMJobStore) ClearAllSchedulingData() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[JobKey]*JobDetail)
	s.jobsByGroup = make(map[string]map[JobKey]*JobDetail)
	s.triggers = make(map[TriggerKey]*triggerRecord)
	s.triggersByGroup = make(map[string]map[TriggerKey]*triggerRecord)
	s.triggersByJob = make(map[JobKey]map[TriggerKey]*triggerRecord)
	s.readySet = nil
	s.calendars = make(map[string]Calendar)
	s.pausedTriggerGroups = make(map[string]struct{})
	s.pausedJobGroups = make(map[string]struct{})
	s.blockedJobs = make(map[JobKey]struct{})
	return nil
}

// ---- calendars ----

func (s *RAMJobStore) StoreCalendar(name string, cal Calendar, replaceExisting, updateTriggers bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.calendars[name]
	if exists && !replaceExisting {
		return fmt.Errorf("store calendar %q: %w", name, ErrCalendarAlreadyExists)
	}
	clone := cal.Clone()
	s.calendars[name] = clone

	if !exists || !updateTriggers {
		return nil
	}
	for _, rec := range s.triggers {
		if rec.trigger.CalendarName() != name {
			continue
		}
		if rec.heapIndex >= 0 {
			heap.Remove(&s.readySet, rec.heapIndex)
		}
		rec.trigger.UpdateWithNewCalendar(clone, s.misfireThreshold)
		if rec.state == stateWaiting && !rec.trigger.NextFireTime().IsZero() {
			heap.Push(&s.readySet, rec)
		}
	}
	return nil
}

func (s *RAMJobStore) RemoveCalendar(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.calendars[name]; !ok {
		return false, nil
	}
	for _, rec := range s.triggers {
		if rec.trigger.CalendarName() == name {
			return false, fmt.Errorf("remove calendar %q: %w", name, ErrCalendarInUse)
		}
	}
	delete(s.calendars, name)
	return true, nil
}

func (s *RAMJobStore) RetrieveCalendar(name string) (Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, ok := s.calendars[name]
	if !ok {
		return nil, fmt.Errorf("retrieve calendar %q: %w", name, ErrCalendarNotFound)
	}
	return cal.Clone(), nil
}

func (s *RAMJobStore) CalendarNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.calendars))
	for name := range s.calendars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---- queries ----

func (s *RAMJobStore) NumberOfJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *RAMJobStore) NumberOfTriggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.triggers)
}

func (s *RAMJobStore) NumberOfCalendars() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calendars)
}

// matchedTriggerGroupsLocked resolves a group matcher against the trigger
// group index: EQUALS goes straight to the map, other operators scan
// group names.
func (s *RAMJobStore) matchedTriggerGroupsLocked(matcher GroupMatcher) []string {
	if matcher.Operator == OpEquals {
		return []string{matcher.CompareTo}
	}
	var groups []string
	for group := range s.triggersByGroup {
		if matcher.Operator.Evaluate(group, matcher.CompareTo) {
			groups = append(groups, group)
		}
	}
	sort.Strings(groups)
	return groups
}

func (s *RAMJobStore) matchedJobGroupsLocked(matcher GroupMatcher) []string {
	if matcher.Operator == OpEquals {
		return []string{matcher.CompareTo}
	}
	var groups []string
	for group := range s.jobsByGroup {
		if matcher.Operator.Evaluate(group, matcher.CompareTo) {
			groups = append(groups, group)
		}
	}
	sort.Strings(groups)
	return groups
}

func (s *RAMJobStore) JobKeys(matcher GroupMatcher) []JobKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []JobKey
	for _, group := range s.matchedJobGroupsLocked(matcher) {
		for key := range s.jobsByGroup[group] {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j].Key) })
	return keys
}

func (s *RAMJobStore) TriggerKeys(matcher GroupMatcher) []TriggerKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []TriggerKey
	for _, group := range s.matchedTriggerGroupsLocked(matcher) {
		for key := range s.triggersByGroup[group] {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j].Key) })
	return keys
}

func (s *RAMJobStore) JobGroupNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make([]string, 0, len(s.jobsByGroup))
	for group := range s.jobsByGroup {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

func (s *RAMJobStore) TriggerGroupNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make([]string, 0, len(s.triggersByGroup))
	for group := range s.triggersByGroup {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

func (s *RAMJobStore) triggersForJobLocked(key JobKey) []*triggerRecord {
	recs := make([]*triggerRecord, 0, len(s.triggersByJob[key]))
	for _, rec := range s.triggersByJob[key] {
		recs = append(recs, rec)
	}
	return recs
}

func (s *RAMJobStore) TriggersForJob(key JobKey) []OperableTrigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.triggersForJobLocked(key)
	out := make([]OperableTrigger, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.trigger.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key().Key) })
	return out
}

func (s *RAMJobStore) TriggerState(key TriggerKey) TriggerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.triggers[key]
	if !ok {
		return StateNone
	}
	switch rec.state {
	case stateWaiting, stateAcquired:
		return StateNormal
	case statePaused, statePausedBlocked:
		return StatePaused
	case stateBlocked:
		return StateBlocked
	case stateComplete:
		return StateComplete
	case stateError:
		return StateError
	}
	return StateNone
}

// ---- pause / resume ----

func (s *RAMJobStore) PauseTrigger(key TriggerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.triggers[key]
	if !ok {
		return WrapTriggerError("pause", key, ErrTriggerNotFound)
	}
	s.pauseTriggerLocked(rec)
	return nil
}

func (s *RAMJobStore) pauseTriggerLocked(rec *triggerRecord) {
	switch rec.state {
	case stateComplete, statePaused, statePausedBlocked:
		return
	case stateBlocked:
		rec.state = statePausedBlocked
	default:
		rec.state = statePaused
	}
	if rec.heapIndex >= 0 {
		heap.Remove(&s.readySet, rec.heapIndex)
	}
}

func (s *RAMJobStore) PauseTriggers(matcher GroupMatcher) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.matchedTriggerGroupsLocked(matcher)
	for _, group := range groups {
		s.pausedTriggerGroups[group] = struct{}{}
		for _, rec := range s.triggersByGroup[group] {
			s.pauseTriggerLocked(rec)
		}
	}
	return groups, nil
}

func (s *RAMJobStore) PauseJob(key JobKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.triggersForJobLocked(key) {
		s.pauseTriggerLocked(rec)
	}
	return nil
}

func (s *RAMJobStore) PauseJobs(matcher GroupMatcher) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.matchedJobGroupsLocked(matcher)
	for _, group := range groups {
		s.pausedJobGroups[group] = struct{}{}
		for jobKey := range s.jobsByGroup[group] {
			for _, rec := range s.triggersForJobLocked(jobKey) {
				s.pauseTriggerLocked(rec)
			}
		}
	}
	return groups, nil
}

func (s *RAMJobStore) ResumeTrigger(key TriggerKey) error {
	s.mu.Lock()
	rec, ok := s.triggers[key]
	var signals []func()
	if ok {
		signals = s.resumeTriggerLocked(rec)
	}
	s.mu.Unlock()
	runSignals(signals)
	if !ok {
		return WrapTriggerError("resume", key, ErrTriggerNotFound)
	}
	return nil
}

func (s *RAMJobStore) resumeTriggerLocked(rec *triggerRecord) (signals []func()) {
	if rec.state != statePaused && rec.state != statePausedBlocked {
		return nil
	}
	if _, blocked := s.blockedJobs[rec.trigger.JobKey()]; blocked {
		rec.state = stateBlocked
	} else {
		rec.state = stateWaiting
	}
	_, signals = s.applyMisfireLocked(rec)
	if rec.state == stateWaiting && rec.heapIndex < 0 && !rec.trigger.NextFireTime().IsZero() {
		heap.Push(&s.readySet, rec)
	}
	return signals
}

func (s *RAMJobStore) ResumeTriggers(matcher GroupMatcher) ([]string, error) {
	s.mu.Lock()
	groups := s.matchedTriggerGroupsLocked(matcher)
	var signals []func()
	for _, group := range groups {
		delete(s.pausedTriggerGroups, group)
		for _, rec := range s.triggersByGroup[group] {
			if _, jobPaused := s.pausedJobGroups[rec.trigger.JobKey().Group]; jobPaused {
				continue
			}
			signals = append(signals, s.resumeTriggerLocked(rec)...)
		}
	}
	s.mu.Unlock()
	runSignals(signals)
	return groups, nil
}

func (s *RAMJobStore) ResumeJob(key JobKey) error {
	s.mu.Lock()
	var signals []func()
	for _, rec := range s.triggersForJobLocked(key) {
		signals = append(signals, s.resumeTriggerLocked(rec)...)
	}
	s.mu.Unlock()
	runSignals(signals)
	return nil
}

func (s *RAMJobStore) ResumeJobs(matcher GroupMatcher) ([]string, error) {
	s.mu.Lock()
	groups := s.matchedJobGroupsLocked(matcher)
	var signals []func()
	for _, group := range groups {
		delete(s.pausedJobGroups, group)
		for jobKey := range s.jobsByGroup[group] {
			for _, rec := range s.triggersForJobLocked(jobKey) {
				if _, triggerPaused := s.pausedTriggerGroups[rec.trigger.Key().Group]; triggerPaused {
					continue
				}
				signals = append(signals, s.resumeTriggerLocked(rec)...)
			}
		}
	}
	s.mu.Unlock()
	runSignals(signals)
	return groups, nil
}

func (s *RAMJobStore) PauseAll() error {
	_, err := s.PauseTriggers(AnyGroup())
	return err
}

func (s *RAMJobStore) ResumeAll() error {
	s.mu.Lock()
	s.pausedJobGroups = make(map[string]struct{})
	s.mu.Unlock()
	_, err := s.ResumeTriggers(AnyGroup())
	return err
}

func (s *RAMJobStore) PausedTriggerGroups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make([]string, 0, len(s.pausedTriggerGroups))
	for group := range s.pausedTriggerGroups {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// ---- acquire / fire / complete ----

func (s *RAMJobStore) nextFireInstanceID() string {
	return strconv.FormatInt(atomic.AddInt64(&s.fireCounter, 1), 10)
}

// applyMisfireLocked runs the misfire policy when the trigger's fire time
// slipped past the threshold. It reports whether a misfire was handled
// and returns listener signals for delivery outside the lock.
func (s *RAMJobStore) applyMisfireLocked(rec *triggerRecord) (misfired bool, signals []func()) {
	misfireTime := time.Now()
	if s.misfireThreshold > 0 {
		misfireTime = misfireTime.Add(-s.misfireThreshold)
	}
	next := rec.trigger.NextFireTime()
	if next.IsZero() || next.After(misfireTime) ||
		rec.trigger.MisfireInstruction() == MisfireInstructionIgnoreMisfirePolicy {
		return false, nil
	}

	var cal Calendar
	if name := rec.trigger.CalendarName(); name != "" {
		cal = s.calendars[name]
	}

	sig := s.signaler
	if sig != nil {
		clone := rec.trigger.Clone()
		signals = append(signals, func() {
			sig.NotifyTriggerListenersMisfired(clone)
		})
	}

	rec.trigger.UpdateAfterMisfire(cal)

	if rec.trigger.NextFireTime().IsZero() {
		rec.state = stateComplete
		if rec.heapIndex >= 0 {
			heap.Remove(&s.readySet, rec.heapIndex)
		}
		if sig != nil {
			clone := rec.trigger.Clone()
			signals = append(signals, func() {
				sig.NotifySchedulerListenersFinalized(clone)
			})
		}
	}
	return true, signals
}

func (s *RAMJobStore) AcquireNextTriggers(noLaterThan time.Time, maxCount int, timeWindow time.Duration) []OperableTrigger {
	s.mu.Lock()

	var (
		acquired     []OperableTrigger
		setAside     []*triggerRecord
		batchJobKeys map[JobKey]struct{}
		signals      []func()
		batchEnd     = noLaterThan
	)

	for s.readySet.Len() > 0 && len(acquired) < maxCount {
		rec := heap.Pop(&s.readySet).(*triggerRecord)

		next := rec.trigger.NextFireTime()
		if next.IsZero() {
			continue
		}

		if misfired, misfireSignals := s.applyMisfireLocked(rec); misfired {
			signals = append(signals, misfireSignals...)
			if rec.state == stateComplete || rec.trigger.NextFireTime().IsZero() {
				continue
			}
			heap.Push(&s.readySet, rec)
			continue
		}

		if rec.trigger.NextFireTime().After(batchEnd) {
			heap.Push(&s.readySet, rec)
			break
		}

		// One trigger per concurrency-restricted job per batch.
		jobKey := rec.trigger.JobKey()
		if job := s.jobs[jobKey]; job != nil && job.ConcurrentExecutionDisallowed {
			if batchJobKeys == nil {
				batchJobKeys = make(map[JobKey]struct{})
			}
			if _, taken := batchJobKeys[jobKey]; taken {
				setAside = append(setAside, rec)
				continue
			}
			batchJobKeys[jobKey] = struct{}{}
		}

		rec.state = stateAcquired
		rec.trigger.setFireInstanceID(s.nextFireInstanceID())
		acquired = append(acquired, rec.trigger.Clone())

		if len(acquired) == 1 {
			now := time.Now()
			first := rec.trigger.NextFireTime()
			if now.After(first) {
				first = now
			}
			batchEnd = first.Add(timeWindow)
			if batchEnd.Before(noLaterThan) {
				batchEnd = noLaterThan
			}
		}
	}

	for _, rec := range setAside {
		heap.Push(&s.readySet, rec)
	}

	s.mu.Unlock()
	runSignals(signals)
	return acquired
}

func (s *RAMJobStore) ReleaseAcquiredTrigger(trigger OperableTrigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.triggers[trigger.Key()]
	if !ok || rec.state != stateAcquired {
		return
	}
	rec.state = stateWaiting
	if rec.heapIndex < 0 && !rec.trigger.NextFireTime().IsZero() {
		heap.Push(&s.readySet, rec)
	}
}

func (s *RAMJobStore) TriggersFired(triggers []OperableTrigger) []TriggerFiredResult {
	s.mu.Lock()

	results := make([]TriggerFiredResult, 0, len(triggers))
	for _, trigger := range triggers {
		rec, ok := s.triggers[trigger.Key()]
		if !ok || rec.state != stateAcquired {
			results = append(results, TriggerFiredResult{})
			continue
		}

		var cal Calendar
		if name := rec.trigger.CalendarName(); name != "" {
			cal = s.calendars[name]
			if cal == nil {
				results = append(results, TriggerFiredResult{})
				continue
			}
		}

		prevFireTime := rec.trigger.PreviousFireTime()
		scheduledFireTime := rec.trigger.NextFireTime()

		rec.trigger.Triggered(cal)
		trigger.Triggered(cal)
		rec.state = stateWaiting

		job := s.jobs[rec.trigger.JobKey()]
		bundle := &TriggerFiredBundle{
			JobDetail:         job.Clone(),
			Trigger:           rec.trigger.Clone(),
			Calendar:          cal,
			FireTime:          time.Now(),
			ScheduledFireTime: scheduledFireTime,
			PrevFireTime:      prevFireTime,
			NextFireTime:      rec.trigger.NextFireTime(),
		}

		if job.ConcurrentExecutionDisallowed {
			for _, other := range s.triggersForJobLocked(job.Key) {
				switch other.state {
				case stateWaiting:
					other.state = stateBlocked
				case statePaused:
					other.state = statePausedBlocked
				}
				if other.heapIndex >= 0 {
					heap.Remove(&s.readySet, other.heapIndex)
				}
			}
			s.blockedJobs[job.Key] = struct{}{}
		} else if !rec.trigger.NextFireTime().IsZero() && rec.heapIndex < 0 {
			heap.Push(&s.readySet, rec)
		}

		results = append(results, TriggerFiredResult{Bundle: bundle})
	}

	s.mu.Unlock()
	return results
}

func (s *RAMJobStore) TriggeredJobComplete(trigger OperableTrigger, jobDetail *JobDetail, instruction CompletedExecutionInstruction) {
	s.mu.Lock()
	var signals []func()

	rec := s.triggers[trigger.Key()]
	job, jobExists := s.jobs[jobDetail.Key]

	if jobExists {
		if job.PersistJobDataAfterExecution && jobDetail.JobData != nil {
			data := jobDetail.JobData.Clone()
			data.ClearDirtyFlag()
			job.JobData = data
		}
		if job.ConcurrentExecutionDisallowed {
			delete(s.blockedJobs, job.Key)
			for _, other := range s.triggersForJobLocked(job.Key) {
				switch other.state {
				case stateBlocked:
					other.state = stateWaiting
					if other.heapIndex < 0 && !other.trigger.NextFireTime().IsZero() {
						heap.Push(&s.readySet, other)
					}
				case statePausedBlocked:
					other.state = statePaused
				}
			}
			signals = append(signals, s.signalChangeFn(time.Time{}))
		}
	} else {
		delete(s.blockedJobs, jobDetail.Key)
	}

	if rec != nil {
		switch instruction {
		case InstructionNoop, InstructionReExecuteJob:
			// The scheduler handles re-execution; no state change here.
		case InstructionDeleteTrigger:
			// A job may have rescheduled its own trigger while running; in
			// that case the stored copy has a next fire time even though
			// the executing copy does not, and the trigger survives.
			if trigger.NextFireTime().IsZero() {
				if rec.trigger.NextFireTime().IsZero() {
					signals = append(signals, s.removeTriggerLocked(rec, true)...)
				}
			} else {
				signals = append(signals, s.removeTriggerLocked(rec, true)...)
				signals = append(signals, s.signalChangeFn(time.Time{}))
			}
		case InstructionSetTriggerComplete:
			rec.state = stateComplete
			if rec.heapIndex >= 0 {
				heap.Remove(&s.readySet, rec.heapIndex)
			}
			signals = append(signals, s.signalChangeFn(time.Time{}))
		case InstructionSetTriggerError:
			rec.state = stateError
			if rec.heapIndex >= 0 {
				heap.Remove(&s.readySet, rec.heapIndex)
			}
			signals = append(signals, s.signalChangeFn(time.Time{}))
		case InstructionSetAllJobTriggersComplete:
			for _, other := range s.triggersForJobLocked(jobDetail.Key) {
				other.state = stateComplete
				if other.heapIndex >= 0 {
					heap.Remove(&s.readySet, other.heapIndex)
				}
			}
			signals = append(signals, s.signalChangeFn(time.Time{}))
		case InstructionSetAllJobTriggersError:
			for _, other := range s.triggersForJobLocked(jobDetail.Key) {
				other.state = stateError
				if other.heapIndex >= 0 {
					heap.Remove(&s.readySet, other.heapIndex)
				}
			}
			signals = append(signals, s.signalChangeFn(time.Time{}))
		}
	}

	s.mu.Unlock()
	runSignals(signals)
}

func (s *RAMJobStore) signalChangeFn(candidate time.Time) func() {
	sig := s.signaler
	return func() {
		if sig != nil {
			sig.SignalSchedulingChange(candidate)
		}
	}
}
