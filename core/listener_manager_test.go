package core

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingJobListener counts callbacks per event.
type recordingJobListener struct {
	name string
	mu   sync.Mutex

	toBeExecuted int
	vetoed       int
	wasExecuted  int
	panicOn      string
}

func (l *recordingJobListener) Name() string { return l.name }

func (l *recordingJobListener) JobToBeExecuted(*JobExecutionContext) {
	l.mu.Lock()
	l.toBeExecuted++
	l.mu.Unlock()
	if l.panicOn == "JobToBeExecuted" {
		panic("listener boom")
	}
}

func (l *recordingJobListener) JobExecutionVetoed(*JobExecutionContext) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vetoed++
}

func (l *recordingJobListener) JobWasExecuted(*JobExecutionContext, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.wasExecuted++
}

// vetoingTriggerListener records VetoJobExecution calls and answers with a
// fixed verdict.
type vetoingTriggerListener struct {
	TriggerListenerSupport
	name    string
	veto    bool
	mu      sync.Mutex
	asked   int
	fired   int
	done    int
}

func (l *vetoingTriggerListener) Name() string { return l.name }

func (l *vetoingTriggerListener) TriggerFired(Trigger, *JobExecutionContext) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fired++
}

func (l *vetoingTriggerListener) VetoJobExecution(Trigger, *JobExecutionContext) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.asked++
	return l.veto
}

func (l *vetoingTriggerListener) TriggerComplete(Trigger, *JobExecutionContext, CompletedExecutionInstruction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done++
}

func testExecutionContext(jobName, triggerName string) *JobExecutionContext {
	return &JobExecutionContext{
		JobDetail: NewJobDetail(NewJobKey(jobName), "noop"),
		Trigger:   dueTrigger(triggerName, NewJobKey(jobName), time.Now()),
	}
}

func TestListenerManagerUniqueNames(t *testing.T) {
	t.Parallel()

	m := NewListenerManager(&testLogger{})

	require.NoError(t, m.AddJobListener(&recordingJobListener{name: "a"}))
	assert.ErrorIs(t, m.AddJobListener(&recordingJobListener{name: "a"}), ErrListenerExists)

	require.NoError(t, m.AddTriggerListener(&vetoingTriggerListener{name: "t"}))
	assert.ErrorIs(t, m.AddTriggerListener(&vetoingTriggerListener{name: "t"}), ErrListenerExists)

	require.NoError(t, m.RemoveJobListener("a"))
	assert.ErrorIs(t, m.RemoveJobListener("a"), ErrListenerNotFound)
	require.NoError(t, m.RemoveTriggerListener("t"))
	assert.ErrorIs(t, m.RemoveTriggerListener("t"), ErrListenerNotFound)
}

func TestListenerManagerMatcherFiltering(t *testing.T) {
	t.Parallel()

	m := NewListenerManager(&testLogger{})
	all := &recordingJobListener{name: "all"}
	onlyEtl := &recordingJobListener{name: "etl-only"}
	require.NoError(t, m.AddJobListener(all))
	require.NoError(t, m.AddJobListener(onlyEtl, GroupEquals("etl")))

	ctx := testExecutionContext("job1", "t1") // DEFAULT group
	m.notifyJobToBeExecuted(ctx)

	assert.Equal(t, 1, all.toBeExecuted)
	assert.Equal(t, 0, onlyEtl.toBeExecuted)

	etlCtx := &JobExecutionContext{
		JobDetail: NewJobDetail(NewJobKeyWithGroup("load", "etl"), "noop"),
	}
	m.notifyJobToBeExecuted(etlCtx)
	assert.Equal(t, 2, all.toBeExecuted)
	assert.Equal(t, 1, onlyEtl.toBeExecuted)
}

func TestListenerManagerVetoAggregation(t *testing.T) {
	t.Parallel()

	m := NewListenerManager(&testLogger{})
	first := &vetoingTriggerListener{name: "vetoer", veto: true}
	second := &vetoingTriggerListener{name: "bystander"}
	require.NoError(t, m.AddTriggerListener(first))
	require.NoError(t, m.AddTriggerListener(second))

	ctx := testExecutionContext("job1", "t1")
	vetoed := m.notifyAndVeto(ctx.Trigger, ctx)

	assert.True(t, vetoed)
	// every listener is consulted even after a veto
	assert.Equal(t, 1, first.asked)
	assert.Equal(t, 1, second.asked)

	m2 := NewListenerManager(&testLogger{})
	require.NoError(t, m2.AddTriggerListener(&vetoingTriggerListener{name: "quiet"}))
	assert.False(t, m2.notifyAndVeto(ctx.Trigger, ctx))
}

func TestListenerManagerPanicIsolation(t *testing.T) {
	t.Parallel()

	logger := &testLogger{}
	m := NewListenerManager(logger)
	bad := &recordingJobListener{name: "bad", panicOn: "JobToBeExecuted"}
	good := &recordingJobListener{name: "good"}
	require.NoError(t, m.AddJobListener(bad))
	require.NoError(t, m.AddJobListener(good))

	ctx := testExecutionContext("job1", "t1")
	assert.NotPanics(t, func() { m.notifyJobToBeExecuted(ctx) })

	// the panic neither propagated nor starved the other listener
	assert.Equal(t, 1, good.toBeExecuted)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.NotEmpty(t, logger.lines)
	assert.True(t, strings.Contains(logger.lines[0], "listener panic"))
}

func TestListenerManagerSchedulerFanOut(t *testing.T) {
	t.Parallel()

	m := NewListenerManager(&testLogger{})
	var started int
	listener := &funcSchedulerListener{onStarted: func() { started++ }}
	m.AddSchedulerListener(listener)
	m.AddSchedulerListener(listener)

	m.notifySchedulerListeners("SchedulerStarted", func(l SchedulerListener) { l.SchedulerStarted() })
	assert.Equal(t, 2, started)
}

// funcSchedulerListener overrides just SchedulerStarted.
type funcSchedulerListener struct {
	SchedulerListenerSupport
	onStarted func()
}

func (l *funcSchedulerListener) SchedulerStarted() {
	if l.onStarted != nil {
		l.onStarted()
	}
}
