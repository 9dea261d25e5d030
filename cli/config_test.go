package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Criticalf(string, ...any) {}
func (nopLogger) Debugf(string, ...any)    {}
func (nopLogger) Errorf(string, ...any)    {}
func (nopLogger) Noticef(string, ...any)   {}
func (nopLogger) Warningf(string, ...any)  {}

func TestBuildFromStringDefaults(t *testing.T) {
	t.Parallel()

	c, err := BuildFromString("", nopLogger{})
	require.NoError(t, err)

	assert.Equal(t, "QuartziteScheduler", c.Scheduler.InstanceName)
	assert.Equal(t, "NON_CLUSTERED", c.Scheduler.InstanceID)
	assert.Equal(t, 30000, c.Scheduler.IdleWaitTime)
	assert.Equal(t, 1, c.Scheduler.BatchMaxCount)
	assert.Equal(t, 0, c.Scheduler.BatchTimeWindow)
	assert.True(t, c.Scheduler.WaitOnShutdown)
	assert.Equal(t, "WorkerPool", c.ThreadPool.Class)
	assert.Equal(t, 10, c.ThreadPool.ThreadCount)
	assert.Equal(t, "RAMJobStore", c.JobStore.Class)
	assert.Equal(t, 5000, c.JobStore.MisfireThreshold)
	assert.False(t, c.EnableMetrics)
	assert.Empty(t, c.Plugins)
}

func TestBuildFromStringFullFile(t *testing.T) {
	t.Parallel()

	c, err := BuildFromString(`
[scheduler]
instanceName = Reporting
instanceId = node-1
idleWaitTime = 5000
batchTriggerAcquisitionMaxCount = 4
batchTriggerAcquisitionFireAheadTimeWindow = 250
waitOnShutdown = false

[threadPool]
threadCount = 25

[jobStore]
misfireThreshold = 60000

[metrics]
enabled = true

[plugin.mailer]
class = mail
smtp-host = mail.example.com
email-to = ops@example.com
email-from = quartzite@example.com

[plugin "hooks"]
class = webhook
url = https://hooks.example.com/jobs
`, nopLogger{})
	require.NoError(t, err)

	assert.Equal(t, "Reporting", c.Scheduler.InstanceName)
	assert.Equal(t, "node-1", c.Scheduler.InstanceID)
	assert.Equal(t, 5000, c.Scheduler.IdleWaitTime)
	assert.Equal(t, 4, c.Scheduler.BatchMaxCount)
	assert.Equal(t, 250, c.Scheduler.BatchTimeWindow)
	assert.False(t, c.Scheduler.WaitOnShutdown)
	assert.Equal(t, 25, c.ThreadPool.ThreadCount)
	assert.Equal(t, 60000, c.JobStore.MisfireThreshold)

	assert.True(t, c.EnableMetrics)
	assert.Equal(t, ":9090", c.MetricsAddr)

	// both `[plugin.name]` and `[plugin "name"]` spellings are accepted
	require.Contains(t, c.Plugins, "mailer")
	assert.Equal(t, "mail", c.Plugins["mailer"].Class)
	assert.Equal(t, "mail.example.com", c.Plugins["mailer"].Settings["smtp-host"])
	require.Contains(t, c.Plugins, "hooks")
	assert.Equal(t, "webhook", c.Plugins["hooks"].Class)
	assert.NotContains(t, c.Plugins["hooks"].Settings, "class")
}

func TestBuildFromStringValidation(t *testing.T) {
	t.Parallel()

	_, err := BuildFromString("[threadPool]\nthreadCount = 600\n", nopLogger{})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = BuildFromString("[jobStore]\nmisfireThreshold = -5\n", nopLogger{})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = BuildFromString("[scheduler]\nidleWaitTime = -1\n", nopLogger{})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestBuildFromStringNamedSectionNeedsClass(t *testing.T) {
	t.Parallel()

	_, err := BuildFromString("[plugin.broken]\nurl = https://example.com\n", nopLogger{})
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, err.Error(), "class")
}

func TestBuildFromStringListenerSections(t *testing.T) {
	t.Parallel()

	c, err := BuildFromString(`
[jobListener.audit]
class = webhook
url = https://audit.example.com

[triggerListener.trace]
class = webhook
url = https://trace.example.com
`, nopLogger{})
	require.NoError(t, err)

	require.Contains(t, c.JobListeners, "audit")
	assert.Equal(t, "webhook", c.JobListeners["audit"].Class)
	require.Contains(t, c.TriggerListeners, "trace")
}

func TestSchedulerConfigConversion(t *testing.T) {
	t.Parallel()

	c, err := BuildFromString(`
[scheduler]
idleWaitTime = 2000
batchTriggerAcquisitionMaxCount = 3
batchTriggerAcquisitionFireAheadTimeWindow = 100

[threadPool]
threadCount = 7

[jobStore]
misfireThreshold = 15000
`, nopLogger{})
	require.NoError(t, err)

	sc := c.SchedulerConfig()
	assert.Equal(t, "QuartziteScheduler", sc.InstanceName)
	assert.Equal(t, "NON_CLUSTERED", sc.InstanceID)
	assert.Equal(t, 2*time.Second, sc.IdleWaitTime)
	assert.Equal(t, 3, sc.MaxBatchSize)
	assert.Equal(t, 100*time.Millisecond, sc.BatchTimeWindow)
	assert.Equal(t, 7, sc.WorkerCount)
	assert.Equal(t, 15*time.Second, sc.MisfireThreshold)
}

func TestSchedulerConfigAutoInstanceID(t *testing.T) {
	t.Parallel()

	c, err := BuildFromString("[scheduler]\ninstanceId = AUTO\n", nopLogger{})
	require.NoError(t, err)

	sc := c.SchedulerConfig()
	assert.NotEmpty(t, sc.InstanceID)
	assert.False(t, strings.EqualFold(sc.InstanceID, "AUTO"))
}

func TestMetricsAddressOverride(t *testing.T) {
	t.Parallel()

	c, err := BuildFromString("[metrics]\nenabled = true\naddress = :8123\n", nopLogger{})
	require.NoError(t, err)
	assert.True(t, c.EnableMetrics)
	assert.Equal(t, ":8123", c.MetricsAddr)
}
