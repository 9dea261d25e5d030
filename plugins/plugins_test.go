package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/quartzite/core"
)

type nopLogger struct{}

func (nopLogger) Criticalf(string, ...any) {}
func (nopLogger) Debugf(string, ...any)    {}
func (nopLogger) Errorf(string, ...any)    {}
func (nopLogger) Noticef(string, ...any)   {}
func (nopLogger) Warningf(string, ...any)  {}

func newPluginScheduler(t *testing.T) *core.Scheduler {
	t.Helper()
	sched, err := core.NewScheduler(core.SchedulerConfig{InstanceName: "PluginTest"}, nopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown(false) })
	return sched
}

func executionContext(t *testing.T, jobName string) *core.JobExecutionContext {
	t.Helper()
	jobKey := core.NewJobKey(jobName)
	return &core.JobExecutionContext{
		Scheduler:  newPluginScheduler(t),
		JobDetail:  core.NewJobDetail(jobKey, "noop"),
		Trigger:    core.NewOneShotTrigger(core.NewTriggerKey(jobName+"-trigger"), jobKey, time.Now()),
		FireTime:   time.Date(2024, time.April, 2, 9, 30, 0, 0, time.UTC),
		JobRunTime: 125 * time.Millisecond,
	}
}

func TestRegistryUnknownClass(t *testing.T) {
	t.Parallel()

	_, err := New("nosuch", "p1", nil, nopLogger{})
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestRegistryClasses(t *testing.T) {
	t.Parallel()

	classes := Classes()
	assert.Contains(t, classes, "mail")
	assert.Contains(t, classes, "webhook")
}

func TestMailFactoryValidation(t *testing.T) {
	t.Parallel()

	_, err := New("mail", "m", map[string]any{"email-to": "a@b.c", "email-from": "c@b.a"}, nopLogger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp-host")

	p, err := New("mail", "m", map[string]any{
		"smtp-host":  "mail.example.com",
		"email-to":   "ops@example.com",
		"email-from": "quartzite@example.com",
	}, nopLogger{})
	require.NoError(t, err)

	mp, ok := p.(*MailPlugin)
	require.True(t, ok)
	assert.Equal(t, "mail:m", mp.Name())
	assert.Equal(t, 587, mp.cfg.SMTPPort)
}

func TestMailPluginDelivery(t *testing.T) {
	t.Parallel()

	p, err := New("mail", "alerts", map[string]any{
		"smtp-host":  "mail.example.com",
		"email-to":   "ops@example.com",
		"email-from": "quartzite@example.com",
	}, nopLogger{})
	require.NoError(t, err)

	mp := p.(*MailPlugin)
	var mu sync.Mutex
	var sent []*mail.Message
	mp.send = func(msg *mail.Message) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, msg)
		return nil
	}

	ctx := executionContext(t, "backup")
	mp.JobWasExecuted(ctx, errors.New("disk full"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	subject := sent[0].GetHeader("Subject")
	require.Len(t, subject, 1)
	assert.Contains(t, subject[0], "[PluginTest]")
	assert.Contains(t, subject[0], "backup")
	assert.Contains(t, subject[0], "failed")
	assert.Equal(t, []string{"ops@example.com"}, sent[0].GetHeader("To"))
}

func TestMailPluginOnlyOnError(t *testing.T) {
	t.Parallel()

	p, err := New("mail", "alerts", map[string]any{
		"smtp-host":          "mail.example.com",
		"email-to":           "ops@example.com",
		"email-from":         "quartzite@example.com",
		"mail-only-on-error": true,
	}, nopLogger{})
	require.NoError(t, err)

	mp := p.(*MailPlugin)
	sent := 0
	mp.send = func(*mail.Message) error { sent++; return nil }

	ctx := executionContext(t, "cleanup")
	mp.JobWasExecuted(ctx, nil)
	assert.Equal(t, 0, sent)

	mp.JobWasExecuted(ctx, errors.New("boom"))
	assert.Equal(t, 1, sent)
}

func TestMailPluginSendFailureIsLogged(t *testing.T) {
	t.Parallel()

	p, err := New("mail", "alerts", map[string]any{
		"smtp-host":  "mail.example.com",
		"email-to":   "ops@example.com",
		"email-from": "quartzite@example.com",
	}, nopLogger{})
	require.NoError(t, err)

	mp := p.(*MailPlugin)
	mp.send = func(*mail.Message) error { return fmt.Errorf("smtp unreachable") }

	// a failing delivery must not propagate out of the listener
	assert.NotPanics(t, func() { mp.JobWasExecuted(executionContext(t, "report"), nil) })
}

func TestWebhookFactoryValidation(t *testing.T) {
	t.Parallel()

	_, err := New("webhook", "w", nil, nopLogger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")

	p, err := New("webhook", "w", map[string]any{"url": "https://example.com/hook"}, nopLogger{})
	require.NoError(t, err)

	wp, ok := p.(*WebhookPlugin)
	require.True(t, ok)
	assert.Equal(t, "webhook:w", wp.Name())
	assert.Equal(t, 5, wp.cfg.TimeoutSeconds)
	assert.Equal(t, float64(5), wp.cfg.RatePerSecond)
	assert.Equal(t, 10, wp.cfg.Burst)
}

func TestWebhookPluginDelivery(t *testing.T) {
	t.Parallel()

	type captured struct {
		body        []byte
		contentType string
		deliveryID  string
	}
	var mu sync.Mutex
	var got []captured

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			body:        body,
			contentType: r.Header.Get("Content-Type"),
			deliveryID:  r.Header.Get("X-Delivery-ID"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	p, err := New("webhook", "hooks", map[string]any{"url": srv.URL}, nopLogger{})
	require.NoError(t, err)
	wp := p.(*WebhookPlugin)

	ctx := executionContext(t, "export")
	wp.JobWasExecuted(ctx, errors.New("boom"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "application/json", got[0].contentType)
	assert.NotEmpty(t, got[0].deliveryID)

	var event webhookEvent
	require.NoError(t, json.Unmarshal(got[0].body, &event))
	assert.Equal(t, "job_failed", event.Event)
	assert.Equal(t, "boom", event.Error)
	assert.Equal(t, ctx.JobDetail.Key.String(), event.JobKey)
	assert.Equal(t, ctx.Trigger.Key().String(), event.TriggerKey)
	assert.Equal(t, got[0].deliveryID, event.DeliveryID)
	assert.Equal(t, "PluginTest", event.Scheduler)
	assert.False(t, event.Timestamp.IsZero())
}

func TestWebhookPluginOnlyOnError(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	deliveries := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)

	p, err := New("webhook", "hooks", map[string]any{"url": srv.URL, "only-on-error": true}, nopLogger{})
	require.NoError(t, err)
	wp := p.(*WebhookPlugin)

	ctx := executionContext(t, "sync")
	wp.JobWasExecuted(ctx, nil)
	wp.JobWasExecuted(ctx, errors.New("boom"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, deliveries)
}

func TestWebhookPluginRateLimitDropsExcess(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	deliveries := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)

	p, err := New("webhook", "hooks", map[string]any{
		"url":             srv.URL,
		"rate-per-second": 1,
		"burst":           1,
	}, nopLogger{})
	require.NoError(t, err)
	wp := p.(*WebhookPlugin)

	wp.SchedulerStarted()
	wp.SchedulerStarted()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, deliveries)
}

func TestWebhookPluginAttachesLifecycleListener(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	events := make([]string, 0, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event webhookEvent
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &event); err == nil {
			mu.Lock()
			events = append(events, event.Event)
			mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)

	p, err := New("webhook", "hooks", map[string]any{"url": srv.URL, "lifecycle-events": true}, nopLogger{})
	require.NoError(t, err)

	sched := newPluginScheduler(t)
	require.NoError(t, p.Attach(sched))
	require.NoError(t, sched.Start())
	require.NoError(t, sched.Standby())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, events, "scheduler_started")
	assert.Contains(t, events, "scheduler_standby")
}
