package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/time/rate"

	"github.com/netresearch/quartzite/core"
)

// WebhookConfig configures the webhook notification plugin.
type WebhookConfig struct {
	URL             string `mapstructure:"url"`
	OnlyOnError     bool   `mapstructure:"only-on-error"`
	TimeoutSeconds  int    `mapstructure:"timeout-seconds"`
	RatePerSecond   float64 `mapstructure:"rate-per-second"`
	Burst           int    `mapstructure:"burst"`
	LifecycleEvents bool   `mapstructure:"lifecycle-events"`
}

func init() {
	Register("webhook", func(name string, settings map[string]any, logger core.Logger) (Plugin, error) {
		var cfg WebhookConfig
		if err := mapstructure.WeakDecode(settings, &cfg); err != nil {
			return nil, fmt.Errorf("plugin %q: %w", name, err)
		}
		if cfg.URL == "" {
			return nil, fmt.Errorf("plugin %q: url is required", name)
		}
		if cfg.TimeoutSeconds <= 0 {
			cfg.TimeoutSeconds = 5
		}
		if cfg.RatePerSecond <= 0 {
			cfg.RatePerSecond = 5
		}
		if cfg.Burst <= 0 {
			cfg.Burst = 10
		}
		return &WebhookPlugin{
			name:    name,
			cfg:     cfg,
			logger:  logger,
			client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
			limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		}, nil
	})
}

// webhookEvent is the JSON payload POSTed for each delivery.
type webhookEvent struct {
	DeliveryID string    `json:"delivery_id"`
	Scheduler  string    `json:"scheduler,omitempty"`
	Event      string    `json:"event"`
	JobKey     string    `json:"job_key,omitempty"`
	TriggerKey string    `json:"trigger_key,omitempty"`
	FireTime   time.Time `json:"fire_time,omitempty"`
	Runtime    string    `json:"runtime,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// WebhookPlugin POSTs job outcomes (and optionally scheduler lifecycle
// events) as JSON. Deliveries are rate limited; excess events are dropped
// with a log line rather than queued without bound.
type WebhookPlugin struct {
	core.JobListenerSupport
	core.SchedulerListenerSupport
	name    string
	cfg     WebhookConfig
	logger  core.Logger
	client  *http.Client
	limiter *rate.Limiter
}

func (p *WebhookPlugin) Name() string { return "webhook:" + p.name }

func (p *WebhookPlugin) Attach(s *core.Scheduler) error {
	if err := s.ListenerManager().AddJobListener(p); err != nil {
		return err
	}
	if p.cfg.LifecycleEvents {
		s.ListenerManager().AddSchedulerListener(p)
	}
	return nil
}

func (p *WebhookPlugin) JobWasExecuted(ctx *core.JobExecutionContext, jobErr error) {
	if jobErr == nil && p.cfg.OnlyOnError {
		return
	}
	event := webhookEvent{
		Scheduler:  ctx.Scheduler.InstanceName(),
		Event:      "job_executed",
		JobKey:     ctx.JobDetail.Key.String(),
		TriggerKey: ctx.Trigger.Key().String(),
		FireTime:   ctx.FireTime,
		Runtime:    ctx.JobRunTime.String(),
	}
	if jobErr != nil {
		event.Event = "job_failed"
		event.Error = jobErr.Error()
	}
	p.post(event)
}

func (p *WebhookPlugin) SchedulerStarting() {
	p.post(webhookEvent{Event: "scheduler_starting"})
}

func (p *WebhookPlugin) SchedulerStarted() {
	p.post(webhookEvent{Event: "scheduler_started"})
}

func (p *WebhookPlugin) SchedulerShuttingDown() {
	p.post(webhookEvent{Event: "scheduler_shutting_down"})
}

func (p *WebhookPlugin) SchedulerInStandbyMode() {
	p.post(webhookEvent{Event: "scheduler_standby"})
}

func (p *WebhookPlugin) SchedulerShutdown() {
	p.post(webhookEvent{Event: "scheduler_shutdown"})
}

func (p *WebhookPlugin) SchedulerError(msg string, err error) {
	p.post(webhookEvent{Event: "scheduler_error", Error: fmt.Sprintf("%s: %v", msg, err)})
}

func (p *WebhookPlugin) post(event webhookEvent) {
	if !p.limiter.Allow() {
		p.logger.Warningf("webhook plugin %q: rate limit exceeded, dropping %s event", p.name, event.Event)
		return
	}
	event.DeliveryID = uuid.NewString()
	event.Timestamp = time.Now().UTC()

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Errorf("webhook plugin %q: encoding event: %v", p.name, err)
		return
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		p.logger.Errorf("webhook plugin %q: building request: %v", p.name, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", event.DeliveryID)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Errorf("webhook plugin %q: delivery %s: %v", p.name, event.DeliveryID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		p.logger.Errorf("webhook plugin %q: delivery %s: unexpected status %d", p.name, event.DeliveryID, resp.StatusCode)
		return
	}
	p.logger.Debugf("webhook plugin %q: delivered %s event (%s)", p.name, event.Event, event.DeliveryID)
}
