package plugins

import (
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/netresearch/quartzite/core"
)

// MailConfig configures the mail notification plugin.
type MailConfig struct {
	SMTPHost          string `mapstructure:"smtp-host"`
	SMTPPort          int    `mapstructure:"smtp-port"`
	SMTPUser          string `mapstructure:"smtp-user"`
	SMTPPassword      string `mapstructure:"smtp-password"`
	SMTPTLSSkipVerify bool   `mapstructure:"smtp-tls-skip-verify"`
	EmailTo           string `mapstructure:"email-to"`
	EmailFrom         string `mapstructure:"email-from"`
	MailOnlyOnError   bool   `mapstructure:"mail-only-on-error"`
}

func init() {
	Register("mail", func(name string, settings map[string]any, logger core.Logger) (Plugin, error) {
		var cfg MailConfig
		if err := mapstructure.WeakDecode(settings, &cfg); err != nil {
			return nil, fmt.Errorf("plugin %q: %w", name, err)
		}
		if cfg.SMTPPort == 0 {
			cfg.SMTPPort = 587
		}
		if cfg.SMTPHost == "" || cfg.EmailTo == "" || cfg.EmailFrom == "" {
			return nil, fmt.Errorf("plugin %q: smtp-host, email-to and email-from are required", name)
		}
		return &MailPlugin{name: name, cfg: cfg, logger: logger}, nil
	})
}

// MailPlugin is a job listener that mails execution reports, by default
// only for failed runs.
type MailPlugin struct {
	core.JobListenerSupport
	name   string
	cfg    MailConfig
	logger core.Logger

	// send is swappable for tests.
	send func(msg *mail.Message) error
}

func (p *MailPlugin) Name() string { return "mail:" + p.name }

func (p *MailPlugin) Attach(s *core.Scheduler) error {
	return s.ListenerManager().AddJobListener(p)
}

func (p *MailPlugin) JobWasExecuted(ctx *core.JobExecutionContext, jobErr error) {
	if jobErr == nil && p.cfg.MailOnlyOnError {
		return
	}
	if err := p.deliver(ctx, jobErr); err != nil {
		p.logger.Errorf("mail plugin %q: delivering report for job %q: %v", p.name, ctx.JobDetail.Key, err)
	}
}

func (p *MailPlugin) deliver(ctx *core.JobExecutionContext, jobErr error) error {
	msg := mail.NewMessage()
	msg.SetHeader("From", p.cfg.EmailFrom)
	msg.SetHeader("To", p.cfg.EmailTo)

	status := "succeeded"
	if jobErr != nil {
		status = "failed"
	}
	msg.SetHeader("Subject", fmt.Sprintf("[%s] job %s %s",
		ctx.Scheduler.InstanceName(), ctx.JobDetail.Key, status))

	body := fmt.Sprintf("Job: %s\nTrigger: %s\nFired: %s\nRuntime: %s\n",
		ctx.JobDetail.Key, ctx.Trigger.Key(), ctx.FireTime.Format("2006-01-02 15:04:05"), ctx.JobRunTime)
	if jobErr != nil {
		body += fmt.Sprintf("Error: %v\n", jobErr)
	}
	msg.SetBody("text/plain", body)

	if p.send != nil {
		return p.send(msg)
	}
	dialer := mail.NewDialer(p.cfg.SMTPHost, p.cfg.SMTPPort, p.cfg.SMTPUser, p.cfg.SMTPPassword)
	if p.cfg.SMTPTLSSkipVerify {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- opt-in via config
	}
	return dialer.DialAndSend(msg)
}
