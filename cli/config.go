package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	defaults "github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"
	ini "gopkg.in/ini.v1"

	"github.com/netresearch/quartzite/core"
	"github.com/netresearch/quartzite/metrics"
	"github.com/netresearch/quartzite/plugins"
)

const (
	pluginSection          = "plugin"
	jobListenerSection     = "jobListener"
	triggerListenerSection = "triggerListener"
)

// SchedulerSettings is the [scheduler] section.
type SchedulerSettings struct {
	InstanceName string `mapstructure:"instanceName" default:"QuartziteScheduler"`

	// InstanceID "AUTO" generates hostname + current millis.
	InstanceID string `mapstructure:"instanceId" default:"NON_CLUSTERED"`

	// IdleWaitTime (millis) bounds the scheduler thread's sleep between
	// empty acquisition passes.
	IdleWaitTime int `mapstructure:"idleWaitTime" default:"30000" validate:"gt=0"`

	BatchMaxCount int `mapstructure:"batchTriggerAcquisitionMaxCount" default:"1" validate:"gte=1"`

	// BatchTimeWindow (millis) lets a pass pick up triggers due shortly
	// after the first one.
	BatchTimeWindow int `mapstructure:"batchTriggerAcquisitionFireAheadTimeWindow" default:"0" validate:"gte=0"`

	MakeSchedulerThreadDaemon bool `mapstructure:"makeSchedulerThreadDaemon" default:"true"`

	// WaitOnShutdown controls whether shutdown joins in-flight jobs.
	WaitOnShutdown bool `mapstructure:"waitOnShutdown" default:"true"`

	LogLevel string `mapstructure:"logLevel"`
}

// ThreadPoolSettings is the [threadPool] section.
type ThreadPoolSettings struct {
	Class string `mapstructure:"class" default:"WorkerPool"`

	ThreadCount int `mapstructure:"threadCount" default:"10" validate:"gte=1,lte=500"`

	// ThreadPriority is accepted for compatibility; goroutines carry no
	// priority, so only the range is validated.
	ThreadPriority int `mapstructure:"threadPriority" default:"5" validate:"gte=1,lte=10"`
}

// JobStoreSettings is the [jobStore] section.
type JobStoreSettings struct {
	Class string `mapstructure:"class" default:"RAMJobStore"`

	// MisfireThreshold (millis) is how late a fire time may run before
	// the misfire policy applies.
	MisfireThreshold int `mapstructure:"misfireThreshold" default:"5000" validate:"gt=0"`
}

// NamedSection holds a plugin or listener section: the class plus its own
// free-form settings.
type NamedSection struct {
	Class    string
	Settings map[string]any
}

// Config is the decoded configuration file.
type Config struct {
	Scheduler        SchedulerSettings
	ThreadPool       ThreadPoolSettings
	JobStore         JobStoreSettings
	Plugins          map[string]*NamedSection
	JobListeners     map[string]*NamedSection
	TriggerListeners map[string]*NamedSection

	EnableMetrics bool
	MetricsAddr   string

	logger    core.Logger
	collector *metrics.Collector
}

// MetricsCollector returns the collector built by InitializeScheduler,
// nil when metrics are disabled.
func (c *Config) MetricsCollector() *metrics.Collector { return c.collector }

func NewConfig(logger core.Logger) *Config {
	c := &Config{
		Plugins:          make(map[string]*NamedSection),
		JobListeners:     make(map[string]*NamedSection),
		TriggerListeners: make(map[string]*NamedSection),
		logger:           logger,
	}
	_ = defaults.Set(c)
	return c
}

// BuildFromFile loads and decodes the ini configuration file.
func BuildFromFile(filename string, logger core.Logger) (*Config, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, filename)
	if err != nil {
		return nil, err
	}
	return buildFromIni(cfg, logger)
}

// BuildFromString decodes configuration from an in-memory string.
func BuildFromString(config string, logger core.Logger) (*Config, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true, InsensitiveKeys: true}, []byte(config))
	if err != nil {
		return nil, err
	}
	return buildFromIni(cfg, logger)
}

func buildFromIni(cfg *ini.File, logger core.Logger) (*Config, error) {
	c := NewConfig(logger)
	if err := parseIni(cfg, c); err != nil {
		return nil, err
	}
	_ = defaults.Set(c)
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}
	return c, nil
}

func parseIni(cfg *ini.File, c *Config) error {
	if sec, err := cfg.GetSection("scheduler"); err == nil {
		if err := mapstructure.WeakDecode(sectionToMap(sec), &c.Scheduler); err != nil {
			return err
		}
	}
	if sec, err := cfg.GetSection("threadPool"); err == nil {
		if err := mapstructure.WeakDecode(sectionToMap(sec), &c.ThreadPool); err != nil {
			return err
		}
	}
	if sec, err := cfg.GetSection("jobStore"); err == nil {
		if err := mapstructure.WeakDecode(sectionToMap(sec), &c.JobStore); err != nil {
			return err
		}
	}
	if sec, err := cfg.GetSection("metrics"); err == nil {
		settings := sectionToMap(sec)
		var m struct {
			Enabled bool   `mapstructure:"enabled"`
			Address string `mapstructure:"address"`
		}
		if err := mapstructure.WeakDecode(settings, &m); err != nil {
			return err
		}
		c.EnableMetrics = m.Enabled
		c.MetricsAddr = m.Address
		if c.MetricsAddr == "" {
			c.MetricsAddr = ":9090"
		}
	}

	for _, section := range cfg.Sections() {
		name := strings.TrimSpace(section.Name())
		switch {
		case strings.HasPrefix(name, pluginSection+".") || strings.HasPrefix(name, pluginSection+" "):
			entryName, entry, err := parseNamedSection(section, pluginSection)
			if err != nil {
				return err
			}
			c.Plugins[entryName] = entry
		case strings.HasPrefix(name, jobListenerSection+".") || strings.HasPrefix(name, jobListenerSection+" "):
			entryName, entry, err := parseNamedSection(section, jobListenerSection)
			if err != nil {
				return err
			}
			c.JobListeners[entryName] = entry
		case strings.HasPrefix(name, triggerListenerSection+".") || strings.HasPrefix(name, triggerListenerSection+" "):
			entryName, entry, err := parseNamedSection(section, triggerListenerSection)
			if err != nil {
				return err
			}
			c.TriggerListeners[entryName] = entry
		}
	}
	return nil
}

// parseNamedSection handles both `[plugin.name]` and `[plugin "name"]`
// spellings.
func parseNamedSection(section *ini.Section, prefix string) (string, *NamedSection, error) {
	name := strings.TrimPrefix(strings.TrimSpace(section.Name()), prefix)
	name = strings.TrimLeft(name, ". ")
	name = strings.Trim(name, "\"")
	if name == "" {
		return "", nil, fmt.Errorf("%w: section %q needs a name", ErrValidationFailed, section.Name())
	}
	settings := sectionToMap(section)
	class, _ := settings["class"].(string)
	if class == "" {
		return "", nil, fmt.Errorf("%w: section %q needs a class", ErrValidationFailed, section.Name())
	}
	delete(settings, "class")
	return name, &NamedSection{Class: class, Settings: settings}, nil
}

func sectionToMap(section *ini.Section) map[string]any {
	m := make(map[string]any)
	for _, key := range section.Keys() {
		vals := key.ValueWithShadows()
		if len(vals) > 1 {
			cp := make([]string, len(vals))
			copy(cp, vals)
			m[key.Name()] = cp
			continue
		}
		m[key.Name()] = key.Value()
	}
	return m
}

// SchedulerConfig converts the decoded sections into the engine's
// configuration, resolving AUTO instance ids.
func (c *Config) SchedulerConfig() core.SchedulerConfig {
	instanceID := c.Scheduler.InstanceID
	if strings.EqualFold(instanceID, "AUTO") {
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		instanceID = fmt.Sprintf("%s%d", host, time.Now().UnixMilli())
	}
	return core.SchedulerConfig{
		InstanceName:     c.Scheduler.InstanceName,
		InstanceID:       instanceID,
		IdleWaitTime:     time.Duration(c.Scheduler.IdleWaitTime) * time.Millisecond,
		MaxBatchSize:     c.Scheduler.BatchMaxCount,
		BatchTimeWindow:  time.Duration(c.Scheduler.BatchTimeWindow) * time.Millisecond,
		WorkerCount:      c.ThreadPool.ThreadCount,
		MisfireThreshold: time.Duration(c.JobStore.MisfireThreshold) * time.Millisecond,
	}
}

// InitializeScheduler builds the scheduler and attaches the configured
// plugins and listeners.
func (c *Config) InitializeScheduler() (*core.Scheduler, error) {
	sched, err := core.NewScheduler(c.SchedulerConfig(), c.logger)
	if err != nil {
		return nil, err
	}

	for name, entry := range c.Plugins {
		plugin, err := plugins.New(entry.Class, name, entry.Settings, c.logger)
		if err != nil {
			return nil, err
		}
		if err := plugin.Attach(sched); err != nil {
			return nil, fmt.Errorf("attach plugin %q: %w", name, err)
		}
		c.logger.Debugf("attached plugin %q (class %s)", name, entry.Class)
	}

	// Listener sections reuse the plugin registry; their classes must
	// resolve to plugins that register the matching listener kind.
	for name, entry := range c.JobListeners {
		plugin, err := plugins.New(entry.Class, name, entry.Settings, c.logger)
		if err != nil {
			return nil, err
		}
		if err := plugin.Attach(sched); err != nil {
			return nil, fmt.Errorf("attach job listener %q: %w", name, err)
		}
	}
	for name, entry := range c.TriggerListeners {
		plugin, err := plugins.New(entry.Class, name, entry.Settings, c.logger)
		if err != nil {
			return nil, err
		}
		if err := plugin.Attach(sched); err != nil {
			return nil, fmt.Errorf("attach trigger listener %q: %w", name, err)
		}
	}

	if c.EnableMetrics {
		c.collector = metrics.NewCollector()
		if err := c.collector.Attach(sched); err != nil {
			return nil, err
		}
	}
	return sched, nil
}
