package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netresearch/quartzite/core"
)

// DaemonCommand runs the scheduler as a long-lived process.
type DaemonCommand struct {
	ConfigFile  string `long:"config" env:"QUARTZITE_CONFIG" description:"configuration file" default:"/etc/quartzite/config.ini"`
	LogLevel    string `long:"log-level" env:"QUARTZITE_LOG_LEVEL" description:"Set log level (overrides config)"`
	MetricsAddr string `long:"metrics-address" env:"QUARTZITE_METRICS_ADDRESS" description:"metrics listen address (overrides config)"`

	Logger core.Logger

	scheduler     *core.Scheduler
	config        *Config
	metricsServer *http.Server
	done          chan struct{}
}

// Execute runs the daemon until SIGINT/SIGTERM.
func (c *DaemonCommand) Execute(_ []string) error {
	if err := c.boot(); err != nil {
		return err
	}
	if err := c.start(); err != nil {
		return err
	}
	return c.shutdown()
}

func (c *DaemonCommand) boot() error {
	ApplyLogLevel(c.LogLevel)

	config, err := BuildFromFile(c.ConfigFile, c.Logger)
	if err != nil {
		return fmt.Errorf("load config %q: %w", c.ConfigFile, err)
	}
	if c.LogLevel == "" {
		ApplyLogLevel(config.Scheduler.LogLevel)
	}
	if c.MetricsAddr != "" {
		config.EnableMetrics = true
		config.MetricsAddr = c.MetricsAddr
	}
	c.config = config

	c.scheduler, err = config.InitializeScheduler()
	if err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}
	c.done = make(chan struct{})
	return nil
}

func (c *DaemonCommand) start() error {
	if err := c.scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	c.Logger.Noticef("scheduler %s (%s) running, %d workers",
		c.scheduler.InstanceName(), c.scheduler.InstanceID(), c.scheduler.Metadata().WorkerCount)

	if collector := c.config.MetricsCollector(); collector != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		c.metricsServer = &http.Server{
			Addr:              c.config.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		c.Logger.Noticef("metrics server on %s", c.config.MetricsAddr)
		go func() {
			if err := c.metricsServer.ListenAndServe(); err != http.ErrServerClosed {
				c.Logger.Errorf("metrics server: %v", err)
				close(c.done)
			}
		}()
	}

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		c.Logger.Noticef("received signal %s, shutting down", sig)
		close(c.done)
	}()
	return nil
}

func (c *DaemonCommand) shutdown() error {
	<-c.done
	if c.metricsServer != nil {
		_ = c.metricsServer.Close()
	}
	return c.scheduler.Shutdown(c.config.Scheduler.WaitOnShutdown)
}
