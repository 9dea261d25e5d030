// Package metrics collects scheduler counters and exposes them in
// Prometheus text format without depending on the Prometheus client.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/netresearch/quartzite/core"
)

type metric struct {
	name  string
	typ   string // counter or gauge
	help  string
	value float64
}

// Collector tracks scheduler activity by implementing the job, trigger
// and scheduler listener interfaces. Register it with the listener
// manager and serve Handler() to scrape.
type Collector struct {
	core.TriggerListenerSupport
	core.SchedulerListenerSupport

	mu      sync.RWMutex
	metrics map[string]*metric
}

func NewCollector() *Collector {
	c := &Collector{metrics: make(map[string]*metric)}
	c.register("quartzite_jobs_scheduled_total", "counter", "Triggers scheduled since start.")
	c.register("quartzite_jobs_executed_total", "counter", "Job executions completed.")
	c.register("quartzite_jobs_failed_total", "counter", "Job executions that returned an error.")
	c.register("quartzite_jobs_vetoed_total", "counter", "Job executions vetoed by a trigger listener.")
	c.register("quartzite_triggers_misfired_total", "counter", "Trigger misfires detected.")
	c.register("quartzite_triggers_finalized_total", "counter", "Triggers that reached the end of their schedule.")
	c.register("quartzite_jobs_running", "gauge", "Job executions currently in flight.")
	return c
}

func (c *Collector) register(name, typ, help string) {
	c.metrics[name] = &metric{name: name, typ: typ, help: help}
}

func (c *Collector) add(name string, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.metrics[name]; ok {
		m.value += delta
	}
}

// Value returns the current value of a metric, for tests and health
// endpoints.
func (c *Collector) Value(name string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if m, ok := c.metrics[name]; ok {
		return m.value
	}
	return 0
}

// Name satisfies the job listener interface.
func (c *Collector) Name() string { return "quartzite-metrics" }

// Attach registers the collector for every event source.
func (c *Collector) Attach(s *core.Scheduler) error {
	if err := s.ListenerManager().AddJobListener(c); err != nil {
		return err
	}
	if err := s.ListenerManager().AddTriggerListener(c); err != nil {
		return err
	}
	s.ListenerManager().AddSchedulerListener(c)
	return nil
}

func (c *Collector) JobToBeExecuted(*core.JobExecutionContext) {
	c.add("quartzite_jobs_running", 1)
}

func (c *Collector) JobExecutionVetoed(*core.JobExecutionContext) {
	c.add("quartzite_jobs_vetoed_total", 1)
}

func (c *Collector) JobWasExecuted(_ *core.JobExecutionContext, jobErr error) {
	c.add("quartzite_jobs_running", -1)
	c.add("quartzite_jobs_executed_total", 1)
	if jobErr != nil {
		c.add("quartzite_jobs_failed_total", 1)
	}
}

func (c *Collector) TriggerMisfired(core.Trigger) {
	c.add("quartzite_triggers_misfired_total", 1)
}

func (c *Collector) JobScheduled(core.Trigger) {
	c.add("quartzite_jobs_scheduled_total", 1)
}

func (c *Collector) TriggerFinalized(core.Trigger) {
	c.add("quartzite_triggers_finalized_total", 1)
}

// WriteTo renders the Prometheus text exposition format.
func (c *Collector) WriteTo(w io.Writer) (int64, error) {
	c.mu.RLock()
	names := make([]string, 0, len(c.metrics))
	for name := range c.metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	for _, name := range names {
		m := c.metrics[name]
		n, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %g\n",
			m.name, m.help, m.name, m.typ, m.name, m.value)
		total += int64(n)
		if err != nil {
			c.mu.RUnlock()
			return total, err
		}
	}
	c.mu.RUnlock()
	return total, nil
}

// Handler serves the exposition over HTTP.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if _, err := c.WriteTo(w); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
