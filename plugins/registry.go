package plugins

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/netresearch/quartzite/core"
)

// ErrUnknownPlugin is returned when a configuration names a plugin class
// that was never registered.
var ErrUnknownPlugin = errors.New("unknown plugin class")

// Plugin is something that attaches to a scheduler at boot, typically by
// registering listeners.
type Plugin interface {
	Name() string
	Attach(s *core.Scheduler) error
}

// Factory builds a plugin from its configuration section, already decoded
// into a string map.
type Factory func(name string, settings map[string]any, logger core.Logger) (Plugin, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register binds a class name to a plugin factory. Called from init
// functions of plugin implementations.
func Register(class string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[class] = factory
}

// New instantiates the plugin registered under class.
func New(class, name string, settings map[string]any, logger core.Logger) (Plugin, error) {
	registryMu.RLock()
	factory, ok := registry[class]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("plugin %q: class %q: %w", name, class, ErrUnknownPlugin)
	}
	return factory(name, settings, logger)
}

// Classes returns the registered class names, sorted.
func Classes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	classes := make([]string, 0, len(registry))
	for class := range registry {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}
