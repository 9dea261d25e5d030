package cli

import (
	"encoding/json"
	"fmt"

	"github.com/netresearch/quartzite/core"
)

// ValidateCommand loads and validates the config file, printing the
// decoded result.
type ValidateCommand struct {
	ConfigFile string `long:"config" env:"QUARTZITE_CONFIG" description:"configuration file" default:"/etc/quartzite/config.ini"`
	LogLevel   string `long:"log-level" env:"QUARTZITE_LOG_LEVEL" description:"Set log level (overrides config)"`
	Logger     core.Logger
}

// Execute runs the validation command.
func (c *ValidateCommand) Execute(_ []string) error {
	ApplyLogLevel(c.LogLevel)
	c.Logger.Debugf("validating %q ...", c.ConfigFile)
	conf, err := BuildFromFile(c.ConfigFile, c.Logger)
	if err != nil {
		c.Logger.Errorf("ERROR")
		return err
	}
	if c.LogLevel == "" {
		ApplyLogLevel(conf.Scheduler.LogLevel)
	}

	out, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	c.Logger.Debugf("OK")
	return nil
}
