package cli

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// ApplyLogLevel sets the global logrus level; unknown or empty values are
// ignored.
func ApplyLogLevel(level string) {
	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	logrus.SetLevel(lvl)
}
