package logging

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before Init with logrus defaults.
var Logger = logrus.New()

type appNameHook struct {
	appName string
}

// Levels implements logrus.Hook.
func (h *appNameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *appNameHook) Fire(entry *logrus.Entry) error {
	entry.Message = "[" + h.appName + "] " + entry.Message
	return nil
}

// Init configures output, level and formatting of Logger.
func Init(appName, level string) {
	Logger.SetOutput(os.Stdout)

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.Warnf("invalid LOG_LEVEL %q, defaulting to info", level)
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)

	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	Logger.AddHook(&appNameHook{appName: appName})
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Logger.WithField("component", name)
}
