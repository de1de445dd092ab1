package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// redacted lists field names whose values never reach the log output.
var redacted = []string{"password", "credential", "token", "confirmation"}

// New creates a logger writing to stdout with the given level and format.
// Unknown levels fall back to info and unknown formats to text.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(level, format, os.Stdout)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	switch strings.ToLower(format) {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logger.SetOutput(out)
	logger.AddHook(redactHook{})

	return logger
}

// redactHook masks secret fields before an entry is formatted.
type redactHook struct{}

func (redactHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (redactHook) Fire(entry *logrus.Entry) error {
	for key := range entry.Data {
		lower := strings.ToLower(key)
		for _, secret := range redacted {
			if strings.Contains(lower, secret) {
				entry.Data[key] = "[redacted]"
				break
			}
		}
	}
	return nil
}
