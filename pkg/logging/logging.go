package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure sets the level and format of the standard logrus logger. An empty
// level means info; format is "text" (default) or "json".
func Configure(level, format string) error {
	return configure(logrus.StandardLogger(), os.Stderr, level, format)
}

// FromEnv configures logging from LOG_LEVEL and LOG_FORMAT, using
// defaultLevel when LOG_LEVEL is unset or empty.
func FromEnv(defaultLevel string) error {
	return configure(logrus.StandardLogger(), os.Stderr, levelFromEnv(defaultLevel), os.Getenv("LOG_FORMAT"))
}

func levelFromEnv(defaultLevel string) string {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		return v
	}
	return defaultLevel
}

func configure(l *logrus.Logger, out io.Writer, level, format string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch strings.ToLower(format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	l.SetOutput(out)
	l.SetLevel(lvl)
	return nil
}
