// Package logger provides structured logging for the application on top of
// logrus. Every component receives a *Logger scoped with a service field so
// log lines can be attributed without extra wiring.
package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config controls the level, format and destination of a Logger.
type Config struct {
	Service string
	Level   string
	Format  string
	Output  string
}

// Logger is a logrus entry carrying the service field. It exposes the full
// logrus API (WithField, WithError, Infof, ...) through embedding.
type Logger struct {
	*logrus.Entry
}

// New builds a Logger from the given configuration. Unknown levels fall back
// to info and unknown formats to JSON.
func New(cfg Config) *Logger {
	base := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
		base.SetOutput(os.Stdout)
	case "stderr":
		base.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			base.SetOutput(os.Stdout)
			base.WithError(err).Warnf("cannot open log file %s, falling back to stdout", cfg.Output)
		} else {
			base.SetOutput(file)
		}
	}

	entry := base.WithField("service", serviceName(cfg.Service))
	return &Logger{Entry: entry}
}

// NewDefault returns a JSON stdout logger at info level for the given service.
func NewDefault(service string) *Logger {
	return New(Config{Service: service, Level: "info", Format: "json"})
}

// WithComponent returns a child logger with an additional component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

func serviceName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "karmic"
	}
	return name
}
