// Package logger provides the structured logger shared by all services.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry so call sites can chain structured fields
// (WithField, WithError) without caring about the underlying library.
type Logger struct {
	*logrus.Entry
}

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (case-insensitive).
	Level string
	// Format is "json" or "text".
	Format string
	// Output is "stdout" or "stderr".
	Output string
	// Component is attached to every entry as the "component" field.
	Component string
}

// New constructs a logger from the provided configuration. Unknown values
// fall back to info-level text logging on stdout.
func New(cfg LoggingConfig) *Logger {
	l := logrus.New()
	l.SetOutput(outputWriter(cfg.Output))

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	entry := logrus.NewEntry(l)
	if cfg.Component != "" {
		entry = entry.WithField("component", cfg.Component)
	}
	return &Logger{Entry: entry}
}

// NewDefault returns an info-level text logger tagged with the component name.
// Services use this when no logger is injected.
func NewDefault(component string) *Logger {
	return New(LoggingConfig{Level: "info", Format: "text", Component: component})
}

// WithComponent returns a child logger tagged with a different component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Entry: l.Entry.WithField("component", component)}
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "stderr":
		return os.Stderr
	default:
		return os.Stdout
	}
}
