// Package logger configures the process-wide logrus logger and the
// context-id convention used to correlate log lines.
package logger

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ContextField carries the work-unit id on every entry: "signal-<id>"
// inside dispatcher workers, "req-<id>" inside HTTP handlers.
const ContextField = "ctx"

// New builds a logger for the given level name (case-insensitive).
func New(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	log := logrus.New()
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return log, nil
}

// WithSignal tags entries with the processing context of one signal.
func WithSignal(log *logrus.Logger, signalID string) *logrus.Entry {
	return log.WithField(ContextField, "signal-"+signalID)
}

// WithRequest tags entries with the context of one HTTP request.
func WithRequest(log *logrus.Logger, requestID string) *logrus.Entry {
	return log.WithField(ContextField, "req-"+requestID)
}
