// Package logging builds the process logger. Components receive it as a
// logrus.FieldLogger and never configure logging themselves.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	Level string    // logrus level name; empty means "warn"
	JSON  bool      // JSON lines instead of text
	Out   io.Writer // defaults to stderr
}

// New returns a configured logger. An unknown level is an error.
func New(opt Options) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if opt.Out != nil {
		log.SetOutput(opt.Out)
	}
	lvl := logrus.WarnLevel
	if opt.Level != "" {
		parsed, err := logrus.ParseLevel(opt.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	log.SetLevel(lvl)
	if opt.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return log, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns log, or a discarding logger when log is nil.
func OrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return Discard()
	}
	return log
}
