// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides the structured logger used across the compiler,
// backed by charmbracelet/log and optionally fanned out to a syslog server.
package logging

import (
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is a thin wrapper around charmlog.Logger giving every package a
// stable key-value logging call shape independent of the backing library.
type Logger struct {
	inner  *charmlog.Logger
	output io.Writer
}

// Options controls logger construction.
type Options struct {
	Prefix string
	Level  string // "debug", "info", "warn", "error"
	Output io.Writer
}

// New creates a Logger writing to opts.Output (stderr if nil).
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	inner := charmlog.NewWithOptions(out, charmlog.Options{
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
	})
	inner.SetLevel(parseLevel(opts.Level))

	return &Logger{inner: inner, output: out}
}

func parseLevel(level string) charmlog.Level {
	switch level {
	case "debug":
		return charmlog.DebugLevel
	case "warn":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// With returns a child logger with the given key-value pairs attached to
// every subsequent line.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{inner: l.inner.With(keyvals...), output: l.output}
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyvals ...any) { l.inner.Debug(msg, keyvals...) }

// Info logs at info level.
func (l *Logger) Info(msg string, keyvals ...any) { l.inner.Info(msg, keyvals...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyvals ...any) { l.inner.Warn(msg, keyvals...) }

// Error logs at error level.
func (l *Logger) Error(msg string, keyvals ...any) { l.inner.Error(msg, keyvals...) }

// AddWriter fans this logger's output out to an additional writer (used to
// attach a syslog forwarder without disturbing the primary sink).
func (l *Logger) AddWriter(w io.Writer) {
	l.output = io.MultiWriter(l.output, w)
	l.inner.SetOutput(l.output)
}
