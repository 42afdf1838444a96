// Copyright (c) 2025 vCornea Orchestrator Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package logging provides the process-wide logger. It wraps log/slog with
// a tint handler for readable terminal output and exposes printf-style
// methods, which is the shape the orchestration packages consume through
// their own narrow Logger interfaces.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Format selects the handler: "json" for machine-readable output,
	// anything else for the tint console handler.
	Format string
	// NoColor disables ANSI colors, for logs captured to files.
	NoColor bool
	// Writer receives log output. Nil means os.Stderr.
	Writer io.Writer
}

// Logger adapts slog to the printf-style calls used across the module.
type Logger struct {
	s *slog.Logger
}

// New builds a logger writing to opts.Writer.
func New(opts Options) *Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	var handler slog.Handler
	switch opts.Format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: parseLevel(opts.Level),
		})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      parseLevel(opts.Level),
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		})
	}
	return &Logger{s: slog.New(handler)}
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return &Logger{s: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Debugf logs at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.s.Debug(fmt.Sprintf(format, args...))
}

// Infof logs at info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.s.Info(fmt.Sprintf(format, args...))
}

// Warnf logs at warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.s.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.s.Error(fmt.Sprintf(format, args...))
}

// Slog exposes the underlying slog.Logger for callers that want structured
// attributes.
func (l *Logger) Slog() *slog.Logger { return l.s }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
