// Package dialoglog provides the structured logging wrapper shared by every
// Dialog component, built on zerolog the same way cuemby-warren's pkg/log
// does: a small Level type, a process-wide Init, and With* helpers that
// attach component identity to a child logger instead of re-deriving it at
// every call site.
package dialoglog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog's levels under names that read naturally at call
// sites (dialoglog.LevelInfo instead of zerolog.InfoLevel).
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config controls the process-wide logger created by Init.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

var base zerolog.Logger

func init() {
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Init installs the process-wide base logger. Call once at process
// startup; every With* helper derives from the logger Init installs.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var w io.Writer = out
	if !cfg.JSONOutput {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	base = zerolog.New(w).Level(cfg.Level.zerolog()).With().Timestamp().Logger()
}

// Logger is a thin handle over a zerolog.Logger, re-exported so callers
// never need to import zerolog directly.
type Logger struct {
	z zerolog.Logger
}

// Base returns the process-wide logger installed by Init (or the default
// console logger if Init was never called).
func Base() Logger { return Logger{z: base} }

// WithComponent returns a child logger tagged with the component field,
// e.g. "storage", "prolly", "query".
func WithComponent(component string) Logger {
	return Logger{z: base.With().Str("component", component).Logger()}
}

// With returns a child logger carrying an additional arbitrary field.
func (l Logger) With(key, value string) Logger {
	return Logger{z: l.z.With().Str(key, value).Logger()}
}

// WithBranch tags a child logger with the branch name it is acting on.
func (l Logger) WithBranch(branch string) Logger {
	return l.With("branch", branch)
}

func (l Logger) Debug(msg string)           { l.z.Debug().Msg(msg) }
func (l Logger) Info(msg string)            { l.z.Info().Msg(msg) }
func (l Logger) Warn(msg string)            { l.z.Warn().Msg(msg) }
func (l Logger) Error(msg string, err error) { l.z.Error().Err(err).Msg(msg) }

func (l Logger) Debugf(format string, args ...interface{}) { l.z.Debug().Msgf(format, args...) }
func (l Logger) Infof(format string, args ...interface{})  { l.z.Info().Msgf(format, args...) }
func (l Logger) Warnf(format string, args ...interface{})  { l.z.Warn().Msgf(format, args...) }
func (l Logger) Errorf(format string, args ...interface{}) { l.z.Error().Msgf(format, args...) }
