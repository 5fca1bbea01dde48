package cli

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger writes status messages for the command layer on top of zerolog.
// The underlying zerolog.Logger is shared with the domain components.
type Logger struct {
	zl zerolog.Logger
}

// NewLogger builds a leveled logger writing to w (stderr when nil).
//
// format "json" emits one JSON object per line; anything else uses the
// human-readable console writer.
func NewLogger(w io.Writer, level, format string) Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}
	return Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// Zerolog exposes the structured logger for component wiring.
func (l Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Info prints an informational message.
func (l Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

// Warn prints a warning message.
func (l Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

// Error prints an error message.
func (l Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

// Success prints a completed-operation message.
func (l Logger) Success(msg string) {
	l.zl.Info().Str("status", "ok").Msg(msg)
}

// Failure prints a failed-operation message.
func (l Logger) Failure(msg string) {
	l.zl.Warn().Str("status", "fail").Msg(msg)
}
