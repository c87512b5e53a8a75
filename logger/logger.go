// Package logger provides the printf-style logging interface used across the
// module, backed by zerolog.
package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Interface is the logging contract expected by clients and transports.
type Interface interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	// With returns a logger that adds key=value to every entry.
	With(key, value string) Interface
}

type zlog struct {
	l zerolog.Logger
}

var _ Interface = (*zlog)(nil)

// New returns a zerolog-backed logger writing JSON lines to w at the given
// level ("debug", "info", "warn", "error", ...).
//
// Returns an error if the level is unknown or w is nil.
func New(level string, w io.Writer) (Interface, error) {
	if w == nil {
		return nil, fmt.Errorf("logger: nil writer")
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return &zlog{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}, nil
}

// NewConsole returns a logger with human-readable console output on w.
func NewConsole(level string, w io.Writer) (Interface, error) {
	if w == nil {
		return nil, fmt.Errorf("logger: nil writer")
	}

	return New(level, zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"})
}

// Nop returns a logger that discards everything.
func Nop() Interface {
	return &zlog{l: zerolog.Nop()}
}

func (z *zlog) Debug(format string, args ...any) { z.l.Debug().Msgf(format, args...) }
func (z *zlog) Info(format string, args ...any)  { z.l.Info().Msgf(format, args...) }
func (z *zlog) Warn(format string, args ...any)  { z.l.Warn().Msgf(format, args...) }
func (z *zlog) Error(format string, args ...any) { z.l.Error().Msgf(format, args...) }

func (z *zlog) With(key, value string) Interface {
	return &zlog{l: z.l.With().Str(key, value).Logger()}
}
