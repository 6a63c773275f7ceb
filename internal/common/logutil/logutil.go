// Package logutil builds the zerolog loggers used by the binaries.
package logutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LevelFromString maps debug|info|warn|error to a zerolog level.
// Unknown values fall back to info.
func LevelFromString(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return zerolog.ErrorLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	}
	return zerolog.InfoLevel
}

// New returns a timestamped logger writing to w. format "console" selects
// human-readable output; anything else writes JSON lines.
func New(w io.Writer, level, format string) zerolog.Logger {
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(LevelFromString(level)).With().Timestamp().Logger()
}
