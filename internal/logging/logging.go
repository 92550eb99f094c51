// Package logging builds the process logger. Components derive their own
// logger with For, which tags every record with a subsystem attribute.
package logging

import (
	"fmt"
	"io"
	"log/slog"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a logger writing to w. verbose enables debug records.
func New(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	level := slog.LevelInfo

	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch format {
	case FormatJSON, "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// For returns a child logger for subsystem.
func For(log *slog.Logger, subsystem string) *slog.Logger {
	return log.With("subsystem", subsystem)
}
