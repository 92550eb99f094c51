// Package config holds the runtime options of the relay server.
package config

import (
	"errors"
	"fmt"
	"strings"

	"pairchat/internal/logging"
)

// Framing selects how a TCP byte stream is cut into frames.
type Framing string

const (
	// FramingRaw treats every read as exactly one JSON document.
	FramingRaw Framing = "raw"
	// FramingLine splits frames on '\n'.
	FramingLine Framing = "line"
)

// Config holds runtime wiring options for the server.
type Config struct {
	TCPAddr     string   // TCP listen address, e.g. :12345
	Framing     Framing  // raw or line
	WSAddr      string   // WebSocket listen address; empty disables it
	WSPath      string   // WebSocket endpoint path
	WSOrigins   []string // allowed Origin values; empty allows any
	MetricsAddr string   // Prometheus listen address; empty disables it
	SendQueue   int      // outbound frames buffered per client
	Verbose     bool
	LogFormat   string // json or text
}

func Default() Config {
	return Config{
		TCPAddr:   ":12345",
		Framing:   FramingRaw,
		WSPath:    "/ws",
		SendQueue: 64,
		LogFormat: logging.FormatJSON,
	}
}

// Validate reports the first invalid option.
func (c Config) Validate() error {
	if c.TCPAddr == "" && c.WSAddr == "" {
		return errors.New("no listener configured: set a tcp or websocket address")
	}

	switch c.Framing {
	case FramingRaw, FramingLine:
	default:
		return fmt.Errorf("unknown framing %q (want %s or %s)", c.Framing, FramingRaw, FramingLine)
	}

	if c.WSAddr != "" && !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("websocket path %q must start with /", c.WSPath)
	}

	if c.SendQueue < 1 {
		return fmt.Errorf("send queue must be positive, got %d", c.SendQueue)
	}

	switch c.LogFormat {
	case logging.FormatJSON, logging.FormatText:
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	return nil
}
