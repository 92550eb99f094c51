package transport

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pairchat/internal/metrics"
	"pairchat/internal/registry"
)

const waitFor = 2 * time.Second

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()

	reg := registry.New(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go reg.Run(ctx)
	t.Cleanup(cancel)

	return reg
}

func testOptions() Options {
	return Options{
		SendQueue: 16,
		Metrics:   metrics.New(),
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func waitForClients(t *testing.T, reg *registry.Registry, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return reg.Len() == n
	}, waitFor, 5*time.Millisecond)
}
