// Package server wires the relay together: one registry shared by the TCP
// listener, the optional WebSocket endpoint and the optional metrics
// endpoint, all stopped by a single context.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"pairchat/internal/config"
	"pairchat/internal/logging"
	"pairchat/internal/metrics"
	"pairchat/internal/registry"
	"pairchat/internal/transport"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type Server struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	registry *registry.Registry

	tcp     net.Listener
	ws      net.Listener
	metricz net.Listener
}

// Listen validates cfg and binds every configured listener. Nothing is
// served until Run.
func Listen(cfg config.Config, log *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	m := metrics.New()

	s := &Server{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		registry: registry.New(logging.For(log, "registry"), m),
	}

	binds := []struct {
		addr string
		dst  *net.Listener
	}{
		{cfg.TCPAddr, &s.tcp},
		{cfg.WSAddr, &s.ws},
		{cfg.MetricsAddr, &s.metricz},
	}

	for _, b := range binds {
		if b.addr == "" {
			continue
		}

		ln, err := net.Listen("tcp", b.addr)
		if err != nil {
			s.closeListeners()
			return nil, fmt.Errorf("listen on %s: %w", b.addr, err)
		}

		*b.dst = ln
	}

	return s, nil
}

// TCPAddr returns the bound TCP address, or nil when disabled.
func (s *Server) TCPAddr() net.Addr { return addrOf(s.tcp) }

// WSAddr returns the bound WebSocket address, or nil when disabled.
func (s *Server) WSAddr() net.Addr { return addrOf(s.ws) }

// MetricsAddr returns the bound metrics address, or nil when disabled.
func (s *Server) MetricsAddr() net.Addr { return addrOf(s.metricz) }

// Run serves until ctx is cancelled or a listener fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.registry.Run(ctx)
		return nil
	})

	opts := func(subsystem string) transport.Options {
		return transport.Options{
			SendQueue: s.cfg.SendQueue,
			Metrics:   s.metrics,
			Log:       logging.For(s.log, subsystem),
		}
	}

	if s.tcp != nil {
		tcp := transport.NewTCPServer(s.registry, s.cfg.Framing, opts("tcp"))

		g.Go(func() error {
			return tcp.Serve(ctx, s.tcp)
		})
	}

	if s.ws != nil {
		ws := transport.NewWebSocketHandler(s.registry, s.cfg.WSOrigins, opts("websocket"))

		mux := http.NewServeMux()
		mux.Handle(s.cfg.WSPath, ws)

		s.serveHTTP(ctx, g, s.ws, mux, "websocket", ws.Wait)
	}

	if s.metricz != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics.Handler())

		s.serveHTTP(ctx, g, s.metricz, mux, "metrics", nil)
	}

	return g.Wait()
}

// serveHTTP runs h on ln until ctx ends. drain, when set, waits for
// connections that Shutdown cannot see.
func (s *Server) serveHTTP(ctx context.Context, g *errgroup.Group, ln net.Listener, h http.Handler, name string, drain func()) {
	log := logging.For(s.log, name)

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	g.Go(func() error {
		log.Info("http listener started", "addr", ln.Addr().String())

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s listener: %w", name, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown incomplete", "err", err)
		}

		if drain != nil {
			drain()
		}

		log.Info("http listener stopped")

		return nil
	})
}

func (s *Server) closeListeners() {
	for _, ln := range []net.Listener{s.tcp, s.ws, s.metricz} {
		if ln != nil {
			_ = ln.Close()
		}
	}
}

func addrOf(ln net.Listener) net.Addr {
	if ln == nil {
		return nil
	}

	return ln.Addr()
}
