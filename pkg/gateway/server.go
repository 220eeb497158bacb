package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/harun/agentengine/internal/observability"
	"github.com/harun/agentengine/pkg/agent"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	maxEnvelopeBytes       = 1 << 20
)

// Engine starts requests; *agent.Engine satisfies it
type Engine interface {
	Handle(ctx context.Context, env agent.Envelope) *agent.Stream
}

// BackgroundJob runs until its context is cancelled; *session.Cleanup satisfies it
type BackgroundJob interface {
	Run(ctx context.Context) error
}

// Config holds server configuration
type Config struct {
	Host              string
	Port              int
	Engine            Engine
	Jobs              []BackgroundJob
	ShutdownTimeout   time.Duration
	RequestsPerMinute int
	MaxConcurrent     int
	Logger            zerolog.Logger
}

// Server is the HTTP adapter in front of the engine
type Server struct {
	addr            string
	engine          Engine
	jobs            []BackgroundJob
	shutdownTimeout time.Duration
	limiters        *limiterRegistry
	upgrader        websocket.Upgrader
	logger          zerolog.Logger

	// hijacked connections are not tracked by http.Server.Shutdown
	websockets sync.WaitGroup
}

// NewServer creates a new Server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	observability.EnsureRegistered()

	return &Server{
		addr:            net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		engine:          cfg.Engine,
		jobs:            cfg.Jobs,
		shutdownTimeout: cfg.ShutdownTimeout,
		limiters:        newLimiterRegistry(cfg.RequestsPerMinute, cfg.MaxConcurrent),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: cfg.Logger,
	}, nil
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", observability.MetricsHandler())
	return mux
}

// Run listens on the configured address and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln and runs the background jobs until ctx is cancelled,
// then shuts down gracefully. In-flight streams get up to the shutdown timeout
// to finish; whatever is still running after that is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	requestCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting HTTP server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		defer cancelRequests()

		s.logger.Info().Dur("timeout", s.shutdownTimeout).Msg("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
		if err := s.waitWebSockets(shutdownCtx); err != nil {
			return fmt.Errorf("failed to drain websocket streams: %w", err)
		}
		return nil
	})

	for _, job := range s.jobs {
		job := job
		g.Go(func() error { return job.Run(gctx) })
	}

	err := g.Wait()
	s.logger.Info().Msg("HTTP server stopped")
	return err
}

// waitWebSockets blocks until every upgraded connection has finished or ctx is done
func (s *Server) waitWebSockets(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.websockets.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
