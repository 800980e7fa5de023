package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/proxy/handlers"
	"shareai/chatrelay/pkg/proxy/middleware"
	"shareai/chatrelay/pkg/telemetry/health"
	"shareai/chatrelay/pkg/telemetry/metrics"
	"shareai/chatrelay/pkg/telemetry/tracing"
)

// Options are the collaborators of a Server.
type Options struct {
	// Config returns the current configuration. Required.
	Config func() *config.Config

	// Factory builds the per-request agents. Required.
	Factory *handlers.AgentFactory

	// Tasks serves the async endpoints. Nil disables them (503).
	Tasks handlers.TaskService

	// Health answers the probes. Nil gets a checker without checks.
	Health *health.Checker

	// Metrics records HTTP requests and serves the scrape endpoint when
	// enabled. Nil disables both.
	Metrics *metrics.Collector

	Logger *slog.Logger

	Version health.VersionInfo
}

// Server is the relay's HTTP server.
type Server struct {
	opts       Options
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server. Routes are built once, from the
// configuration current at this point; handlers still read the live
// configuration per request.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Health == nil {
		opts.Health = health.New(opts.Config().Telemetry.Health.CheckTimeout)
	}
	return &Server{opts: opts, logger: opts.Logger}
}

// Start listens on the configured address and serves until ctx is done,
// SIGINT/SIGTERM arrives or the server fails. It then shuts down
// gracefully and returns.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	cfg := s.opts.Config().Server
	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting chat relay server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		s.markStopped()
		return err
	}
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by the configured shutdown timeout and ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		timeout := s.opts.Config().Server.ShutdownTimeout
		s.logger.Info("initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.markStopped()
		s.logger.Info("chat relay server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	cfg := s.opts.Config()

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(tracing.HTTPMiddleware)
	if s.opts.Metrics != nil {
		r.Use(middleware.AccessLog(s.logger, s.opts.Metrics))
	} else {
		r.Use(middleware.AccessLog(s.logger, nil))
	}
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.CORS(cfg.Server.CORS))

	chat := handlers.NewChatHandler(s.opts.Factory, s.opts.Tasks, s.opts.Config, s.logger)
	r.Route("/chat", func(r chi.Router) {
		r.Post("/completions", chat.Completions)
		r.Post("/stream", chat.Stream)
		r.Post("/async", chat.Async)
		r.Get("/tasks/{"+handlers.TaskIDParam+"}", chat.Task)
		r.Handle("/ws", handlers.NewWebSocketHandler(s.opts.Factory, s.opts.Config, s.logger))
	})

	hc := cfg.Telemetry.Health
	r.Get(hc.LivenessPath, s.opts.Health.LivenessHandler())
	r.Get(hc.ReadinessPath, s.opts.Health.ReadinessHandler())
	v := s.opts.Version
	r.Get("/version", health.VersionHandler(v.Version, v.Commit, v.BuildDate))

	if s.opts.Metrics != nil && s.opts.Metrics.Enabled() {
		r.Handle(cfg.Telemetry.Metrics.Path, s.opts.Metrics.Handler())
	}

	return r
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}
