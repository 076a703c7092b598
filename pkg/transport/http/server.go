package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denker-ai/denker/pkg/transport"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	// Addr is the address to listen on.
	Addr string

	// MaxBodySize limits request body size in bytes.
	MaxBodySize int64

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// MetricsEnabled mounts /metrics and records request metrics.
	MetricsEnabled bool

	// Logger receives request logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

type serverSettings struct {
	config          ServerConfig
	store           transport.ConversationStore
	models          ModelLister
	middlewares     []transport.Middleware
	httpMiddlewares []func(http.Handler) http.Handler
}

// ServerOption configures the server.
type ServerOption func(*serverSettings)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(s *serverSettings) { s.config.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size in bytes.
func WithMaxBodySize(n int64) ServerOption {
	return func(s *serverSettings) { s.config.MaxBodySize = n }
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(s *serverSettings) { s.config.ShutdownTimeout = d }
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *serverSettings) { s.config.Logger = logger }
}

// WithStore enables the conversation endpoints against the given store.
func WithStore(store transport.ConversationStore) ServerOption {
	return func(s *serverSettings) { s.store = store }
}

// WithModelLister enables GET /api/models against the given backend.
func WithModelLister(models ModelLister) ServerOption {
	return func(s *serverSettings) { s.models = models }
}

// WithMetrics mounts /metrics and records per-request metrics.
func WithMetrics() ServerOption {
	return func(s *serverSettings) { s.config.MetricsEnabled = true }
}

// WithMiddleware appends middleware to the default chain
// (recovery, request ID, logging).
func WithMiddleware(mw ...transport.Middleware) ServerOption {
	return func(s *serverSettings) { s.middlewares = append(s.middlewares, mw...) }
}

// WithHTTPMiddleware wraps the whole router in HTTP-level middleware,
// applied in the order given with the first outermost. Authentication
// mounts here so it runs before routing and streaming.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(s *serverSettings) { s.httpMiddlewares = append(s.httpMiddlewares, mw...) }
}

// Server is the denker HTTP server. It owns the adapter, the listener
// lifecycle, and graceful shutdown on SIGINT/SIGTERM.
type Server struct {
	adapter         *Adapter
	config          ServerConfig
	logger          *slog.Logger
	httpServer      *http.Server
	httpMiddlewares []func(http.Handler) http.Handler
}

// NewServer creates a server around the given ChatStreamer. The default
// middleware chain (panic recovery, request ID, request logging) is
// always applied; WithMiddleware appends to it.
func NewServer(streamer transport.ChatStreamer, opts ...ServerOption) *Server {
	settings := &serverSettings{config: DefaultServerConfig()}
	for _, opt := range opts {
		opt(settings)
	}

	logger := settings.config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	middlewares := append([]transport.Middleware{
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
	}, settings.middlewares...)

	adapter := NewAdapter(streamer, settings.store, settings.models, Config{
		Addr:            settings.config.Addr,
		MaxBodySize:     settings.config.MaxBodySize,
		ShutdownTimeout: int(settings.config.ShutdownTimeout.Seconds()),
		MetricsEnabled:  settings.config.MetricsEnabled,
	}, middlewares...)

	return &Server{
		adapter:         adapter,
		config:          settings.config,
		logger:          logger,
		httpMiddlewares: settings.httpMiddlewares,
	}
}

// Handler returns the fully wrapped http.Handler, for mounting in tests
// or a larger mux.
func (s *Server) Handler() http.Handler {
	h := s.adapter.Handler()
	for i := len(s.httpMiddlewares) - 1; i >= 0; i-- {
		h = s.httpMiddlewares[i](h)
	}
	return h
}

// ListenAndServe starts the server and blocks until the context is
// cancelled or a signal arrives, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("server listening", "addr", s.config.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		return s.shutdown()
	}
}

// ServeOn serves on an existing listener. It does not install signal
// handling; cancel the context or close the listener to stop.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
