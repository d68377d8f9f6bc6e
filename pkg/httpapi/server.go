package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/gomarketplace/pkg/cart"
)

// Config configures the HTTP surface.
type Config struct {
	// Address is the listen address used by Run (default ":8080").
	Address string

	// Logger receives request and stream logs.
	// Default: slog.Default().With("component", "httpapi")
	Logger *slog.Logger

	// Gatherer serves /metrics.
	// Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// WriteTimeout bounds each WebSocket frame write (default 10s).
	WriteTimeout time.Duration

	// PingInterval is how often idle streams are pinged (default 30s).
	PingInterval time.Duration

	// ShutdownTimeout bounds graceful shutdown in Run (default 10s).
	ShutdownTimeout time.Duration

	// CheckOrigin validates WebSocket origins. Nil allows same-origin only.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default HTTP configuration.
func DefaultConfig() Config {
	return Config{
		Address:         ":8080",
		WriteTimeout:    10 * time.Second,
		PingInterval:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server exposes one cart Store over HTTP.
type Server struct {
	store    *cart.Store
	config   Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates a Server for store. Zero fields in config take their defaults.
func New(store *cart.Store, config Config) *Server {
	def := DefaultConfig()
	if config.Address == "" {
		config.Address = def.Address
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "httpapi")
	}

	s := &Server{
		store:  store,
		config: config,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cart.Provider(s.store))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/api/cart", s.handleGetCart)
	r.Post("/api/cart/items", s.handleAdd)
	r.Post("/api/cart/items/{id}/increment", s.handleIncrement)
	r.Post("/api/cart/items/{id}/decrement", s.handleDecrement)
	r.Get("/api/cart/stream", s.handleStream)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Address,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	s.logger.Info("server shutdown complete")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
