package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"

	"rentchain/core"
	"rentchain/observability"
)

const shutdownTimeout = 5 * time.Second

// ServerConfig controls the HTTP surface of the node.
type ServerConfig struct {
	ListenAddress     string
	MaxConnections    int
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
	// TrustProxyHeaders keys rate limits on X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool

	Auth AuthConfig
	// Idempotency caches responses by Idempotency-Key when set.
	Idempotency *IdempotencyStore
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type callMetrics interface {
	Observe(method string, code int, duration time.Duration)
	RecordThrottle(method, reason string)
}

// Server exposes a node over JSON-RPC and a websocket event stream.
type Server struct {
	node        *core.Node
	cfg         ServerConfig
	logger      *slog.Logger
	metrics     callMetrics
	limiter     *rateLimiter
	auth        *adminAuth
	idempotency *IdempotencyStore
	handlers    map[string]handlerFunc
	router      http.Handler

	serverMu   sync.Mutex
	httpServer *http.Server
}

// NewServer wires the routes for node.
func NewServer(node *core.Node, cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:        node,
		cfg:         cfg,
		logger:      logger.With("component", "rpc"),
		metrics:     observability.ModuleMetrics(),
		limiter:     newRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst),
		auth:        newAdminAuth(cfg.Auth),
		idempotency: cfg.Idempotency,
	}
	s.handlers = s.methods()

	r := chi.NewRouter()
	r.Use(requestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/ws", s.handleEventsWS)
	r.With(s.rateLimit, s.withIdempotency).Post("/", s.handle)
	s.router = otelhttp.NewHandler(r, "rentd.rpc")
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.node == nil {
		return fmt.Errorf("rpc: node is required")
	}
	if s.cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		// Streams are hijacked connections Shutdown does not wait for; they
		// end with ctx instead.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn("rpc shutdown", "error", err)
			}
		case <-done:
		}
	}()

	s.logger.Info("rpc listening", "address", listener.Addr().String())
	err := srv.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe binds the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", s.cfg.ListenAddress, err)
	}
	return s.Serve(ctx, listener)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
