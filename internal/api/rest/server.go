package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FlashTheFire/nexnum-backend/internal/infrastructure/config"
)

// Server is the HTTP front of the provider integration core.
type Server struct {
	httpServer *http.Server
	handler    *Handler
	redis      *redis.Client
	logger     *zap.Logger
	cfg        config.ServerConfig
}

// NewServer wires routes and middleware around the handler.
func NewServer(cfg config.ServerConfig, handler *Handler, redisClient *redis.Client, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{
		handler: handler,
		redis:   redisClient,
		logger:  logger,
		cfg:     cfg,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	v1 := http.NewServeMux()
	v1.HandleFunc("POST /sync", handler.handleSync)
	v1.HandleFunc("POST /purchases", handler.handlePurchase)
	v1.HandleFunc("GET /quotes", handler.handleQuotes)

	v1.HandleFunc("GET /activations/{id}/status", handler.handleActivationStatus)
	v1.HandleFunc("POST /activations/{id}/cancel", handler.handleActivationCancel)
	v1.HandleFunc("POST /activations/{id}/resend", handler.handleActivationResend)
	v1.HandleFunc("POST /activations/{id}/complete", handler.handleActivationComplete)

	v1.HandleFunc("GET /vendors/balance", handler.handleTotalBalance)
	v1.HandleFunc("GET /vendors/balances/low", handler.handleLowBalances)
	v1.HandleFunc("GET /vendors/{name}/health", handler.handleVendorHealth)
	v1.HandleFunc("POST /vendors/{name}/circuit", handler.handleCircuitOverride)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", v1))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.logging(s.recovery(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start blocks serving HTTP until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz is the liveness probe: process up plus Redis reachable.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := `{"status":"ok"}`
	if err := s.redis.Ping(ctx).Err(); err != nil {
		status = http.StatusServiceUnavailable
		body = `{"status":"degraded","redis":"unreachable"}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					zap.String("path", r.URL.Path), zap.Any("panic", rec))
				http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"internal error"}}`,
					http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
