package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fieldbook/fieldbook/infrastructure/http/middleware"
	"github.com/fieldbook/fieldbook/infrastructure/http/response"
	"github.com/fieldbook/fieldbook/infrastructure/service/logger"
	"github.com/fieldbook/fieldbook/infrastructure/service/ratelimit"
	apperror "github.com/fieldbook/fieldbook/pkg/error"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	logger logger.Logger
	server *http.Server
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	CORSEnabled    bool
	AllowedOrigins []string
}

// NewServer creates a new HTTP server
func NewServer(
	config ServerConfig,
	reservationUseCase ReservationUseCase,
	rateLimiter ratelimit.RateLimitService,
	log logger.Logger,
) *Server {
	if log == nil {
		log = logger.NewNop()
	}

	router := NewRouter(reservationUseCase, rateLimiter, log)

	var handler http.Handler = router
	if config.CORSEnabled {
		handler = middleware.CORSMiddleware(router, config.AllowedOrigins, false)
	}

	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)
	return &Server{
		addr:   addr,
		logger: log,
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// NewRouter builds the routed handler with its middleware chain
func NewRouter(reservationUseCase ReservationUseCase, rateLimiter ratelimit.RateLimitService, log logger.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CorrelationIDMiddleware)
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	if rateLimiter != nil {
		router.Use(middleware.NewRateLimitMiddleware(rateLimiter, log).RateLimit)
	}

	NewReservationHandler(reservationUseCase).RegisterRoutes(router)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
	}).Methods("GET")

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Info(r.Context(), "HTTP request", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"remote_addr": r.RemoteAddr,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

func recoveryMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "Panic recovered", fmt.Errorf("%v", rec), map[string]interface{}{
						"path": r.URL.Path,
					})
					response.AppError(w, apperror.ErrInternalServer)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
