package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/readypath/assess-gateway/internal/config"
	"github.com/readypath/assess-gateway/internal/llm"
	"github.com/readypath/assess-gateway/internal/ratelimit"
	"github.com/readypath/assess-gateway/internal/script"
	"github.com/readypath/assess-gateway/internal/submit"
)

// Limiters groups the independent rate-limit policies. Chat guards
// conversational turns, Submit guards report submissions, Violation guards
// the CSP report sink. They never share counters.
type Limiters struct {
	Chat      *ratelimit.Limiter
	Submit    *ratelimit.Limiter
	Violation *ratelimit.Limiter
}

// Server represents the HTTP API server
type Server struct {
	config       config.ServerConfig
	router       *chi.Mux
	limiters     Limiters
	provider     llm.Provider
	webhook      *submit.Webhook
	script       *script.Loader
	stallTimeout time.Duration
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	limiters Limiters,
	provider llm.Provider,
	webhook *submit.Webhook,
	loader *script.Loader,
) *Server {
	s := &Server{
		config:       cfg,
		limiters:     limiters,
		provider:     provider,
		webhook:      webhook,
		script:       loader,
		stallTimeout: cfg.StreamStallTimeout,
	}
	if s.stallTimeout <= 0 {
		s.stallTimeout = defaultStallTimeout
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/submit-assessment", s.handleSubmitAssessment)
		r.Post("/csp-report", s.handleCSPReport)
		r.Get("/script", s.handleGetScript)
	})

	s.router = r
}

// securityHeaders attaches the browser hardening headers to every response,
// including streamed ones: they are set before the handler writes.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
