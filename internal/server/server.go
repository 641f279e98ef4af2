// Package server is the HTTP conversion service behind "quizqti serve".
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/FocuswithJustin/quizqti/internal/config"
	"github.com/FocuswithJustin/quizqti/internal/convert"
	"github.com/FocuswithJustin/quizqti/internal/logging"
)

const (
	// requestTimeout bounds one conversion.
	requestTimeout = 60 * time.Second
	// maxConcurrent bounds conversions in flight.
	maxConcurrent = 16
	// shutdownTimeout is how long ListenAndServe waits for requests to
	// drain.
	shutdownTimeout = 10 * time.Second
)

// Config holds server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string // empty allows all origins
	JWTSecret      string   // empty disables authentication
	RateLimit      int      // requests per minute per client, 0 disables
	MaxUploadBytes int64
	// Convert are the rendering options applied to every request.
	Convert convert.Options
}

// ConfigFrom builds the server configuration from the loaded config.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Server.JWTSecret,
		RateLimit:      cfg.Server.RateLimit,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Convert:        convert.OptionsFromConfig(cfg),
	}
}

// Server is the conversion service.
type Server struct {
	cfg     Config
	conv    *convert.Converter
	limiter *RateLimiter
	router  chi.Router
	started time.Time
	clients clientCount
}

// New creates a server. Documents arrive from untrusted clients, so code
// blocks never run and local images are refused.
func New(cfg Config, conv *convert.Converter) (*Server, error) {
	if cfg.JWTSecret != "" {
		if err := ValidateSecret(cfg.JWTSecret); err != nil {
			return nil, fmt.Errorf("invalid auth config: %w", err)
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = config.Default().Server.MaxUploadBytes
	}
	cfg.Convert.RunCodeBlocks = false
	cfg.Convert.RestrictImages = true
	cfg.Convert.BaseDir = ""

	s := &Server{cfg: cfg, conv: conv, started: time.Now()}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(RateLimiterConfig{RequestsPerMinute: cfg.RateLimit})
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(logging.CombinedMiddleware, middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: len(s.cfg.AllowedOrigins) > 0,
		MaxAge:           300,
	}))

	r.With(SecurityHeaders(APICSPConfig())).Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		if s.cfg.JWTSecret != "" {
			r.Use(JWTMiddleware(s.cfg.JWTSecret))
		}
		r.Group(func(r chi.Router) {
			r.Use(SecurityHeaders(APICSPConfig()), middleware.Throttle(maxConcurrent))
			r.Post("/convert", s.handleConvert)
			r.Post("/check", s.handleCheck)
		})
		r.With(SecurityHeaders(SolutionsCSPConfig()), middleware.Throttle(maxConcurrent)).
			Post("/solutions", s.handleSolutions)
		r.Get("/ws", s.handleWebSocket)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	logSecurity(s.cfg)
	logging.ServerStartup(s.cfg.Addr,
		"rate_limit", s.cfg.RateLimit,
		"max_upload_bytes", s.cfg.MaxUploadBytes)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func logSecurity(cfg Config) {
	if cfg.JWTSecret != "" {
		logging.SecurityEvent("authentication_configured", "server", "enabled", true, "scheme", "bearer")
	} else {
		logging.SecurityEvent("authentication_configured", "server", "enabled", false,
			"note", "all requests allowed")
	}
	if len(cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "server",
			"mode", "restricted",
			"allowed_origins_count", len(cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "server",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}
}
