package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dataask/dataask/core/infrastructure/transport/http/middleware"
	"github.com/dataask/dataask/core/logger"
)

// DefaultPort is used when Options.Port is empty.
const DefaultPort = "8000"

// Options configures a Server.
type Options struct {
	Port        string
	CORSOrigins []string
	// RequestTimeout bounds every handler. Manual runs of scheduled queries
	// can take a while, so keep it above the scheduler run timeout.
	RequestTimeout time.Duration

	// RateLimiter is optional; RateLimit requests are allowed per
	// RateWindow and client address.
	RateLimiter middleware.RateLimiter
	RateLimit   int
	RateWindow  time.Duration
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	port   string
	log    logger.Logger
}

// NewServer creates a new HTTP server
func NewServer(opts Options) *Server {
	if opts.Port == "" {
		opts.Port = DefaultPort
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(opts.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", middleware.UserIDHeader},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Identity)
	r.Use(middleware.Metrics)
	r.Use(middleware.Tracing)
	if opts.RateLimiter != nil && opts.RateLimit > 0 {
		r.Use(middleware.RateLimitByIP(opts.RateLimiter, opts.RateLimit, opts.RateWindow))
	}

	return &Server{
		router: r,
		port:   opts.Port,
		log:    logger.New("http"),
	}
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves in the background. Listen errors after startup are logged.
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on port %s", s.port)

	s.server = &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.log.Successf("HTTP server listening on http://127.0.0.1:%s", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Infof("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Errorf("Error shutting down HTTP server: %v", err)
		if closeErr := s.server.Close(); closeErr != nil {
			s.log.Errorf("Error force closing HTTP server: %v", closeErr)
		}
		return err
	}

	s.log.Infof("HTTP server stopped")
	return nil
}
