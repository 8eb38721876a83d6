// Package server exposes the zoning pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brand-zoning/internal/common/auth"
	apperrors "brand-zoning/internal/common/errors"
	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/common/ratelimit"
	"brand-zoning/internal/models"
)

const (
	ServiceName = "Brand Zoning API"
	// maxBodyBytes bounds accepted assessment payloads.
	maxBodyBytes = 1 << 20
)

// ReportGenerator is satisfied by *report.Service.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, assessment models.Assessment, requestID string) (models.ReportResult, error)
}

// RateLimiter is satisfied by *ratelimit.Limiter.
type RateLimiter interface {
	Allow(ctx context.Context, client string) (ratelimit.Decision, error)
	Limit() int
	Window() time.Duration
}

// Status is the static information reported by /health and /.
type Status struct {
	Version          string
	Model            string
	OpenAIConfigured bool
	RulesLoaded      bool
}

type Config struct {
	Reports     ReportGenerator
	Auth        *auth.APIKeyAuthenticator
	Limiter     RateLimiter // nil disables rate limiting
	CORSOrigins []string
	Status      Status
	Logger      logger.Logger
}

type Server struct {
	cfg    Config
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func New(cfg Config) *Server {
	if cfg.Auth == nil {
		cfg.Auth = auth.NewAPIKeyAuthenticator("X-API-Key", nil)
	}
	log := cfg.Logger.With(map[string]interface{}{"component": "http"})
	return &Server{
		cfg:    cfg,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(s.cfg.CORSOrigins, s.cfg.Auth.Header()))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		if s.cfg.Limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Post("/zone", s.handleZone)
	})

	return r
}

// HTTPServer wraps Router in an *http.Server for addr.
func (s *Server) HTTPServer(addr string, requestTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Long enough for every retry of a slow model call.
		WriteTimeout: requestTimeout,
	}
}
