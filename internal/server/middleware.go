package server

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	apperrors "brand-zoning/internal/common/errors"
	"brand-zoning/internal/common/metrics"
)

// requestID returns chi's request id, minting one when the middleware is absent.
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))

		next.ServeHTTP(ww, r)

		fields := map[string]interface{}{
			"requestId":  middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(start).Milliseconds(),
			"remoteAddr": r.RemoteAddr,
		}
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			s.logger.Debug("HTTP request", fields)
			return
		}
		s.logger.Info("HTTP request", fields)
	})
}

// corsHandler allows the configured origins; "*" allows any. Credentials are
// only advertised when every origin is listed explicitly.
func corsHandler(origins []string, apiKeyHeader string) func(http.Handler) http.Handler {
	allowAny := false
	for _, o := range origins {
		if o == "*" {
			allowAny = true
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", apiKeyHeader},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: !allowAny,
		MaxAge:           600,
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := s.cfg.Auth
		if !a.Enabled() || a.Verify(r.Header.Get(a.Header())) {
			next.ServeHTTP(w, r)
			return
		}
		detail := "invalid key"
		if strings.TrimSpace(r.Header.Get(a.Header())) == "" {
			detail = "missing " + a.Header() + " header"
		}
		s.errors.WriteHTTPError(w, r, requestID(r), apperrors.NewUnauthorizedError(detail))
	})
}

// clientKey identifies the budget owner: the API key digest when present,
// otherwise the client address.
func (s *Server) clientKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(s.cfg.Auth.Header())); key != "" {
		sum := sha256.Sum256([]byte(key))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP stores a bare address.
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision, err := s.cfg.Limiter.Allow(r.Context(), s.clientKey(r))
		if err != nil {
			s.logger.Warn("Rate limiter unavailable, allowing request", map[string]interface{}{
				"requestId": requestID(r),
				"error":     err.Error(),
			})
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			metrics.RateLimitRejections.Inc()
			retry := int(decision.ResetIn.Seconds() + 0.999)
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			s.errors.WriteHTTPError(w, r, requestID(r), apperrors.NewRateLimitedError(s.cfg.Limiter.Limit(), s.cfg.Limiter.Window()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
