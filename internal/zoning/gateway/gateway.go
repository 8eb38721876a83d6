// Package gateway issues the model call with bounded exponential-backoff retry.
package gateway

import (
	"context"
	"fmt"
	"time"

	apperrors "brand-zoning/internal/common/errors"
	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/common/metrics"
	"brand-zoning/internal/zoning/prompt"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Request is one model invocation.
type Request struct {
	Model       string
	Temperature float64
	Bundle      prompt.Bundle
}

// Completer performs a single model attempt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// GatewayError is returned once the retry budget is spent.
type GatewayError struct {
	Attempts int
	Cause    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("model call failed after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *GatewayError) Unwrap() error { return e.Cause }

type Options struct {
	Model       string
	Temperature float64
	MaxRetries  int
	BaseDelay   time.Duration
}

type sleeper func(ctx context.Context, d time.Duration) error

type Gateway struct {
	completer Completer
	opts      Options
	logger    logger.Logger
	sleep     sleeper
}

func New(completer Completer, opts Options, log logger.Logger) *Gateway {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	return &Gateway{
		completer: completer,
		opts:      opts,
		logger:    log,
		sleep:     sleepContext,
	}
}

func (g *Gateway) Model() string { return g.opts.Model }

// MaxElapsed is the worst-case wall time of Call given a per-attempt timeout.
func (g *Gateway) MaxElapsed(attemptTimeout time.Duration) time.Duration {
	total := time.Duration(g.opts.MaxRetries) * attemptTimeout
	for i := 0; i < g.opts.MaxRetries-1; i++ {
		total += g.opts.BaseDelay * time.Duration(1<<uint(i))
	}
	return total
}

// Call returns the raw model text. Retryable failures are retried up to
// MaxRetries attempts total, waiting BaseDelay*2^i before attempt i+2.
// Any other failure is returned after the attempt that produced it.
func (g *Gateway) Call(ctx context.Context, bundle prompt.Bundle) (string, error) {
	start := time.Now()
	req := Request{Model: g.opts.Model, Temperature: g.opts.Temperature, Bundle: bundle}

	g.logger.Debug("Sending model request", map[string]interface{}{
		"model":             req.Model,
		"temperature":       req.Temperature,
		"policyLength":      len(bundle.Segment(prompt.RolePolicy)),
		"formattingLength":  len(bundle.Segment(prompt.RoleFormatting)),
		"payloadLength":     len(bundle.Segment(prompt.RolePayload)),
		"maxAttempts":       g.opts.MaxRetries,
		"schemaHintEnabled": len(bundle.Schema.Properties) > 0,
	})

	var lastErr error
	for attempt := 0; attempt < g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.opts.BaseDelay * time.Duration(1<<uint(attempt-1))
			if err := g.sleep(ctx, delay); err != nil {
				g.observe(metrics.OutcomeFatalError, start)
				return "", fmt.Errorf("model call cancelled during backoff: %w", err)
			}
		}

		g.logger.Info("Model API call attempt", map[string]interface{}{
			"attempt":     attempt + 1,
			"maxAttempts": g.opts.MaxRetries,
		})

		text, err := g.completer.Complete(ctx, req)
		if err == nil {
			metrics.ModelCallAttempts.WithLabelValues(metrics.OutcomeSuccess).Inc()
			g.observe(metrics.OutcomeSuccess, start)
			return text, nil
		}
		lastErr = err

		if !apperrors.IsRetryable(err) {
			metrics.ModelCallAttempts.WithLabelValues(metrics.OutcomeFatalError).Inc()
			g.observe(metrics.OutcomeFatalError, start)
			g.logger.Error("Model call failed with non-retryable error", map[string]interface{}{
				"attempt": attempt + 1,
				"error":   err.Error(),
			})
			return "", err
		}

		metrics.ModelCallAttempts.WithLabelValues(metrics.OutcomeRetryableError).Inc()
		g.logger.Warn("Model API attempt failed", map[string]interface{}{
			"attempt":     attempt + 1,
			"maxAttempts": g.opts.MaxRetries,
			"error":       err.Error(),
		})
	}

	g.observe(metrics.OutcomeExhausted, start)
	g.logger.Error("Model API failed after all attempts", map[string]interface{}{
		"attempts": g.opts.MaxRetries,
		"error":    lastErr.Error(),
	})
	return "", &GatewayError{Attempts: g.opts.MaxRetries, Cause: lastErr}
}

func (g *Gateway) observe(outcome string, start time.Time) {
	metrics.ModelCallDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
