// Package report orchestrates one zone classification.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "brand-zoning/internal/common/errors"
	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/common/metrics"
	"brand-zoning/internal/common/observability"
	"brand-zoning/internal/models"
	"brand-zoning/internal/zoning/gateway"
	"brand-zoning/internal/zoning/prompt"
	"brand-zoning/internal/zoning/summary"
)

// Caller is satisfied by *gateway.Gateway.
type Caller interface {
	Call(ctx context.Context, bundle prompt.Bundle) (string, error)
}

// Validator is satisfied by *consistency.Validator.
type Validator interface {
	Validate(ctx context.Context, a models.Assessment, s models.Summary, requestID string)
}

// ServiceError is the only failure GenerateReport returns.
type ServiceError struct {
	Code    apperrors.ErrorCode
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// StandardError converts to the boundary error type.
func (e *ServiceError) StandardError() *apperrors.StandardError {
	if e.Code == apperrors.ErrCodeServiceUnavailable {
		return apperrors.NewServiceUnavailableError("OpenAI", rootCause(e.Cause))
	}
	return apperrors.NewInternalError(e.Cause)
}

// rootCause strips the gateway wrapper so callers see the upstream failure.
func rootCause(err error) error {
	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) && gwErr.Cause != nil {
		var stdErr *apperrors.StandardError
		if errors.As(gwErr.Cause, &stdErr) && stdErr.Unwrap() != nil {
			return stdErr.Unwrap()
		}
		return gwErr.Cause
	}
	return err
}

type Service struct {
	builder   *prompt.Builder
	caller    Caller
	extractor *summary.Extractor
	validator Validator
	obs       *observability.Observability
	logger    logger.Logger
}

func NewService(builder *prompt.Builder, caller Caller, extractor *summary.Extractor, validator Validator, obs *observability.Observability, log logger.Logger) *Service {
	return &Service{
		builder:   builder,
		caller:    caller,
		extractor: extractor,
		validator: validator,
		obs:       obs,
		logger:    log.With(map[string]interface{}{"component": "report"}),
	}
}

// GenerateReport builds the prompt, calls the model, and decodes the summary.
// Extraction and consistency problems degrade the result, they never fail it.
func (s *Service) GenerateReport(ctx context.Context, assessment models.Assessment, requestID string) (result models.ReportResult, err error) {
	start := time.Now()
	brand := assessment.Brand()

	ctx, span := s.obs.StartSpan(ctx, "report.generate",
		attribute.String("brand", brand),
		attribute.String("request.id", requestID),
	)
	defer span.End()
	traceID := observability.TraceID(ctx)

	defer func() {
		if r := recover(); r != nil {
			err = &ServiceError{Code: apperrors.ErrCodeInternal, Message: "internal error", Cause: fmt.Errorf("panic: %v", r)}
		}
		status := metrics.OutcomeSuccess
		if err != nil {
			status = metrics.OutcomeError
			var svcErr *ServiceError
			if errors.As(err, &svcErr) && svcErr.Code == apperrors.ErrCodeServiceUnavailable {
				status = metrics.OutcomeUnavailable
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		metrics.ZoneRequests.WithLabelValues(status).Inc()
		s.obs.RecordReportDuration(ctx, time.Since(start), status)
		if err == nil {
			s.obs.RecordReport(ctx, status, result.Summary.Zone())
		}
	}()

	s.logger.Info("Generating zone report", map[string]interface{}{
		"requestId": requestID,
		"traceId":   traceID,
		"brand":     brand,
	})

	bundle, err := s.builder.Build(assessment)
	if err != nil {
		return models.ReportResult{}, &ServiceError{Code: apperrors.ErrCodeInternal, Message: "failed to build prompt", Cause: err}
	}

	raw, err := s.caller.Call(ctx, bundle)
	if err != nil {
		var gwErr *gateway.GatewayError
		if errors.As(err, &gwErr) {
			return models.ReportResult{}, &ServiceError{Code: apperrors.ErrCodeServiceUnavailable, Message: "model service unavailable", Cause: err}
		}
		return models.ReportResult{}, &ServiceError{Code: apperrors.ErrCodeInternal, Message: "model call failed", Cause: err}
	}

	extraction := s.extractor.Extract(raw, requestID)
	if s.validator != nil {
		s.validator.Validate(ctx, assessment, extraction.Summary, requestID)
	}

	fields := map[string]interface{}{
		"requestId":     requestID,
		"traceId":       traceID,
		"brand":         brand,
		"zone":          extraction.Summary.Zone(),
		"zoneName":      extraction.Summary.ZoneName(),
		"summaryStatus": string(extraction.Status),
		"elapsedMs":     time.Since(start).Milliseconds(),
	}
	if conf, ok := extraction.Summary.Confidence(); ok {
		fields["confidence"] = conf
	}
	s.logger.Info("Zone report generated", fields)
	span.SetAttributes(
		attribute.String("zone", extraction.Summary.Zone()),
		attribute.String("summary.status", string(extraction.Status)),
	)

	return models.ReportResult{ReportMarkdown: raw, Summary: extraction.Summary}, nil
}
