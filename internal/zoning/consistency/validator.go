package consistency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brand-zoning/internal/common/aws"
	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/common/metrics"
	"brand-zoning/internal/models"
)

// Sink receives diagnostics for one classification.
type Sink interface {
	Emit(ctx context.Context, requestID string, brand string, diags []Diagnostic)
}

// Validator runs the rules and fans findings out to sinks. It never fails
// and never modifies the summary.
type Validator struct {
	heuristics Heuristics
	sinks      []Sink
	logger     logger.Logger
}

func NewValidator(h Heuristics, log logger.Logger, sinks ...Sink) *Validator {
	return &Validator{heuristics: h, sinks: sinks, logger: log}
}

func (v *Validator) Validate(ctx context.Context, a models.Assessment, s models.Summary, requestID string) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Consistency validation panicked", map[string]interface{}{
				"requestId": requestID,
				"panic":     fmt.Sprint(r),
			})
		}
	}()

	diags := Evaluate(v.heuristics, a, s)
	if len(diags) == 0 {
		return
	}
	for _, sink := range v.sinks {
		v.emit(ctx, sink, requestID, a.Brand(), diags)
	}
}

// emit isolates sinks from each other.
func (v *Validator) emit(ctx context.Context, sink Sink, requestID, brand string, diags []Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("Diagnostic sink panicked", map[string]interface{}{
				"requestId": requestID,
				"sink":      fmt.Sprintf("%T", sink),
				"panic":     fmt.Sprint(r),
			})
		}
	}()
	sink.Emit(ctx, requestID, brand, diags)
}

// LogSink writes each diagnostic at its severity.
type LogSink struct {
	logger logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{logger: log.With(map[string]interface{}{"component": "consistency"})}
}

func (l *LogSink) Emit(_ context.Context, requestID, brand string, diags []Diagnostic) {
	for _, d := range diags {
		fields := map[string]interface{}{
			"requestId": requestID,
			"brand":     brand,
			"rule":      d.Rule,
			"zone":      d.Zone,
		}
		for k, val := range d.Details {
			fields[k] = val
		}
		if d.Severity == SeverityError {
			l.logger.Error("Consistency violation: "+d.Message, fields)
		} else {
			l.logger.Warn("Consistency check: "+d.Message, fields)
		}
	}
}

// MetricsSink counts diagnostics by rule and severity.
type MetricsSink struct{}

func (MetricsSink) Emit(_ context.Context, _ string, _ string, diags []Diagnostic) {
	for _, d := range diags {
		metrics.ConsistencyDiagnostics.WithLabelValues(d.Rule, string(d.Severity)).Inc()
	}
}

// AlertPublisher is satisfied by *aws.SNSPublisher.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, alert aws.Alert) (string, error)
}

// AlertSink publishes error-severity diagnostics. Publishing runs detached
// from the request so a slow topic never delays the response.
type AlertSink struct {
	publisher AlertPublisher
	logger    logger.Logger
	timeout   time.Duration
	// async is false in tests.
	async bool
}

func NewAlertSink(publisher AlertPublisher, log logger.Logger) *AlertSink {
	return &AlertSink{publisher: publisher, logger: log, timeout: 5 * time.Second, async: true}
}

type alertPayload struct {
	RequestID   string       `json:"requestId"`
	Brand       string       `json:"brand"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func (s *AlertSink) Emit(_ context.Context, requestID, brand string, diags []Diagnostic) {
	var errs []Diagnostic
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) == 0 {
		return
	}

	body, err := json.Marshal(alertPayload{RequestID: requestID, Brand: brand, Diagnostics: errs})
	if err != nil {
		s.logger.Warn("Failed to encode consistency alert", map[string]interface{}{"requestId": requestID, "error": err.Error()})
		return
	}
	alert := aws.Alert{
		Subject: fmt.Sprintf("Zoning gate violation: %s", brand),
		Message: string(body),
		Attributes: map[string]string{
			"severity":  string(SeverityError),
			"rule":      errs[0].Rule,
			"requestId": requestID,
		},
	}

	if s.async {
		go s.publish(requestID, alert)
		return
	}
	s.publish(requestID, alert)
}

func (s *AlertSink) publish(requestID string, alert aws.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	id, err := s.publisher.PublishAlert(ctx, alert)
	if err != nil {
		s.logger.Warn("Failed to publish consistency alert", map[string]interface{}{
			"requestId": requestID,
			"error":     err.Error(),
		})
		return
	}
	s.logger.Debug("Published consistency alert", map[string]interface{}{
		"requestId": requestID,
		"messageId": id,
	})
}
