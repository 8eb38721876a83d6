// Package summary pulls the machine-readable block out of the model's report.
package summary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"brand-zoning/internal/common/logger"
	"brand-zoning/internal/common/metrics"
	"brand-zoning/internal/common/validation"
	"brand-zoning/internal/models"
	"brand-zoning/internal/zoning/prompt"
)

type Status string

const (
	StatusFound     Status = "found"
	StatusMissing   Status = "missing"
	StatusMalformed Status = "malformed"
)

// Extraction is the tagged result. Summary is empty unless Status is StatusFound.
type Extraction struct {
	Summary models.Summary
	Status  Status
	// Err is the decode failure for StatusMalformed.
	Err error
}

// Only the first ```json fence is considered, even if it fails to decode.
var fencedJSON = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// Extract decodes the first fenced json object in raw. It never panics.
func Extract(raw string) Extraction {
	match := fencedJSON.FindStringSubmatch(raw)
	if match == nil {
		return Extraction{Summary: models.Summary{}, Status: StatusMissing}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(match[1])))
	dec.UseNumber()

	var out models.Summary
	if err := dec.Decode(&out); err != nil {
		return Extraction{Summary: models.Summary{}, Status: StatusMalformed, Err: err}
	}
	if tok, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Extraction{Summary: models.Summary{}, Status: StatusMalformed, Err: fmt.Errorf("unexpected content after summary object: %v", tok)}
	}
	if out == nil {
		out = models.Summary{}
	}
	return Extraction{Summary: out, Status: StatusFound}
}

// Extractor wraps Extract with logging, metrics and an advisory contract check.
type Extractor struct {
	schema validation.JSONSchema
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{
		schema: prompt.ResponseSchema(),
		logger: log.With(map[string]interface{}{"component": "summary"}),
	}
}

// Extract returns the decoded summary. Contract violations are logged and
// counted, the summary is still returned unchanged.
func (e *Extractor) Extract(raw string, requestID string) Extraction {
	result := Extract(raw)
	metrics.SummaryExtractions.WithLabelValues(string(result.Status)).Inc()

	switch result.Status {
	case StatusMissing:
		e.logger.Warn("No machine-readable summary block in model response", map[string]interface{}{
			"requestId":      requestID,
			"responseLength": len(raw),
		})
	case StatusMalformed:
		e.logger.Warn("Failed to parse JSON summary", map[string]interface{}{
			"requestId": requestID,
			"error":     result.Err.Error(),
		})
	case StatusFound:
		e.checkContract(result.Summary, requestID)
	}
	return result
}

func (e *Extractor) checkContract(s models.Summary, requestID string) {
	res, err := validation.Validate(s, e.schema)
	if err != nil {
		e.logger.Debug("Summary contract check skipped", map[string]interface{}{
			"requestId": requestID,
			"error":     err.Error(),
		})
		return
	}
	if res.Valid {
		return
	}
	metrics.SummarySchemaViolations.Inc()
	e.logger.Warn("Summary does not match response contract", map[string]interface{}{
		"requestId":  requestID,
		"violations": res.GetErrorMessages(),
	})
}
