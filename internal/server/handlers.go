package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "brand-zoning/internal/common/errors"
	"brand-zoning/internal/models"
	"brand-zoning/internal/zoning/report"
)

type healthResponse struct {
	Status      string `json:"status"`
	OpenAI      string `json:"openai"`
	RulesLoaded bool   `json:"rules_loaded"`
	Model       string `json:"model"`
}

type rootResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Name:      ServiceName,
		Version:   s.cfg.Status.Version,
		Endpoints: []string{"POST /zone", "GET /health", "GET /metrics"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	openai := "missing"
	if s.cfg.Status.OpenAIConfigured {
		openai = "configured"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		OpenAI:      openai,
		RulesLoaded: s.cfg.Status.RulesLoaded,
		Model:       s.cfg.Status.Model,
	})
}

// decodeAssessment accepts exactly one JSON object. Numbers stay json.Number
// so the payload reaches the model unchanged.
func decodeAssessment(w http.ResponseWriter, r *http.Request) (models.Assessment, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.NewInvalidRequestError("body exceeds 1 MiB")
		}
		return nil, apperrors.NewInvalidRequestError("could not read body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, apperrors.NewInvalidRequestError("body must be valid JSON")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.NewInvalidRequestError("body must contain a single JSON object")
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, apperrors.NewInvalidRequestError("body must be a JSON object")
	}
	return models.Assessment(obj), nil
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(r)

	assessment, err := decodeAssessment(w, r)
	if err != nil {
		s.errors.WriteHTTPError(w, r, reqID, err)
		return
	}

	result, err := s.cfg.Reports.GenerateReport(r.Context(), assessment, reqID)
	if err != nil {
		var svcErr *report.ServiceError
		if errors.As(err, &svcErr) {
			err = svcErr.StandardError()
		}
		s.errors.WriteHTTPError(w, r, reqID, err)
		return
	}

	if result.Summary == nil {
		result.Summary = models.Summary{}
	}
	writeJSON(w, http.StatusOK, result)
}
