// internal/models/zone.go
package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Zone identifiers produced by the classification policy.
const (
	Zone1 = "1"
	Zone3 = "3"
	Zone4 = "4"
	Zone5 = "5"
)

// ZoneIDs and ZoneNames are index-aligned.
var (
	ZoneIDs   = []string{Zone1, Zone3, Zone4, Zone5}
	ZoneNames = []string{
		"Full Masterbrand Integration",
		"Endorsed Brand",
		"High-Stakes Independence",
		"Legal/Accounting/Integration Hold",
	}
)

// ZoneName returns the canonical name for a zone identifier, or "" when unknown.
func ZoneName(zone string) string {
	for i, id := range ZoneIDs {
		if id == zone {
			return ZoneNames[i]
		}
	}
	return ""
}

// Assessment is the caller's questionnaire payload, forwarded verbatim to the model.
type Assessment map[string]interface{}

// Brand returns the brand name used for logging, "Unknown" when absent.
func (a Assessment) Brand() string {
	if s, ok := a["brand"].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return "Unknown"
}

// Section returns the nested answers for a zone section such as "zone4".
func (a Assessment) Section(name string) map[string]interface{} {
	if m, ok := a[name].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// Answer looks up section.question. ok is false when either level is missing.
func (a Assessment) Answer(section, question string) (interface{}, bool) {
	s := a.Section(section)
	if s == nil {
		return nil, false
	}
	v, ok := s[question]
	return v, ok
}

// Summary is the best-effort decode of the model's machine-readable block.
// An empty Summary is a valid degraded value.
type Summary map[string]interface{}

func (s Summary) str(key string) string {
	v, _ := s[key].(string)
	return v
}

func (s Summary) Brand() string    { return s.str("brand") }
func (s Summary) Zone() string     { return zoneID(s["zone"]) }
func (s Summary) ZoneName() string { return s.str("zone_name") }
func (s Summary) Subzone() string  { return strings.ToUpper(strings.TrimSpace(s.str("subzone"))) }

// zoneID reads a zone the model emitted as a string or a bare number.
func zoneID(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

// Confidence returns the integer confidence when present and numeric.
func (s Summary) Confidence() (int, bool) {
	switch v := s["confidence"].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
		if f, err := v.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i, true
		}
	}
	return 0, false
}

// IsEmpty reports whether nothing was extracted.
func (s Summary) IsEmpty() bool { return len(s) == 0 }

// ReportResult is the response of one zoning request.
type ReportResult struct {
	ReportMarkdown string  `json:"report_markdown"`
	Summary        Summary `json:"summary"`
}
