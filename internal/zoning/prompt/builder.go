// Package prompt composes the ordered, role-tagged prompt sent to the model.
package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"brand-zoning/internal/common/validation"
	"brand-zoning/internal/models"
)

// Role tags a prompt segment. Segment order is fixed: policy, formatting, payload.
type Role string

const (
	RolePolicy     Role = "policy"
	RoleFormatting Role = "formatting-instructions"
	RolePayload    Role = "payload"
)

// WireRole is the chat role the segment is sent under.
func (r Role) WireRole() string {
	switch r {
	case RolePolicy:
		return "system"
	case RoleFormatting:
		return "developer"
	default:
		return "user"
	}
}

const (
	RulesBeginMarker = "=== RULES FILE (if provided) ==="
	RulesEndMarker   = "=== END RULES FILE ==="

	payloadHeader    = "ASSESSMENT JSON:\n"
	payloadDirective = "\n\nFollow all formatting + precedence rules exactly."
)

var (
	//go:embed templates/policy.md
	defaultPolicyTemplate string

	//go:embed templates/formatting.md
	defaultFormattingInstructions string
)

// DefaultFormattingInstructions returns the embedded developer instructions.
func DefaultFormattingInstructions() string { return defaultFormattingInstructions }

type Segment struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Bundle is the full prompt plus the response-shape contract sent as a hint.
type Bundle struct {
	Segments []Segment
	Schema   validation.JSONSchema
}

// Segment returns the content for role, or "" when absent.
func (b Bundle) Segment(role Role) string {
	for _, s := range b.Segments {
		if s.Role == role {
			return s.Content
		}
	}
	return ""
}

// Builder renders bundles. The policy segment is rendered once at construction
// because the rules text is constant for the process lifetime.
type Builder struct {
	policy     string
	formatting string
}

type options struct {
	policyTemplate string
	formatting     string
}

type Option func(*options)

// WithPolicyTemplate replaces the embedded policy template. It must reference {{.Rules}}.
func WithPolicyTemplate(tmpl string) Option {
	return func(o *options) {
		if strings.TrimSpace(tmpl) != "" {
			o.policyTemplate = tmpl
		}
	}
}

// WithFormattingInstructions replaces the embedded developer instructions.
func WithFormattingInstructions(text string) Option {
	return func(o *options) {
		if strings.TrimSpace(text) != "" {
			o.formatting = text
		}
	}
}

func NewBuilder(rulesText string, opts ...Option) (*Builder, error) {
	o := options{
		policyTemplate: defaultPolicyTemplate,
		formatting:     defaultFormattingInstructions,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !strings.Contains(o.policyTemplate, "{{.Rules}}") {
		return nil, fmt.Errorf("policy template must contain {{.Rules}}")
	}
	tmpl, err := template.New("policy").Parse(o.policyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse policy template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Rules string }{Rules: neutralizeMarkers(rulesText)}); err != nil {
		return nil, fmt.Errorf("render policy template: %w", err)
	}

	return &Builder{policy: buf.String(), formatting: o.formatting}, nil
}

// Build assembles the three segments for one assessment.
func (b *Builder) Build(assessment models.Assessment) (Bundle, error) {
	payload, err := encodePayload(assessment)
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{
		Segments: []Segment{
			{Role: RolePolicy, Content: b.policy},
			{Role: RoleFormatting, Content: b.formatting},
			{Role: RolePayload, Content: payloadHeader + payload + payloadDirective},
		},
		Schema: ResponseSchema(),
	}, nil
}

// Policy returns the rendered policy segment.
func (b *Builder) Policy() string { return b.policy }

func encodePayload(assessment models.Assessment) (string, error) {
	if assessment == nil {
		assessment = models.Assessment{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(assessment); err != nil {
		return "", fmt.Errorf("encode assessment: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// neutralizeMarkers stops rules text from closing the rules block early.
func neutralizeMarkers(rulesText string) string {
	if !strings.Contains(rulesText, RulesBeginMarker) && !strings.Contains(rulesText, RulesEndMarker) {
		return rulesText
	}
	lines := strings.Split(rulesText, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == RulesBeginMarker || trimmed == RulesEndMarker {
			lines[i] = line + " (quoted)"
		}
	}
	return strings.Join(lines, "\n")
}
