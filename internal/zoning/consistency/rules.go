// Package consistency cross-checks a model classification against the
// assessment evidence. Every result is advisory.
package consistency

import (
	"fmt"
	"strings"

	"brand-zoning/internal/models"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rule names, used as metric labels.
const (
	RuleLegalGate     = "legal_gate"
	RuleZone4Triggers = "zone4_triggers"
	RuleRevenueShare  = "zone1_revenue_share"
	RuleSubzone       = "zone3_subzone"
)

type Diagnostic struct {
	Rule     string                 `json:"rule"`
	Severity Severity               `json:"severity"`
	Message  string                 `json:"message"`
	Zone     string                 `json:"zone"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Field is a section.question reference into the assessment.
type Field struct {
	Section  string
	Question string
}

func (f Field) String() string { return f.Section + "." + f.Question }

// Heuristics names every assessment field the rules read.
type Heuristics struct {
	LegalRestriction Field
	Zone4Triggers    []Field

	Zone1RevenueShare     Field
	Zone1RevenueThreshold string

	Zone3Indicators       []Field
	Zone3RevenueShare     Field
	Zone3RevenueBands     []string
	Zone3Marketing        Field
	Zone3SharedMarketing  string
	Zone3IndependentValue string
}

func DefaultHeuristics() Heuristics {
	return Heuristics{
		LegalRestriction: Field{"zone5", "q1_legal_restriction"},
		Zone4Triggers: []Field{
			{"zone4", "q1_regulatory_separation"},
			{"zone4", "q2_channel_conflict"},
			{"zone4", "q3_reputational_risk"},
			{"zone4", "q4_contractual_independence"},
		},
		Zone1RevenueShare:     Field{"zone1", "q4_revenue_share"},
		Zone1RevenueThreshold: ">50%",
		Zone3Indicators: []Field{
			{"zone3", "q1_shared_customers"},
			{"zone3", "q2_shared_channels"},
			{"zone3", "q3_shared_technology"},
			{"zone3", "q4_cobranded_assets"},
		},
		Zone3RevenueShare:     Field{"zone3", "q5_revenue_share"},
		Zone3RevenueBands:     []string{"10-25%", "25-50%"},
		Zone3Marketing:        Field{"zone3", "q6_marketing_independence"},
		Zone3SharedMarketing:  "shared",
		Zone3IndependentValue: "independent",
	}
}

// Rule inspects one aspect of a classification. nil means no finding.
type Rule func(h Heuristics, a models.Assessment, s models.Summary) *Diagnostic

// Rules returns the rule set in evaluation order.
func Rules() []Rule {
	return []Rule{LegalGateRule, Zone4TriggerRule, RevenueShareRule, SubzoneRule}
}

// Evaluate runs every rule and collects the findings. It has no side effects.
// An empty summary carries no classification, so only the legal gate applies:
// a missing answer does not honour a mandatory zone 5 either.
func Evaluate(h Heuristics, a models.Assessment, s models.Summary) []Diagnostic {
	rules := Rules()
	if s.IsEmpty() {
		rules = []Rule{LegalGateRule}
	}
	var out []Diagnostic
	for _, rule := range rules {
		if d := rule(h, a, s); d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// LegalGateRule flags an active legal restriction that did not force zone 5.
func LegalGateRule(h Heuristics, a models.Assessment, s models.Summary) *Diagnostic {
	if !truthyAnswer(a, h.LegalRestriction) || s.Zone() == models.Zone5 {
		return nil
	}
	if s.IsEmpty() {
		return &Diagnostic{
			Rule:     RuleLegalGate,
			Severity: SeverityError,
			Message:  fmt.Sprintf("legal restriction is active (%s) but no classification was returned, expected zone 5", h.LegalRestriction),
			Details:  map[string]interface{}{"field": h.LegalRestriction.String(), "summaryMissing": true},
		}
	}
	return &Diagnostic{
		Rule:     RuleLegalGate,
		Severity: SeverityError,
		Zone:     s.Zone(),
		Message:  fmt.Sprintf("legal restriction is active (%s) but zone is %q, expected zone 5", h.LegalRestriction, s.Zone()),
		Details:  map[string]interface{}{"field": h.LegalRestriction.String()},
	}
}

// Zone4TriggerRule flags fired zone 4 triggers on a non zone 4 classification.
func Zone4TriggerRule(h Heuristics, a models.Assessment, s models.Summary) *Diagnostic {
	var fired []string
	for _, f := range h.Zone4Triggers {
		if truthyAnswer(a, f) {
			fired = append(fired, f.Question)
		}
	}
	if len(fired) == 0 || s.Zone() == models.Zone4 {
		return nil
	}
	return &Diagnostic{
		Rule:     RuleZone4Triggers,
		Severity: SeverityWarning,
		Zone:     s.Zone(),
		Message:  fmt.Sprintf("%d zone 4 trigger(s) fired (%s) but zone is %q", len(fired), strings.Join(fired, ", "), s.Zone()),
		Details:  map[string]interface{}{"triggers": fired},
	}
}

// RevenueShareRule flags a zone 1 classification with a revenue share that
// usually indicates another zone.
func RevenueShareRule(h Heuristics, a models.Assessment, s models.Summary) *Diagnostic {
	if s.Zone() != models.Zone1 || stringAnswer(a, h.Zone1RevenueShare) != h.Zone1RevenueThreshold {
		return nil
	}
	return &Diagnostic{
		Rule:     RuleRevenueShare,
		Severity: SeverityWarning,
		Zone:     s.Zone(),
		Message:  fmt.Sprintf("%s is %q but zone is 1", h.Zone1RevenueShare, h.Zone1RevenueThreshold),
		Details:  map[string]interface{}{"revenueShare": h.Zone1RevenueThreshold},
	}
}

// SubzoneRule checks a zone 3 subzone against the indicator score.
func SubzoneRule(h Heuristics, a models.Assessment, s models.Summary) *Diagnostic {
	if s.Zone() != models.Zone3 {
		return nil
	}
	score := Zone3Score(h, a)
	independent := strings.EqualFold(stringAnswer(a, h.Zone3Marketing), h.Zone3IndependentValue)
	subzone := s.Subzone()

	var msg string
	switch {
	case subzone == "A" && score < 2:
		msg = fmt.Sprintf("subzone A with indicator score %d, assignment is under-supported", score)
	case subzone == "B" && score >= 3:
		msg = fmt.Sprintf("subzone B with indicator score %d, subzone A may be warranted", score)
	case subzone == "C" && independent:
		msg = "subzone C with an independent marketing budget is usually inconsistent"
	default:
		return nil
	}
	return &Diagnostic{
		Rule:     RuleSubzone,
		Severity: SeverityWarning,
		Zone:     s.Zone(),
		Message:  msg,
		Details: map[string]interface{}{
			"subzone":           subzone,
			"score":             score,
			"independentBudget": independent,
		},
	}
}

// Zone3Score counts the shared-integration indicators for subzone selection.
func Zone3Score(h Heuristics, a models.Assessment) int {
	score := 0
	for _, f := range h.Zone3Indicators {
		if truthyAnswer(a, f) {
			score++
		}
	}
	share := stringAnswer(a, h.Zone3RevenueShare)
	for _, band := range h.Zone3RevenueBands {
		if share == band {
			score++
			break
		}
	}
	if strings.EqualFold(stringAnswer(a, h.Zone3Marketing), h.Zone3SharedMarketing) {
		score++
	}
	return score
}

func truthyAnswer(a models.Assessment, f Field) bool {
	v, ok := a.Answer(f.Section, f.Question)
	if !ok {
		return false
	}
	return Truthy(v)
}

func stringAnswer(a models.Assessment, f Field) string {
	v, _ := a.Answer(f.Section, f.Question)
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// Truthy accepts JSON true and the strings yes, true and y in any case.
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "true", "y":
			return true
		}
	}
	return false
}
