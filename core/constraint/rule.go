package constraint

import "math"

// Kind enumerates the constraint rule kinds. Each kind has exactly one
// evaluator, registered in the fixed table below.
type Kind int

const (
	KindTechnologyReadiness Kind = iota
	KindMarketPenetration
	KindInfrastructureCapacity
	KindCostCeiling
	KindPolicyBound
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTechnologyReadiness:
		return "technology_readiness"
	case KindMarketPenetration:
		return "market_penetration"
	case KindInfrastructureCapacity:
		return "infrastructure_capacity"
	case KindCostCeiling:
		return "cost_ceiling"
	case KindPolicyBound:
		return "policy_bound"
	default:
		return "unknown"
	}
}

// Severity grades a violation by how far the candidate exceeds the threshold.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns a human-readable representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// severityFor grades the proportional overshoot: below 10% over threshold is
// a warning, 10% or more is critical.
func severityFor(observed, threshold float64) Severity {
	if threshold <= 0 {
		return SeverityCritical
	}
	over := (observed - threshold) / math.Abs(threshold)
	if over >= 0.10 {
		return SeverityCritical
	}
	return SeverityWarning
}

// Violation describes one violated rule instance.
type Violation struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	// Scope is the vehicle type identifier, or "global" for fleet-wide rules.
	Scope      string  `json:"scope"`
	Pathway    string  `json:"pathway,omitempty"`
	Year       int     `json:"year"`
	Observed   float64 `json:"observed"`
	Threshold  float64 `json:"threshold"`
	Mitigation string  `json:"mitigation"`
}

// Report is the ordered set of violations produced by one validation pass.
type Report struct {
	Violations []Violation `json:"violations"`
	Compliant  bool        `json:"compliant"`
}

// Merge appends the other report's violations and combines compliance.
func (r *Report) Merge(other Report) {
	r.Violations = append(r.Violations, other.Violations...)
	r.Compliant = r.Compliant && other.Compliant
}

// CriticalCount returns the number of critical violations.
func (r Report) CriticalCount() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == SeverityCritical {
			n++
		}
	}
	return n
}
