package optimizer

import (
	"time"

	"github.com/transitionlab/fleetpath/core/aggregate"
	"github.com/transitionlab/fleetpath/core/constraint"
	"github.com/transitionlab/fleetpath/core/model"
)

// BindingConstraint names a constraint family that prevented a feasible
// allocation. Ramp and target-trajectory are solver constraints; the others
// mirror the constraint rule kinds that enter the LP as share bounds.
type BindingConstraint string

const (
	BindingRamp      BindingConstraint = "ramp"
	BindingTarget    BindingConstraint = "target_trajectory"
	BindingReadiness BindingConstraint = "technology_readiness"
	BindingMarket    BindingConstraint = "market_penetration"
	BindingPolicy    BindingConstraint = "policy_bound"
)

// Result is the complete outcome of one scenario solve. All fields are
// read-only for consumers.
type Result struct {
	RunID       string `json:"run_id"`
	ScenarioID  string `json:"scenario_id"`
	Fingerprint string `json:"fingerprint"`

	Status      model.Status              `json:"status"`
	Allocations []model.YearAllocation    `json:"allocations"`
	Tree        aggregate.Tree            `json:"tree"`
	Report      constraint.Report         `json:"report"`
	Relaxations []model.AppliedRelaxation `json:"relaxations,omitempty"`
	// Binding holds the minimal conflicting constraint set when the status
	// is infeasible.
	Binding []BindingConstraint `json:"binding,omitempty"`

	BaselineEmissions float64 `json:"baseline_emissions"`
	// FinalReduction is the cumulative reduction achieved in the last
	// committed year, as a fraction of baseline emissions.
	FinalReduction float64 `json:"final_reduction"`
	// BehindTarget is set when the target trajectory was relaxed for at
	// least one year.
	BehindTarget bool `json:"behind_target"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// TargetAchieved reports whether the scenario's final reduction target was
// met by the last committed year.
func (r Result) TargetAchieved(target float64) bool {
	return r.Status == model.StatusComplete && r.FinalReduction >= target-model.ShareTol
}
