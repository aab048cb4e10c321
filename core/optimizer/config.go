package optimizer

import "time"

// Config defines engine-level solver settings. Scenario-specific knobs
// (ramp, thresholds, relaxation policy) live on the ScenarioDefinition.
type Config struct {
	// WaterfillThreshold is the vehicle-type count above which the joint LP
	// is replaced by the iterative proportional-adjustment pass.
	WaterfillThreshold int `json:"waterfill_threshold"`
	// WaterfillMaxRounds bounds the redistribution rounds per year.
	WaterfillMaxRounds int `json:"waterfill_max_rounds"`
	// YearBudget is the default wall-clock budget per year step, used when
	// the scenario does not set one.
	YearBudgetSeconds int `json:"year_budget_seconds"`
	// Parallelism bounds concurrent per-type work within a year. Zero means
	// one goroutine per vehicle type.
	Parallelism int `json:"parallelism"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.WaterfillThreshold <= 0 {
		c.WaterfillThreshold = 8
	}
	if c.WaterfillMaxRounds <= 0 {
		c.WaterfillMaxRounds = 32
	}
	if c.YearBudgetSeconds <= 0 {
		c.YearBudgetSeconds = 30
	}
}

// YearBudget returns the default per-year budget as a duration.
func (c Config) YearBudget() time.Duration {
	return time.Duration(c.YearBudgetSeconds) * time.Second
}
