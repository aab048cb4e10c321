package model

import "fmt"

// EmissionsBasis selects which emissions factor drives the objective and the
// target-trajectory constraint.
type EmissionsBasis int

const (
	BasisLifecycle EmissionsBasis = iota
	BasisTailpipe
)

// String returns a human-readable representation of the basis.
func (b EmissionsBasis) String() string {
	switch b {
	case BasisLifecycle:
		return "lifecycle"
	case BasisTailpipe:
		return "tailpipe"
	default:
		return "unknown"
	}
}

// PathwaySpec describes one fuel/technology option available to a vehicle
// type: its emissions intensity, relative cost and maturity.
type PathwaySpec struct {
	Pathway string `json:"pathway"`
	// TailpipeFactor and LifecycleFactor are kg CO2e per km.
	TailpipeFactor  float64 `json:"tailpipe_factor"`
	LifecycleFactor float64 `json:"lifecycle_factor"`
	// CostFactor is the relative operating cost per km.
	CostFactor float64 `json:"cost_factor"`
	// ReadinessLevel is the ordinal technology-readiness level, 1-9.
	ReadinessLevel int `json:"readiness_level"`
}

// EmissionsFactor returns the factor for the given basis.
func (p PathwaySpec) EmissionsFactor(basis EmissionsBasis) float64 {
	if basis == BasisTailpipe {
		return p.TailpipeFactor
	}
	return p.LifecycleFactor
}

// VehicleTypeSpec is the immutable reference record for one vehicle type and
// the pathways it can adopt. Owned by the catalog, never mutated after load.
type VehicleTypeSpec struct {
	ID       string        `json:"id"`
	Category string        `json:"category"`
	Pathways []PathwaySpec `json:"pathways"`
	// AnnualKM is the distance one vehicle of this type covers per year.
	AnnualKM float64 `json:"annual_km"`
	// FleetSize is the number of vehicles of this type.
	FleetSize float64 `json:"fleet_size"`
}

// Pathway returns the spec for the given pathway identifier.
func (s VehicleTypeSpec) Pathway(id string) (PathwaySpec, bool) {
	for _, p := range s.Pathways {
		if p.Pathway == id {
			return p, true
		}
	}
	return PathwaySpec{}, false
}

// ActivityKM returns the total distance served by this type per year.
func (s VehicleTypeSpec) ActivityKM() float64 {
	return s.AnnualKM * s.FleetSize
}

// Validate checks that the spec is internally consistent.
func (s VehicleTypeSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("vehicle type id is required")
	}
	if len(s.Pathways) == 0 {
		return fmt.Errorf("vehicle type %s: at least one pathway is required", s.ID)
	}
	seen := make(map[string]bool, len(s.Pathways))
	for _, p := range s.Pathways {
		if p.Pathway == "" {
			return fmt.Errorf("vehicle type %s: pathway id is required", s.ID)
		}
		if seen[p.Pathway] {
			return fmt.Errorf("vehicle type %s: duplicate pathway %s", s.ID, p.Pathway)
		}
		seen[p.Pathway] = true
		if p.ReadinessLevel < 1 || p.ReadinessLevel > 9 {
			return fmt.Errorf("vehicle type %s: pathway %s readiness level must be 1-9", s.ID, p.Pathway)
		}
		if p.TailpipeFactor < 0 || p.LifecycleFactor < 0 {
			return fmt.Errorf("vehicle type %s: pathway %s emissions factors must be non-negative", s.ID, p.Pathway)
		}
		if p.LifecycleFactor < p.TailpipeFactor {
			return fmt.Errorf("vehicle type %s: pathway %s lifecycle factor below tailpipe factor", s.ID, p.Pathway)
		}
	}
	if s.AnnualKM < 0 {
		return fmt.Errorf("vehicle type %s: annual km must be non-negative", s.ID)
	}
	if s.FleetSize < 0 {
		return fmt.Errorf("vehicle type %s: fleet size must be non-negative", s.ID)
	}
	return nil
}
