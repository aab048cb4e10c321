package model

import (
	"encoding/json"
	"fmt"
	"math"
)

// YearAllocation holds the committed pathway shares for one year,
// vehicle type -> pathway -> share. Shares are non-negative and sum to one
// per vehicle type within ShareTol.
type YearAllocation struct {
	Year   int                           `json:"year"`
	Shares map[string]map[string]float64 `json:"shares"`
}

// Share returns the share for the given vehicle type and pathway.
func (a YearAllocation) Share(vehicleType, pathway string) float64 {
	return a.Shares[vehicleType][pathway]
}

// Clone returns a deep copy of the allocation.
func (a YearAllocation) Clone() YearAllocation {
	cp := YearAllocation{Year: a.Year, Shares: make(map[string]map[string]float64, len(a.Shares))}
	for vt, shares := range a.Shares {
		m := make(map[string]float64, len(shares))
		for p, s := range shares {
			m[p] = s
		}
		cp.Shares[vt] = m
	}
	return cp
}

// CheckSums verifies the share-sum invariant for every vehicle type.
func (a YearAllocation) CheckSums() bool {
	for _, shares := range a.Shares {
		var sum float64
		for _, s := range shares {
			if s < -ShareTol {
				return false
			}
			sum += s
		}
		if math.Abs(sum-1) > ShareTol {
			return false
		}
	}
	return true
}

// AppliedRelaxation records one ladder step taken while solving a year.
type AppliedRelaxation struct {
	Year   int            `json:"year"`
	Step   RelaxationStep `json:"step"`
	Detail string         `json:"detail"`
}

// Status reports how a run ended.
type Status int

const (
	StatusComplete Status = iota
	StatusPartial
	StatusInfeasible
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the string form produced by MarshalJSON.
func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v {
	case "complete":
		*s = StatusComplete
	case "partial":
		*s = StatusPartial
	case "infeasible":
		*s = StatusInfeasible
	default:
		return fmt.Errorf("unknown status %q", v)
	}
	return nil
}
