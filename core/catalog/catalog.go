// Package catalog holds the process-wide vehicle type reference data.
// A Catalog is immutable after construction and safe for concurrent reads
// from any number of scenario runs.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/transitionlab/fleetpath/core/model"
)

// Catalog maps vehicle type identifiers to their immutable specifications.
type Catalog struct {
	types   map[string]model.VehicleTypeSpec
	version string
}

// New builds a catalog from the given specs. Duplicate or invalid specs are
// rejected.
func New(specs []model.VehicleTypeSpec) (*Catalog, error) {
	types := make(map[string]model.VehicleTypeSpec, len(specs))
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		if _, ok := types[s.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate vehicle type %s", s.ID)
		}
		types[s.ID] = s
	}
	c := &Catalog{types: types}
	c.version = c.computeVersion()
	return c, nil
}

// Lookup returns the spec for the given identifier.
func (c *Catalog) Lookup(id string) (model.VehicleTypeSpec, error) {
	s, ok := c.types[id]
	if !ok {
		return model.VehicleTypeSpec{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return s, nil
}

// IDs returns all vehicle type identifiers in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.types))
	for id := range c.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of vehicle types.
func (c *Catalog) Len() int { return len(c.types) }

// Version is a content hash of the catalog, used in cache fingerprints.
func (c *Catalog) Version() string { return c.version }

func (c *Catalog) computeVersion() string {
	ids := c.IDs()
	h := sha256.New()
	for _, id := range ids {
		b, _ := json.Marshal(c.types[id])
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}
