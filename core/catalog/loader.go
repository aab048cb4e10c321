package catalog

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/transitionlab/fleetpath/core/model"
)

// Load reads the vehicle type reference file at path. JSON and YAML are
// supported, selected by extension. The file holds a single "vehicle_types"
// list.
func Load(path string) (*Catalog, error) {
	k := koanf.New(".")
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("catalog: unsupported format: %s", path)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("catalog: load %s: %w", path, err)
	}
	var doc struct {
		VehicleTypes []model.VehicleTypeSpec `json:"vehicle_types"`
	}
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	return New(doc.VehicleTypes)
}
