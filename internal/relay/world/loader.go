package world

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlCatalogFile is the top-level YAML structure for location catalog files.
type yamlCatalogFile struct {
	Locations yamlCatalog `yaml:"locations"`
}

// yamlCatalog is the YAML representation of the catalog.
type yamlCatalog struct {
	Default string     `yaml:"default"`
	Entries []Location `yaml:"entries"`
}

// LoadCatalogFromFile reads and validates a location catalog YAML file.
//
// Precondition: path must point to a valid YAML catalog file.
// Postcondition: Returns a validated Catalog or a non-nil error.
func LoadCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading locations file %s: %w", path, err)
	}
	return LoadCatalogFromBytes(data)
}

// LoadCatalogFromBytes parses and validates a catalog from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the catalog schema.
// Postcondition: Returns a validated Catalog or a non-nil error.
func LoadCatalogFromBytes(data []byte) (*Catalog, error) {
	var file yamlCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing locations YAML: %w", err)
	}
	return NewCatalog(file.Locations.Default, file.Locations.Entries)
}
