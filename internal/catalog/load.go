package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"sanctioncore/pkg/domain"
)

// fileLayout is the on-disk YAML shape:
//
//	severities:
//	  1:
//	    - title: ...
//	      quantity: 10
//	      unit: minutes
type fileLayout struct {
	Severities map[domain.Severity][]domain.SanctionTemplate `yaml:"severities"`
}

// LoadFile reads and validates a YAML catalog.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("load catalog %q: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog %q: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (Catalog, error) {
	var layout fileLayout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return New(layout.Severities)
}

// WriteYAML encodes the catalog in the layout LoadFile accepts.
func (c Catalog) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fileLayout{Severities: c.bySeverity}); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}

// Resolve returns the catalog at path, or the built-in table when path is empty.
func Resolve(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
