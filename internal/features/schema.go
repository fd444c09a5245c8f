package features

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SchemaVersion guards against silent column drift between the feature
// engine, persisted training output and classifier artifacts. Bump it
// whenever a field is added, removed or reordered.
const SchemaVersion = "v1"

// Field is one named column of the feature vector. Window records the
// rolling history the field needs; zero means the field derives from the
// current session (plus at most fixed lags captured in the name).
type Field struct {
	Name   string `yaml:"name"`
	Window int    `yaml:"window,omitempty"`
}

// Schema is the fixed, ordered feature layout for one horizon preset. It is
// identical between train and forecast modes; the label is not part of it.
type Schema struct {
	Version string  `yaml:"version"`
	Horizon string  `yaml:"horizon"`
	Fields  []Field `yaml:"fields"`
}

func (s Schema) Len() int {
	return len(s.Fields)
}

func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the column position of a field name, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Check verifies that an external column list (classifier artifact, stored
// training output) matches this schema exactly, order included.
func (s Schema) Check(names []string) error {
	if len(names) != len(s.Fields) {
		return fmt.Errorf("schema mismatch: have %d columns, want %d", len(names), len(s.Fields))
	}
	for i, name := range names {
		if name != s.Fields[i].Name {
			return fmt.Errorf("schema mismatch at column %d: have %q, want %q", i, name, s.Fields[i].Name)
		}
	}
	return nil
}

// WriteManifest persists the schema as YAML next to the training output so
// downstream consumers can validate column order at load time.
func (s Schema) WriteManifest(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// LoadManifest reads a schema manifest written by WriteManifest.
func LoadManifest(path string) (Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, err
	}
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("parsing schema manifest failed: %w", err)
	}
	return s, nil
}

// Row is one (symbol, session) feature vector. Values is schema-ordered.
// Target is present only for train-mode rows with a known next session.
type Row struct {
	Symbol string
	Date   time.Time
	Values []Value
	Target *int
}

// Floats densifies the vector, substituting fill for undefined entries.
// This is the explicit imputation boundary: nothing upstream of it may
// collapse undefined into a number.
func (r Row) Floats(fill float64) []float64 {
	out := make([]float64, len(r.Values))
	for i, v := range r.Values {
		out[i] = v.Or(fill)
	}
	return out
}
