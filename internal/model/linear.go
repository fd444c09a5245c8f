package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"bhavcast/internal/features"
)

// artifactSchema validates a model artifact before any field is trusted.
// Rejecting a malformed artifact at load beats a silent column mismatch at
// scoring time.
const artifactSchema = `{
  "type": "object",
  "required": ["schema_version", "horizon", "feature_names", "weights", "bias"],
  "properties": {
    "schema_version": {"type": "string", "minLength": 1},
    "horizon": {"type": "string", "enum": ["daily", "weekly"]},
    "feature_names": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "weights": {"type": "array", "items": {"type": "number"}, "minItems": 1},
    "bias": {"type": "number"}
  }
}`

var compiledArtifactSchema = jsonschema.MustCompileString("artifact.json", artifactSchema)

// LinearModel is a logistic classifier loaded from a JSON weights artifact.
// Training happens outside this repository; the artifact is the handoff.
type LinearModel struct {
	SchemaVersion string    `json:"schema_version"`
	Horizon       string    `json:"horizon"`
	FeatureNames  []string  `json:"feature_names"`
	Weights       []float64 `json:"weights"`
	Bias          float64   `json:"bias"`
}

// LoadLinearModel reads, validates and binds an artifact to the feature
// schema it will score.
func LoadLinearModel(path string, schema features.Schema) (*LinearModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelMissing, path)
		}
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("model artifact is not valid JSON: %w", err)
	}
	if err := compiledArtifactSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("model artifact failed validation: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m.SchemaVersion != schema.Version || m.Horizon != schema.Horizon {
		return nil, fmt.Errorf("model artifact is %s/%s, pipeline expects %s/%s",
			m.SchemaVersion, m.Horizon, schema.Version, schema.Horizon)
	}
	if err := schema.Check(m.FeatureNames); err != nil {
		return nil, fmt.Errorf("model artifact columns do not match feature schema: %w", err)
	}
	if len(m.Weights) != len(m.FeatureNames) {
		return nil, fmt.Errorf("model artifact has %d weights for %d features", len(m.Weights), len(m.FeatureNames))
	}
	return &m, nil
}

// PredictBatch scores each dense row. Confidence is the probability mass of
// the predicted class, i.e. max(p, 1-p).
func (m *LinearModel) PredictBatch(x [][]float64) ([]Prediction, error) {
	out := make([]Prediction, len(x))
	for i, row := range x {
		if len(row) != len(m.Weights) {
			return nil, fmt.Errorf("row %d has %d values, model expects %d", i, len(row), len(m.Weights))
		}
		z := m.Bias
		for j, v := range row {
			z += m.Weights[j] * v
		}
		p := 1.0 / (1.0 + math.Exp(-z))
		if p >= 0.5 {
			out[i] = Prediction{Label: 1, Confidence: p}
		} else {
			out[i] = Prediction{Label: 0, Confidence: 1 - p}
		}
	}
	return out, nil
}
