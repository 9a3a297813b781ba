package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Artifact is the pretrained bundle exported from the training notebook as a
// single JSON file: a logistic-regression model, the feature scaler it was
// trained with, and the label encoder. Keeping all three in one file means
// they cannot drift apart on disk.
type Artifact struct {
	Model   Model   `json:"model"`
	Scaler  Scaler  `json:"scaler"`
	Encoder Encoder `json:"encoder"`
}

// Model holds per-class coefficient rows and intercepts. A binary sklearn
// export has a single row (the positive class is encoder.Classes[1]).
type Model struct {
	Coefficients [][]float64 `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
}

// Scaler is a standard scaler: (x - mean) / scale, applied in Features order.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

// Encoder maps class indices to label strings. Probability outputs are keyed
// through Classes, never by positional assumption.
type Encoder struct {
	Classes []string `json:"classes"`
}

// LoadArtifact reads and validates the bundle. Validation covers the mutual
// consistency the training process guarantees: scaler dimensions match the
// feature list, coefficient rows match the scaler, and the model output space
// matches the encoder's class count.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}
	return &a, nil
}

// featureOrder is the input contract shared with the training notebook.
var featureOrder = []string{"temperature", "humidity", "rain_value", "ldr_value"}

func (a *Artifact) validate() error {
	n := len(a.Scaler.Features)
	if n != len(featureOrder) {
		return fmt.Errorf("scaler has %d features, expected %d", n, len(featureOrder))
	}
	for i, f := range a.Scaler.Features {
		if f != featureOrder[i] {
			return fmt.Errorf("scaler feature %d is %q, expected %q", i, f, featureOrder[i])
		}
	}
	if len(a.Scaler.Mean) != n || len(a.Scaler.Scale) != n {
		return fmt.Errorf("scaler mean/scale length mismatch: features=%d mean=%d scale=%d",
			n, len(a.Scaler.Mean), len(a.Scaler.Scale))
	}
	for i, s := range a.Scaler.Scale {
		if s == 0 || math.IsNaN(s) {
			return fmt.Errorf("scaler scale[%d] is unusable", i)
		}
	}
	if len(a.Encoder.Classes) < 2 {
		return fmt.Errorf("encoder has %d classes, need at least 2", len(a.Encoder.Classes))
	}
	rows := len(a.Model.Coefficients)
	if rows == 0 {
		return fmt.Errorf("model has no coefficients")
	}
	// Binary models export one row; multinomial models export one per class.
	if rows != 1 && rows != len(a.Encoder.Classes) {
		return fmt.Errorf("coefficient rows (%d) do not match encoder classes (%d)",
			rows, len(a.Encoder.Classes))
	}
	if len(a.Model.Intercepts) != rows {
		return fmt.Errorf("intercepts (%d) do not match coefficient rows (%d)",
			len(a.Model.Intercepts), rows)
	}
	for i, row := range a.Model.Coefficients {
		if len(row) != n {
			return fmt.Errorf("coefficient row %d has %d values, scaler expects %d", i, len(row), n)
		}
	}
	return nil
}

func (a *Artifact) transform(raw []float64) []float64 {
	scaled := make([]float64, len(raw))
	for i, v := range raw {
		scaled[i] = (v - a.Scaler.Mean[i]) / a.Scaler.Scale[i]
	}
	return scaled
}

// probabilities runs the model head on scaled features and returns one
// probability per encoder class, in encoder order, summing to 1.
func (a *Artifact) probabilities(scaled []float64) []float64 {
	if len(a.Model.Coefficients) == 1 {
		// Binary: sigmoid gives P(classes[1]).
		z := a.Model.Intercepts[0]
		for i, c := range a.Model.Coefficients[0] {
			z += c * scaled[i]
		}
		p1 := 1.0 / (1.0 + math.Exp(-z))
		return []float64{1.0 - p1, p1}
	}

	scores := make([]float64, len(a.Model.Coefficients))
	maxScore := math.Inf(-1)
	for k, row := range a.Model.Coefficients {
		z := a.Model.Intercepts[k]
		for i, c := range row {
			z += c * scaled[i]
		}
		scores[k] = z
		if z > maxScore {
			maxScore = z
		}
	}
	// Softmax, shifted by the max score for numeric stability.
	var sum float64
	for k, z := range scores {
		scores[k] = math.Exp(z - maxScore)
		sum += scores[k]
	}
	for k := range scores {
		scores[k] /= sum
	}
	return scores
}
