package classifier

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Coefficients chosen so rain high + dark predicts Tertutup and dry + bright
// predicts Terjemur, matching what the notebook learns from the device data.
const testArtifact = `{
  "model": {
    "coefficients": [[0.0, 0.0, 0.01, -0.01]],
    "intercepts": [0.0]
  },
  "scaler": {
    "features": ["temperature", "humidity", "rain_value", "ldr_value"],
    "mean": [0.0, 0.0, 0.0, 0.0],
    "scale": [1.0, 1.0, 1.0, 1.0]
  },
  "encoder": {
    "classes": ["Terjemur", "Tertutup"]
  }
}`

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jemuran_artifact.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestPredict_RainyDarkIsSheltered(t *testing.T) {
	p := New(writeArtifact(t, testArtifact))
	if p.Degraded() {
		t.Fatalf("expected loaded predictor")
	}

	res := p.Predict(25.0, 90.0, 600, 100)
	if res.Label != "Tertutup" {
		t.Fatalf("expected Tertutup, got %q", res.Label)
	}
	if res.Degraded {
		t.Fatalf("unexpected degraded result")
	}

	res = p.Predict(30.0, 70.0, 0, 800)
	if res.Label != "Terjemur" {
		t.Fatalf("expected Terjemur, got %q", res.Label)
	}
}

func TestPredict_ProbabilitiesSumToOneAndAreLabelKeyed(t *testing.T) {
	p := New(writeArtifact(t, testArtifact))
	res := p.Predict(25.0, 90.0, 600, 100)

	var sum float64
	for _, pr := range res.Probabilities {
		if pr < 0 || pr > 1 {
			t.Fatalf("probability out of range: %v", res.Probabilities)
		}
		sum += pr
	}
	if math.Abs(sum-1.0) > 1e-6 {
		t.Fatalf("probabilities sum to %v", sum)
	}
	if _, ok := res.Probabilities["Terjemur"]; !ok {
		t.Fatalf("probabilities must be keyed by class label: %v", res.Probabilities)
	}
	if _, ok := res.Probabilities["Tertutup"]; !ok {
		t.Fatalf("probabilities must be keyed by class label: %v", res.Probabilities)
	}
	if res.Probabilities["Tertutup"] <= res.Probabilities["Terjemur"] {
		t.Fatalf("predicted label must carry the larger probability: %v", res.Probabilities)
	}
}

func TestPredict_MissingArtifactReturnsSentinel(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if !p.Degraded() {
		t.Fatalf("expected degraded predictor")
	}

	res := p.Predict(25.0, 90.0, 600, 100)
	if res.Label != SentinelLabel {
		t.Fatalf("expected sentinel label, got %q", res.Label)
	}
	if !res.Degraded {
		t.Fatalf("expected degraded result")
	}
	if res.Probabilities["Terjemur"] != 0.5 || res.Probabilities["Tertutup"] != 0.5 {
		t.Fatalf("expected uniform fallback distribution, got %v", res.Probabilities)
	}
}

func TestReload_RecoversFromDegraded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jemuran_artifact.json")

	p := New(path)
	if !p.Degraded() {
		t.Fatalf("expected degraded start")
	}

	if err := os.WriteFile(path, []byte(testArtifact), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := p.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if p.Degraded() {
		t.Fatalf("expected recovered predictor")
	}
	if res := p.Predict(25.0, 90.0, 600, 100); res.Label == SentinelLabel {
		t.Fatalf("expected real prediction after reload")
	}
}

func TestLoadArtifact_RejectsMismatchedBundle(t *testing.T) {
	// Scaler claims four features but the model row only has three.
	bad := `{
	  "model": {"coefficients": [[0.1, 0.2, 0.3]], "intercepts": [0.0]},
	  "scaler": {"features": ["temperature", "humidity", "rain_value", "ldr_value"], "mean": [0,0,0,0], "scale": [1,1,1,1]},
	  "encoder": {"classes": ["Terjemur", "Tertutup"]}
	}`
	if _, err := LoadArtifact(writeArtifact(t, bad)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadArtifact_RejectsWrongFeatureOrder(t *testing.T) {
	bad := `{
	  "model": {"coefficients": [[0.1, 0.2, 0.3, 0.4]], "intercepts": [0.0]},
	  "scaler": {"features": ["humidity", "temperature", "rain_value", "ldr_value"], "mean": [0,0,0,0], "scale": [1,1,1,1]},
	  "encoder": {"classes": ["Terjemur", "Tertutup"]}
	}`
	if _, err := LoadArtifact(writeArtifact(t, bad)); err == nil {
		t.Fatalf("expected validation error for reordered features")
	}
}
