package classifier

import (
	"log/slog"
	"sync"
)

// SentinelLabel is returned while the predictor is degraded. It must never be
// persisted as an effective status; callers record it for observability only.
const SentinelLabel = "Model tidak siap"

// fallbackClasses is the closed label set used for the uniform-uncertainty
// distribution when no artifact is available to ask.
var fallbackClasses = []string{"Terjemur", "Tertutup"}

// Result is a single prediction. Probabilities is keyed by class label via the
// encoder's authoritative class order and sums to 1. Degraded marks sentinel
// results produced without a loaded artifact.
type Result struct {
	Label         string
	Probabilities map[string]float64
	Degraded      bool
}

// Predictor wraps the artifact as an atomically swappable unit. The artifact
// is read-only after load, so concurrent Predict calls share it without
// per-call locking beyond the pointer read.
//
// Once a load has failed the predictor stays degraded and does not touch the
// filesystem again until an explicit Reload; per-request retry storms against
// a missing file helped nobody in the original deployment.
type Predictor struct {
	mu       sync.RWMutex
	path     string
	artifact *Artifact
}

// New creates a predictor for the artifact at path and attempts the initial
// load. A missing or corrupt artifact is not fatal: the predictor starts
// degraded and serves sentinel results until Reload succeeds.
func New(path string) *Predictor {
	p := &Predictor{path: path}
	if err := p.Reload(); err != nil {
		slog.Warn("classifier starting degraded", "path", path, "error", err)
	}
	return p
}

// Reload re-reads the artifact from disk and swaps it in atomically. On
// failure the previous artifact, if any, stays active.
func (p *Predictor) Reload() error {
	a, err := LoadArtifact(p.path)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		return err
	}
	p.artifact = a
	slog.Info("classifier artifact loaded", "path", p.path, "classes", a.Encoder.Classes)
	return nil
}

// Degraded reports whether the predictor currently serves sentinel results.
func (p *Predictor) Degraded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.artifact == nil
}

// Classes returns the label set in encoder order, or the fallback pair while
// degraded.
func (p *Predictor) Classes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.artifact == nil {
		return append([]string(nil), fallbackClasses...)
	}
	return append([]string(nil), p.artifact.Encoder.Classes...)
}

// Predict classifies one sensor reading. It never fails: with no usable
// artifact it returns the sentinel label with a uniform distribution over the
// known classes so every caller always has a result to work with.
func (p *Predictor) Predict(temperature, humidity float64, rainValue, ldrValue int) Result {
	p.mu.RLock()
	a := p.artifact
	p.mu.RUnlock()

	if a == nil {
		probs := make(map[string]float64, len(fallbackClasses))
		for _, c := range fallbackClasses {
			probs[c] = 1.0 / float64(len(fallbackClasses))
		}
		return Result{Label: SentinelLabel, Probabilities: probs, Degraded: true}
	}

	// Feature order is fixed by the scaler: temperature, humidity, rain, ldr.
	raw := []float64{temperature, humidity, float64(rainValue), float64(ldrValue)}
	scaled := a.transform(raw)
	probs := a.probabilities(scaled)

	best := 0
	out := make(map[string]float64, len(probs))
	for i, pr := range probs {
		out[a.Encoder.Classes[i]] = pr
		if pr > probs[best] {
			best = i
		}
	}
	return Result{Label: a.Encoder.Classes[best], Probabilities: out}
}
