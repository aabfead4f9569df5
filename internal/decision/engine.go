// Package decision implements the federated decision engine: a weighted
// multi-factor scorer that ranks every registered backend for a request and
// picks the best one, with privacy as the dominant factor by default weight.
package decision

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/tributary-ai/llm-dispatch/internal/backends"
	"github.com/tributary-ai/llm-dispatch/internal/metrics"
	"github.com/tributary-ai/llm-dispatch/internal/signals"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Weights configure the factor mix. They need not sum to 1.0, but
// conventionally do so the overall score stays interpretable. Fixed at engine
// construction; never renormalized at score time.
type Weights struct {
	Privacy    float64
	Cost       float64
	Capability float64
	Latency    float64
}

// DefaultWeights make privacy the dominant factor, with cost and capability
// balanced and latency a light touch.
func DefaultWeights() Weights {
	return Weights{Privacy: 0.40, Cost: 0.25, Capability: 0.25, Latency: 0.10}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	factors := []struct {
		name  string
		value float64
	}{
		{"privacy", w.Privacy},
		{"cost", w.Cost},
		{"capability", w.Capability},
		{"latency", w.Latency},
	}
	for _, f := range factors {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &types.ConfigurationError{Reason: fmt.Sprintf("invalid %s weight %v", f.name, f.value)}
		}
	}
	return nil
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return floats.Sum([]float64{w.Privacy, w.Cost, w.Capability, w.Latency})
}

const (
	// Score for a remote, non-preferred backend when the request carries a
	// privacy signal. Low enough that the default weights make privacy a
	// near-hard constraint.
	privacyMismatchScore = 0.1
	// Score for backends that declare no latency estimate.
	neutralLatencyScore = 0.5
)

// Engine ranks registered backends per request. Stateless across requests:
// two calls with identical inputs and registry state produce identical
// decisions.
type Engine struct {
	registry         *backends.Registry
	weights          Weights
	privacyPreferred map[string]bool
	logger           *logrus.Logger
}

// NewEngine validates the weights and builds an engine over the registry.
// Backends named in privacyPreferred keep a full privacy score even when
// remote, for requests that carry a privacy signal.
func NewEngine(registry *backends.Registry, weights Weights, privacyPreferred []string, logger *logrus.Logger) (*Engine, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	if sum := weights.Sum(); math.Abs(sum-1.0) > 1e-9 {
		logger.WithField("weights_sum", sum).Debug("Factor weights do not sum to 1.0")
	}

	preferred := make(map[string]bool, len(privacyPreferred))
	for _, name := range privacyPreferred {
		preferred[name] = true
	}
	return &Engine{
		registry:         registry,
		weights:          weights,
		privacyPreferred: preferred,
		logger:           logger,
	}, nil
}

// Weights returns the engine's configured factor weights.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Decide scores every registered backend for the request and returns the one
// with the strictly highest overall score, ties broken by registration order.
// The decision carries the full per-factor breakdown for all candidates.
func (e *Engine) Decide(req types.Request) (*types.Decision, error) {
	candidates := e.registry.List()
	if len(candidates) == 0 {
		metrics.RecordRoutingFailure("no_backends")
		return nil, &types.NoBackendsError{}
	}

	sig := signals.Extract(req.PromptText)
	base := newBaselines(sig, candidates)

	scored := make([]types.BackendScore, len(candidates))
	best := 0
	for i, b := range candidates {
		fs := e.scoreAgainst(sig, b, base)
		scored[i] = types.BackendScore{
			Backend:       b.Name,
			Locality:      b.Locality,
			Scores:        fs,
			EstimatedCost: estimatedCost(sig, b),
		}
		metrics.RecordFactorScores(b.Name, fs)
		if fs.Overall > scored[best].Scores.Overall {
			best = i
		}
	}

	winner := scored[best]
	e.logger.WithFields(logrus.Fields{
		"backend":      winner.Backend,
		"overall":      winner.Scores.Overall,
		"privacy_flag": sig.PrivacyFlag,
		"complexity":   sig.Complexity,
		"candidates":   len(candidates),
	}).Debug("Decision computed")

	return &types.Decision{
		Mode:       types.RoutingModeFDE,
		Backend:    winner.Backend,
		Rationale:  fmt.Sprintf("highest weighted score %.4f across %d candidates", winner.Scores.Overall, len(candidates)),
		Candidates: scored,
		Signals:    sig,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Score computes the per-factor breakdown of one backend for a request,
// normalized against the currently registered candidate set.
func (e *Engine) Score(req types.Request, backend types.Backend) types.FactorScores {
	sig := signals.Extract(req.PromptText)
	base := newBaselines(sig, e.registry.List())
	return e.scoreAgainst(sig, backend, base)
}

// baselines are the per-request normalization anchors, computed fresh for
// every Decide call over the currently registered set.
type baselines struct {
	maxCost         float64
	maxLatencySec   float64
	candidateCount  int
	declaredLatency int
}

func newBaselines(sig types.Signals, candidates []types.Backend) baselines {
	b := baselines{candidateCount: len(candidates)}
	if len(candidates) == 0 {
		return b
	}

	costs := make([]float64, len(candidates))
	var latencies []float64
	for i, c := range candidates {
		costs[i] = estimatedCost(sig, c)
		if c.LatencyEstimate > 0 {
			latencies = append(latencies, c.LatencyEstimate.Seconds())
		}
	}
	b.maxCost = floats.Max(costs)
	b.declaredLatency = len(latencies)
	if len(latencies) > 0 {
		b.maxLatencySec = floats.Max(latencies)
	}
	return b
}

func (e *Engine) scoreAgainst(sig types.Signals, b types.Backend, base baselines) types.FactorScores {
	f := types.FactorScores{
		Privacy:    e.privacyScore(sig, b),
		Cost:       costScore(estimatedCost(sig, b), base),
		Capability: capabilityScore(b.Capability, sig.Complexity),
		Latency:    latencyScore(b.LatencyEstimate, base),
	}
	f.Overall = e.weights.Privacy*f.Privacy +
		e.weights.Cost*f.Cost +
		e.weights.Capability*f.Capability +
		e.weights.Latency*f.Latency
	return f
}

// privacyScore treats privacy as a near-hard constraint: a request without a
// privacy signal penalizes nobody, a request with one collapses the score of
// every backend that is neither local nor privacy-preferred.
func (e *Engine) privacyScore(sig types.Signals, b types.Backend) float64 {
	if !sig.PrivacyFlag {
		return 1.0
	}
	if b.Locality == types.LocalityLocal || e.privacyPreferred[b.Name] {
		return 1.0
	}
	return privacyMismatchScore
}

// estimatedCost prices the request on one backend.
func estimatedCost(sig types.Signals, b types.Backend) float64 {
	return float64(sig.InputUnits)*b.CostPerInputUnit + float64(sig.OutputUnits)*b.CostPerOutputUnit
}

// costScore maps estimated cost to [0.5, 1.0] relative to the most expensive
// candidate: zero cost scores 1.0, the max-cost candidate 0.5, linear in
// between. The floor keeps a lone expensive backend competitive on the other
// factors. One candidate, or an all-free set, scores 1.0 trivially.
func costScore(cost float64, base baselines) float64 {
	if base.candidateCount <= 1 || base.maxCost == 0 {
		return 1.0
	}
	return 1.0 - cost/(2*base.maxCost)
}

// capabilityScore rewards backends whose capability meets or exceeds the
// estimated complexity. Qualified backends land in [0.5, 1.0] with a mild
// over-qualification penalty; under-qualified backends land below 0.5 in
// proportion to the shortfall, so they never outscore a qualified one.
func capabilityScore(capability, complexity float64) float64 {
	if capability >= complexity {
		return 1.0 - (capability-complexity)/2
	}
	return (1.0 - (complexity - capability)) / 2
}

// latencyScore normalizes declared estimates the same way cost is normalized;
// backends that declare nothing get a neutral default.
func latencyScore(estimate time.Duration, base baselines) float64 {
	if estimate <= 0 {
		return neutralLatencyScore
	}
	if base.declaredLatency <= 1 || base.maxLatencySec == 0 {
		return 1.0
	}
	return 1.0 - estimate.Seconds()/(2*base.maxLatencySec)
}
