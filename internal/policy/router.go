package policy

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/backends"
	"github.com/tributary-ai/llm-dispatch/internal/signals"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Router resolves one request to one backend through the ordered policy set.
// It is stateless across requests: for a fixed policy set, mapping set, and
// registry state, Route is a pure function of the request.
type Router struct {
	mu               sync.RWMutex
	registry         *backends.Registry
	policies         []Policy
	mappings         map[types.Classification]string
	privacyPreferred map[string]bool
	logger           *logrus.Logger
}

// NewRouter creates a policy router over the given registry. Backends named
// in privacyPreferred seed the smart default for RESTRICTED/PRIVATE when more
// than one local backend is registered.
func NewRouter(registry *backends.Registry, privacyPreferred []string, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.New()
	}
	preferred := make(map[string]bool, len(privacyPreferred))
	for _, name := range privacyPreferred {
		preferred[name] = true
	}
	return &Router{
		registry:         registry,
		mappings:         make(map[types.Classification]string),
		privacyPreferred: preferred,
		logger:           logger,
	}
}

// AddPolicy appends a policy to the ordered set. Rules are not validated
// beyond a nil check; a rule that errors during evaluation is a per-request
// policy failure, not a setup failure.
func (r *Router) AddPolicy(rule Rule, enforcement types.Enforcement) error {
	if rule == nil {
		return &types.ConfigurationError{Reason: "policy rule must not be nil"}
	}
	if !enforcement.Valid() {
		return &types.ConfigurationError{Reason: fmt.Sprintf("unknown enforcement level %q", enforcement)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies = append(r.policies, Policy{Rule: rule, Enforcement: enforcement})
	return nil
}

// SetClassificationMapping pins a classification to a specific backend,
// overriding any smart default. The backend must already be registered: an
// unknown name fails here, at mapping time, not at route time.
func (r *Router) SetClassificationMapping(classification types.Classification, backendName string) error {
	if classification == "" {
		return &types.ConfigurationError{Reason: "classification must not be empty"}
	}
	if _, ok := r.registry.Get(backendName); !ok {
		return &types.ConfigurationError{Reason: fmt.Sprintf("backend %q not found for classification %q", backendName, classification)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings[classification] = backendName
	return nil
}

// Route evaluates every policy in insertion order and resolves the winning
// classification to a backend. The first strict classification that resolves
// wins over all advisory results; advisory results are consulted in insertion
// order only when no strict result resolves.
func (r *Router) Route(req types.Request) (*types.Decision, error) {
	r.mu.RLock()
	policies := make([]Policy, len(r.policies))
	copy(policies, r.policies)
	r.mu.RUnlock()

	type evaluation struct {
		index          int
		classification types.Classification
		enforcement    types.Enforcement
	}

	var strict, advisory []evaluation
	var attempted []types.Classification
	var warnings []string

	for i, p := range policies {
		classification, err := p.Rule.Evaluate(req)
		if err != nil {
			pe := &types.PolicyEvaluationError{Policy: i, Err: err}
			r.logger.WithFields(logrus.Fields{
				"policy":      i,
				"enforcement": p.Enforcement,
			}).WithError(err).Warn("Policy evaluation failed, skipping")
			warnings = append(warnings, pe.Error())
			continue
		}
		if classification == "" {
			continue
		}

		ev := evaluation{index: i, classification: classification, enforcement: p.Enforcement}
		attempted = append(attempted, classification)
		if p.Enforcement == types.EnforcementStrict {
			strict = append(strict, ev)
		} else {
			advisory = append(advisory, ev)
		}
	}

	for _, ev := range strict {
		if backend, rationale, ok := r.resolve(ev.classification); ok {
			return r.decision(req, backend, ev.classification,
				fmt.Sprintf("strict policy %d: %s", ev.index, rationale), warnings), nil
		}
	}
	for _, ev := range advisory {
		if backend, rationale, ok := r.resolve(ev.classification); ok {
			return r.decision(req, backend, ev.classification,
				fmt.Sprintf("advisory policy %d: %s", ev.index, rationale), warnings), nil
		}
	}

	return nil, &types.NoRouteError{Attempted: attempted}
}

// resolve maps a classification to a backend: explicit mapping first, smart
// default second. It reports how the resolution happened for the decision
// rationale.
func (r *Router) resolve(classification types.Classification) (types.Backend, string, bool) {
	r.mu.RLock()
	mapped, hasMapping := r.mappings[classification]
	r.mu.RUnlock()

	if hasMapping {
		if backend, ok := r.registry.Get(mapped); ok {
			return backend, fmt.Sprintf("%s mapped to %s", classification, mapped), true
		}
	}

	locality, ok := types.SmartDefaultLocality(classification)
	if !ok {
		return types.Backend{}, "", false
	}

	if locality == types.LocalityLocal && len(r.privacyPreferred) > 0 {
		for _, b := range r.registry.List() {
			if b.Locality == types.LocalityLocal && r.privacyPreferred[b.Name] {
				return b, fmt.Sprintf("%s smart default to privacy-preferred %s", classification, b.Name), true
			}
		}
	}
	if backend, found := r.registry.FirstByLocality(locality); found {
		return backend, fmt.Sprintf("%s smart default to first %s backend", classification, locality), true
	}
	return types.Backend{}, "", false
}

func (r *Router) decision(req types.Request, backend types.Backend, classification types.Classification, rationale string, warnings []string) *types.Decision {
	d := &types.Decision{
		Mode:           types.RoutingModePolicy,
		Backend:        backend.Name,
		Classification: classification,
		Rationale:      rationale,
		Signals:        signals.Extract(req.PromptText),
		Warnings:       warnings,
		CreatedAt:      time.Now().UTC(),
	}
	r.logger.WithFields(logrus.Fields{
		"backend":        backend.Name,
		"classification": classification,
		"rationale":      rationale,
	}).Debug("Policy route resolved")
	return d
}
