// Package orchestrator ties the backend registry, the two routing paths, and
// the backend adapters into a single dispatch facade. Callers register
// backends and policies during setup, then dispatch prompts; each dispatch
// routes once, invokes one adapter, and returns the content together with the
// decision metadata that produced it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/adapters"
	"github.com/tributary-ai/llm-dispatch/internal/backends"
	"github.com/tributary-ai/llm-dispatch/internal/decision"
	"github.com/tributary-ai/llm-dispatch/internal/metrics"
	"github.com/tributary-ai/llm-dispatch/internal/policy"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

const defaultAdapterTimeout = 30 * time.Second

// Options configures an Orchestrator. The zero value yields a policy-mode
// orchestrator with default weights, a mock default adapter, and a fresh
// logger.
type Options struct {
	// UseFDE selects the weighted decision engine instead of the policy
	// router. The mode is fixed for the orchestrator's lifetime.
	UseFDE bool

	// Weights overrides the decision engine's factor weights.
	Weights *decision.Weights

	// PrivacyPreferred names backends approved for privacy-flagged
	// requests. It seeds both the engine's privacy factor and the
	// router's smart defaults.
	PrivacyPreferred []string

	// AdapterTimeout bounds each adapter invocation.
	AdapterTimeout time.Duration

	// DefaultAdapter serves backends registered without their own adapter.
	DefaultAdapter adapters.Adapter

	Logger *logrus.Logger
}

type fallbackPair struct {
	primary string
	target  string
}

// Orchestrator owns the registry and the routing paths and dispatches
// requests through them.
type Orchestrator struct {
	mu             sync.RWMutex
	registry       *backends.Registry
	router         *policy.Router
	engine         *decision.Engine
	adapterByName  map[string]adapters.Adapter
	defaultAdapter adapters.Adapter
	fallback       *fallbackPair
	useFDE         bool
	timeout        time.Duration
	logger         *logrus.Logger
}

// New builds an orchestrator from the options. Both routing paths are always
// constructed; UseFDE only selects which one dispatch consults.
func New(opts Options) (*Orchestrator, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	weights := decision.DefaultWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	timeout := opts.AdapterTimeout
	if timeout <= 0 {
		timeout = defaultAdapterTimeout
	}

	defaultAdapter := opts.DefaultAdapter
	if defaultAdapter == nil {
		defaultAdapter = adapters.NewMock()
	}

	registry := backends.NewRegistry(logger)
	engine, err := decision.NewEngine(registry, weights, opts.PrivacyPreferred, logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		registry:       registry,
		router:         policy.NewRouter(registry, opts.PrivacyPreferred, logger),
		engine:         engine,
		adapterByName:  make(map[string]adapters.Adapter),
		defaultAdapter: defaultAdapter,
		useFDE:         opts.UseFDE,
		timeout:        timeout,
		logger:         logger,
	}, nil
}

// UseFDE reports which routing path dispatch consults.
func (o *Orchestrator) UseFDE() bool {
	return o.useFDE
}

// Weights returns the decision engine's configured weights.
func (o *Orchestrator) Weights() decision.Weights {
	return o.engine.Weights()
}

// Backends lists registered backends in registration order.
func (o *Orchestrator) Backends() []types.Backend {
	return o.registry.List()
}

// Backend looks up a registered backend by name.
func (o *Orchestrator) Backend(name string) (types.Backend, bool) {
	return o.registry.Get(name)
}

// AddProvider registers a backend and the adapter that serves it. A nil
// adapter falls back to the orchestrator's default adapter, so the system is
// runnable without any external credentials.
func (o *Orchestrator) AddProvider(backend types.Backend, adapter adapters.Adapter) error {
	if err := o.registry.Register(backend); err != nil {
		return err
	}
	if adapter == nil {
		adapter = o.defaultAdapter
	}

	o.mu.Lock()
	o.adapterByName[backend.Name] = adapter
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"backend": backend.Name,
		"adapter": adapter.Name(),
	}).Debug("Provider added")
	return nil
}

// AddPolicy appends a policy to the router's ordered set.
func (o *Orchestrator) AddPolicy(rule policy.Rule, enforcement types.Enforcement) error {
	return o.router.AddPolicy(rule, enforcement)
}

// SetClassificationMapping maps a classification to a registered backend.
func (o *Orchestrator) SetClassificationMapping(classification types.Classification, backendName string) error {
	return o.router.SetClassificationMapping(classification, backendName)
}

// SetFallback configures an explicit failover pair: when a dispatch chooses
// primary and its adapter fails, the target backend is invoked instead.
// Failover never happens without this opt-in.
func (o *Orchestrator) SetFallback(primary, target string) error {
	if primary == target {
		return &types.ConfigurationError{Reason: "fallback target must differ from primary"}
	}
	if _, ok := o.registry.Get(primary); !ok {
		return &types.ConfigurationError{Reason: fmt.Sprintf("fallback primary %q not found in registry", primary)}
	}
	if _, ok := o.registry.Get(target); !ok {
		return &types.ConfigurationError{Reason: fmt.Sprintf("fallback target %q not found in registry", target)}
	}

	o.mu.Lock()
	o.fallback = &fallbackPair{primary: primary, target: target}
	o.mu.Unlock()
	return nil
}

// Dispatch routes a bare prompt and returns the chosen backend's response.
func (o *Orchestrator) Dispatch(ctx context.Context, promptText string) (*types.Response, error) {
	return o.DispatchRequest(ctx, types.Request{
		PromptText: promptText,
		CreatedAt:  time.Now().UTC(),
	})
}

// DispatchRequest routes the request per the configured mode, invokes the
// chosen backend's adapter, and packages the result with the decision
// metadata.
func (o *Orchestrator) DispatchRequest(ctx context.Context, req types.Request) (*types.Response, error) {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	requestID := uuid.NewString()
	start := time.Now()

	entry := o.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"mode":       string(o.mode()),
	})

	dec, err := o.decide(req)
	if err != nil {
		var noRoute *types.NoRouteError
		if errors.As(err, &noRoute) {
			metrics.RecordRoutingFailure("no_route")
		}
		entry.WithError(err).Warn("Routing failed")
		return nil, err
	}

	backend, ok := o.registry.Get(dec.Backend)
	if !ok {
		return nil, fmt.Errorf("decision chose backend %q which is not registered", dec.Backend)
	}
	entry = entry.WithField("backend", backend.Name)

	content, served, fallbackReason, err := o.invokeWithFallback(ctx, backend, req, entry)
	if err != nil {
		metrics.RecordDispatch(backend.Name, dec.Mode, "error")
		entry.WithError(err).Error("Adapter invocation failed")
		return nil, err
	}
	metrics.RecordDispatch(served.Name, dec.Mode, "success")

	meta := responseMetadata(dec)
	wasFallback := served.Name != backend.Name
	if wasFallback {
		meta[types.MetaFallbackReason] = fallbackReason
	}

	entry.WithFields(logrus.Fields{
		"served_by":   served.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Dispatch complete")

	return &types.Response{
		RequestID:   requestID,
		Backend:     served.Name,
		Content:     content,
		WasFallback: wasFallback,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Explain runs the configured decision path for a request without invoking
// any adapter. Useful for dry runs and the gateway's explain endpoint.
func (o *Orchestrator) Explain(req types.Request) (*types.Decision, error) {
	return o.decide(req)
}

func (o *Orchestrator) decide(req types.Request) (*types.Decision, error) {
	if o.useFDE {
		return o.engine.Decide(req)
	}
	return o.router.Route(req)
}

func (o *Orchestrator) mode() types.RoutingMode {
	if o.useFDE {
		return types.RoutingModeFDE
	}
	return types.RoutingModePolicy
}

// invokeWithFallback invokes the chosen backend's adapter. If that fails and
// the chosen backend is a configured fallback primary, the fallback target is
// invoked once; its identity is returned so the response never misreports who
// served it.
func (o *Orchestrator) invokeWithFallback(ctx context.Context, backend types.Backend, req types.Request, entry *logrus.Entry) (string, types.Backend, string, error) {
	content, err := o.invoke(ctx, backend, req)
	if err == nil {
		return content, backend, "", nil
	}

	target, ok := o.fallbackTarget(backend.Name)
	if !ok {
		return "", backend, "", err
	}

	entry.WithError(err).WithField("fallback", target.Name).Warn("Primary backend failed, using configured fallback")
	content, fbErr := o.invoke(ctx, target, req)
	if fbErr != nil {
		return "", target, "", fbErr
	}
	return content, target, err.Error(), nil
}

func (o *Orchestrator) invoke(ctx context.Context, backend types.Backend, req types.Request) (string, error) {
	adapter := o.adapterFor(backend.Name)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	content, err := adapter.Invoke(ctx, backend, req)
	metrics.ObserveAdapterDuration(backend.Name, time.Since(start))
	if err != nil {
		return "", &types.AdapterError{Backend: backend.Name, Err: err}
	}
	return content, nil
}

func (o *Orchestrator) adapterFor(name string) adapters.Adapter {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if adapter, ok := o.adapterByName[name]; ok {
		return adapter
	}
	return o.defaultAdapter
}

func (o *Orchestrator) fallbackTarget(failed string) (types.Backend, bool) {
	o.mu.RLock()
	fb := o.fallback
	o.mu.RUnlock()

	if fb == nil || fb.primary != failed {
		return types.Backend{}, false
	}
	return o.registry.Get(fb.target)
}

// responseMetadata flattens a decision into the stable metadata contract
// carried on every response.
func responseMetadata(d *types.Decision) map[string]interface{} {
	meta := map[string]interface{}{
		types.MetaRoutingMode: string(d.Mode),
		types.MetaRationale:   d.Rationale,
	}
	if d.Classification != "" {
		meta[types.MetaClassification] = string(d.Classification)
	}
	if len(d.Warnings) > 0 {
		meta[types.MetaWarnings] = d.Warnings
	}
	if d.Mode == types.RoutingModeFDE {
		if winner, ok := d.WinnerScore(); ok {
			meta[types.MetaScore] = winner.Scores.Overall
			meta[types.MetaPrivacyScore] = winner.Scores.Privacy
			meta[types.MetaCostScore] = winner.Scores.Cost
			meta[types.MetaCapabilityScore] = winner.Scores.Capability
			meta[types.MetaLatencyScore] = winner.Scores.Latency
			meta[types.MetaEstimatedCost] = winner.EstimatedCost
		}
	}
	return meta
}
