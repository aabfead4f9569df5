package types

import (
	"fmt"
	"strings"
)

// ConfigurationError reports invalid setup: bad weights, unknown localities,
// or a mapping that names a backend the registry does not hold. Fatal at
// setup time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NoRouteError means the policy router evaluated every policy and nothing
// resolved to a backend. The request is not silently sent to a default.
type NoRouteError struct {
	// Attempted lists the classifications produced, in evaluation order.
	Attempted []Classification
}

func (e *NoRouteError) Error() string {
	if len(e.Attempted) == 0 {
		return "no route: no policy produced a classification"
	}
	labels := make([]string, len(e.Attempted))
	for i, c := range e.Attempted {
		labels[i] = string(c)
	}
	return fmt.Sprintf("no route: no classification resolved to a backend (attempted %s)", strings.Join(labels, ", "))
}

// NoBackendsError means the decision engine was invoked against an empty
// registry.
type NoBackendsError struct{}

func (e *NoBackendsError) Error() string {
	return "no backends registered"
}

// PolicyEvaluationError records a single rule that failed to produce a
// classification. It is warning-level: the router logs it, notes it on the
// decision, and keeps evaluating the remaining policies.
type PolicyEvaluationError struct {
	Policy int // index in insertion order
	Err    error
}

func (e *PolicyEvaluationError) Error() string {
	return fmt.Sprintf("policy %d evaluation failed: %v", e.Policy, e.Err)
}

func (e *PolicyEvaluationError) Unwrap() error { return e.Err }

// AdapterError wraps a failed backend invocation with the backend's identity.
// The core surfaces it verbatim: no retry, and no failover unless the caller
// configured an explicit fallback pair.
type AdapterError struct {
	Backend string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("backend %q adapter: %v", e.Backend, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
