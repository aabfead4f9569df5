package types

import (
	"fmt"
	"time"
)

// Locality classifies where a backend executes.
type Locality string

const (
	LocalityLocal  Locality = "local"
	LocalityRemote Locality = "remote"
)

// Valid reports whether the locality is one of the known classes.
func (l Locality) Valid() bool {
	return l == LocalityLocal || l == LocalityRemote
}

// DefaultCapability is assigned by NewBackend when the caller does not set one.
const DefaultCapability = 0.5

// Backend describes a candidate execution target. Backends are immutable once
// registered; re-registering the same name replaces the entry.
type Backend struct {
	Name              string        `json:"name" yaml:"name"`
	Locality          Locality      `json:"locality" yaml:"locality"`
	CostPerInputUnit  float64       `json:"cost_per_input_unit" yaml:"cost_per_input_unit"`
	CostPerOutputUnit float64       `json:"cost_per_output_unit" yaml:"cost_per_output_unit"`
	Capability        float64       `json:"capability" yaml:"capability"`
	// LatencyEstimate is the declared latency for one invocation.
	// Zero means the backend declares no estimate.
	LatencyEstimate time.Duration `json:"latency_estimate,omitempty" yaml:"latency_estimate,omitempty"`
}

// NewBackend builds a backend with the default capability score. Callers that
// know better set Capability (and LatencyEstimate) on the returned value.
func NewBackend(name string, locality Locality, costPerInput, costPerOutput float64) Backend {
	return Backend{
		Name:              name,
		Locality:          locality,
		CostPerInputUnit:  costPerInput,
		CostPerOutputUnit: costPerOutput,
		Capability:        DefaultCapability,
	}
}

// Validate checks the registration invariants.
func (b Backend) Validate() error {
	if b.Name == "" {
		return &ConfigurationError{Reason: "backend name must not be empty"}
	}
	if !b.Locality.Valid() {
		return &ConfigurationError{Reason: fmt.Sprintf("backend %q has unknown locality %q", b.Name, b.Locality)}
	}
	if b.CostPerInputUnit < 0 || b.CostPerOutputUnit < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("backend %q has negative cost", b.Name)}
	}
	if b.Capability < 0 || b.Capability > 1 {
		return &ConfigurationError{Reason: fmt.Sprintf("backend %q capability %.3f outside [0,1]", b.Name, b.Capability)}
	}
	if b.LatencyEstimate < 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("backend %q has negative latency estimate", b.Name)}
	}
	return nil
}
