// Package policy implements the rule-based routing path: an ordered set of
// policies classifies each request, and the classification resolves to a
// backend through explicit mappings or smart defaults, with strict policies
// overriding advisory ones.
package policy

import (
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// Rule classifies a request. Implementations are supplied by callers and may
// hold arbitrary logic; the router never inspects them beyond Evaluate.
//
// Returning an empty classification means the rule holds no opinion on this
// request and is skipped. Returning an error counts as a policy evaluation
// failure: the router records a warning and moves on.
type Rule interface {
	Evaluate(req types.Request) (types.Classification, error)
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc func(req types.Request) (types.Classification, error)

// Evaluate calls f.
func (f RuleFunc) Evaluate(req types.Request) (types.Classification, error) {
	return f(req)
}

// Policy pairs a rule with its enforcement level. Policies are held in
// insertion order; that order breaks ties within each enforcement level.
type Policy struct {
	Rule        Rule
	Enforcement types.Enforcement
}
