package policy

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-dispatch/internal/backends"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestRegistry(t *testing.T, list ...types.Backend) *backends.Registry {
	t.Helper()
	r := backends.NewRegistry(testLogger())
	for _, b := range list {
		if err := r.Register(b); err != nil {
			t.Fatalf("Register(%s): %v", b.Name, err)
		}
	}
	return r
}

func localRemotePair(t *testing.T) *backends.Registry {
	return newTestRegistry(t,
		types.NewBackend("ollama", types.LocalityLocal, 0, 0),
		types.NewBackend("claude", types.LocalityRemote, 0.005, 0.02),
	)
}

func request(prompt string) types.Request {
	return types.Request{PromptText: prompt}
}

func TestSmartDefaults(t *testing.T) {
	tests := []struct {
		classification types.Classification
		wantBackend    string
	}{
		{types.ClassificationRestricted, "ollama"},
		{types.ClassificationPrivate, "ollama"},
		{types.ClassificationPublic, "claude"},
	}

	for _, tt := range tests {
		t.Run(string(tt.classification), func(t *testing.T) {
			router := NewRouter(localRemotePair(t), nil, testLogger())
			if err := router.AddPolicy(FallbackRule(tt.classification), types.EnforcementStrict); err != nil {
				t.Fatal(err)
			}

			decision, err := router.Route(request("hello"))
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if decision.Backend != tt.wantBackend {
				t.Errorf("backend = %s, want %s", decision.Backend, tt.wantBackend)
			}
			if decision.Classification != tt.classification {
				t.Errorf("classification = %s, want %s", decision.Classification, tt.classification)
			}
			if decision.Mode != types.RoutingModePolicy {
				t.Errorf("mode = %s, want %s", decision.Mode, types.RoutingModePolicy)
			}
		})
	}
}

func TestPrivacyOverride(t *testing.T) {
	// A strict privacy policy must send privacy-flagged prompts to a local
	// backend no matter what advisory policies say.
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(PrivacyRule(), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}
	if err := router.AddPolicy(FallbackRule(types.ClassificationPublic), types.EnforcementAdvisory); err != nil {
		t.Fatal(err)
	}

	decision, err := router.Route(request("My SSN is 123-45-6789"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "ollama" {
		t.Errorf("privacy-flagged prompt routed to %s, want ollama", decision.Backend)
	}
	if decision.Classification != types.ClassificationRestricted {
		t.Errorf("classification = %s, want RESTRICTED", decision.Classification)
	}
	if !decision.Signals.PrivacyFlag {
		t.Error("decision should carry the privacy signal")
	}

	decision, err = router.Route(request("What is the capital of France?"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "claude" {
		t.Errorf("public prompt routed to %s, want claude", decision.Backend)
	}
}

func TestStrictPrecedence(t *testing.T) {
	// Strict and advisory both resolve, to different backends: strict wins
	// even when the advisory policy was registered first.
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(FallbackRule(types.ClassificationPublic), types.EnforcementAdvisory); err != nil {
		t.Fatal(err)
	}
	if err := router.AddPolicy(FallbackRule(types.ClassificationRestricted), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}

	decision, err := router.Route(request("anything"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "ollama" {
		t.Errorf("backend = %s, want ollama (strict RESTRICTED)", decision.Backend)
	}
}

func TestFirstStrictWins(t *testing.T) {
	// Two strict policies resolving to different backends: first in
	// insertion order wins.
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(FallbackRule(types.ClassificationPublic), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}
	if err := router.AddPolicy(FallbackRule(types.ClassificationRestricted), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}

	decision, err := router.Route(request("anything"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "claude" {
		t.Errorf("backend = %s, want claude (first strict PUBLIC)", decision.Backend)
	}
}

func TestUnresolvableStrictFallsThrough(t *testing.T) {
	// A strict classification with no mapping and no smart default cannot
	// block a later strict policy that does resolve.
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(FallbackRule(types.Classification("INTERNAL")), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}
	if err := router.AddPolicy(FallbackRule(types.ClassificationPrivate), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}

	decision, err := router.Route(request("anything"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "ollama" {
		t.Errorf("backend = %s, want ollama", decision.Backend)
	}
	if decision.Classification != types.ClassificationPrivate {
		t.Errorf("classification = %s, want PRIVATE", decision.Classification)
	}
}

func TestExplicitMappingOverridesSmartDefault(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.SetClassificationMapping(types.ClassificationRestricted, "claude"); err != nil {
		t.Fatal(err)
	}
	if err := router.AddPolicy(FallbackRule(types.ClassificationRestricted), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}

	decision, err := router.Route(request("anything"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "claude" {
		t.Errorf("backend = %s, want claude (explicit mapping wins)", decision.Backend)
	}
}

func TestCustomClassificationNeedsMapping(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(FallbackRule(types.Classification("FINANCE")), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}

	if _, err := router.Route(request("quarterly numbers")); err == nil {
		t.Fatal("Route should fail for an unmapped custom classification")
	}

	if err := router.SetClassificationMapping(types.Classification("FINANCE"), "ollama"); err != nil {
		t.Fatal(err)
	}
	decision, err := router.Route(request("quarterly numbers"))
	if err != nil {
		t.Fatalf("Route after mapping: %v", err)
	}
	if decision.Backend != "ollama" {
		t.Errorf("backend = %s, want ollama", decision.Backend)
	}
}

func TestMappingUnknownBackendFailsAtMappingTime(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	err := router.SetClassificationMapping(types.ClassificationPublic, "nonexistent")
	if err == nil {
		t.Fatal("SetClassificationMapping should fail for an unknown backend")
	}
	var cfgErr *types.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error %T, want *types.ConfigurationError", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error %q should mention the backend was not found", err)
	}
}

func TestPolicyFailureSkipped(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	failing := RuleFunc(func(req types.Request) (types.Classification, error) {
		return "", fmt.Errorf("classifier backend unreachable")
	})
	if err := router.AddPolicy(failing, types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}
	if err := router.AddPolicy(FallbackRule(types.ClassificationPublic), types.EnforcementAdvisory); err != nil {
		t.Fatal(err)
	}

	decision, err := router.Route(request("anything"))
	if err != nil {
		t.Fatalf("Route should survive a failing policy: %v", err)
	}
	if decision.Backend != "claude" {
		t.Errorf("backend = %s, want claude", decision.Backend)
	}
	if len(decision.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", decision.Warnings)
	}
	if !strings.Contains(decision.Warnings[0], "policy 0") {
		t.Errorf("warning %q should name the failed policy index", decision.Warnings[0])
	}
}

func TestNoRoute(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(FallbackRule(types.Classification("UNMAPPED")), types.EnforcementAdvisory); err != nil {
		t.Fatal(err)
	}

	_, err := router.Route(request("anything"))
	if err == nil {
		t.Fatal("Route should fail when nothing resolves")
	}
	var noRoute *types.NoRouteError
	if !errors.As(err, &noRoute) {
		t.Fatalf("error %T, want *types.NoRouteError", err)
	}
	if len(noRoute.Attempted) != 1 || noRoute.Attempted[0] != "UNMAPPED" {
		t.Errorf("attempted = %v, want [UNMAPPED]", noRoute.Attempted)
	}
}

func TestNoPoliciesNoRoute(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	_, err := router.Route(request("anything"))
	var noRoute *types.NoRouteError
	if !errors.As(err, &noRoute) {
		t.Fatalf("error %T, want *types.NoRouteError", err)
	}
}

func TestPrivacyPreferredSeedsSmartDefault(t *testing.T) {
	registry := newTestRegistry(t,
		types.NewBackend("edge-a", types.LocalityLocal, 0, 0),
		types.NewBackend("edge-b", types.LocalityLocal, 0, 0),
		types.NewBackend("claude", types.LocalityRemote, 0.005, 0.02),
	)
	router := NewRouter(registry, []string{"edge-b"}, testLogger())
	if err := router.AddPolicy(FallbackRule(types.ClassificationRestricted), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}

	decision, err := router.Route(request("anything"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "edge-b" {
		t.Errorf("backend = %s, want privacy-preferred edge-b", decision.Backend)
	}

	// Without the preference the first registered local backend wins.
	plain := NewRouter(registry, nil, testLogger())
	if err := plain.AddPolicy(FallbackRule(types.ClassificationRestricted), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}
	decision, err = plain.Route(request("anything"))
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Backend != "edge-a" {
		t.Errorf("backend = %s, want edge-a", decision.Backend)
	}
}

func TestSingleBackendResolvableSetup(t *testing.T) {
	// With one local backend, a strict privacy policy plus an explicit
	// PUBLIC mapping keeps every prompt on that backend without error.
	registry := newTestRegistry(t, types.NewBackend("ollama", types.LocalityLocal, 0, 0))
	router := NewRouter(registry, nil, testLogger())
	if err := router.AddPolicy(PrivacyRule(), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}
	if err := router.SetClassificationMapping(types.ClassificationPublic, "ollama"); err != nil {
		t.Fatal(err)
	}

	for _, prompt := range []string{"My SSN is 123-45-6789", "What is Python?"} {
		decision, err := router.Route(request(prompt))
		if err != nil {
			t.Fatalf("Route(%q): %v", prompt, err)
		}
		if decision.Backend != "ollama" {
			t.Errorf("Route(%q) backend = %s, want ollama", prompt, decision.Backend)
		}
	}
}

func TestRouteDeterministic(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(PrivacyRule(), types.EnforcementStrict); err != nil {
		t.Fatal(err)
	}
	if err := router.AddPolicy(KeywordRule([]string{"internal"}, types.ClassificationPrivate), types.EnforcementAdvisory); err != nil {
		t.Fatal(err)
	}

	req := request("summarize the internal report")
	first, err := router.Route(req)
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := router.Route(req)
		if err != nil {
			t.Fatalf("Route run %d: %v", i, err)
		}
		if again.Backend != first.Backend || again.Classification != first.Classification {
			t.Fatalf("Route not deterministic: run %d gave %s/%s, first gave %s/%s",
				i, again.Backend, again.Classification, first.Backend, first.Classification)
		}
	}
}

func TestKeywordRule(t *testing.T) {
	rule := KeywordRule([]string{"Confidential", "secret"}, types.ClassificationPrivate)

	c, err := rule.Evaluate(request("this is CONFIDENTIAL material"))
	if err != nil {
		t.Fatal(err)
	}
	if c != types.ClassificationPrivate {
		t.Errorf("classification = %s, want PRIVATE", c)
	}

	c, err = rule.Evaluate(request("nothing interesting"))
	if err != nil {
		t.Fatal(err)
	}
	if c != "" {
		t.Errorf("classification = %q, want no opinion", c)
	}
}

func TestMetadataRule(t *testing.T) {
	rule := MetadataRule("tenant", "gov", types.ClassificationRestricted)

	c, err := rule.Evaluate(types.Request{PromptText: "x", Metadata: map[string]string{"tenant": "gov"}})
	if err != nil {
		t.Fatal(err)
	}
	if c != types.ClassificationRestricted {
		t.Errorf("classification = %s, want RESTRICTED", c)
	}

	c, err = rule.Evaluate(types.Request{PromptText: "x", Metadata: map[string]string{"tenant": "acme"}})
	if err != nil {
		t.Fatal(err)
	}
	if c != "" {
		t.Errorf("classification = %q, want no opinion", c)
	}
}

func TestAddPolicyValidation(t *testing.T) {
	router := NewRouter(localRemotePair(t), nil, testLogger())
	if err := router.AddPolicy(nil, types.EnforcementStrict); err == nil {
		t.Error("AddPolicy(nil) should fail")
	}
	if err := router.AddPolicy(PrivacyRule(), types.Enforcement("mandatory")); err == nil {
		t.Error("AddPolicy with unknown enforcement should fail")
	}
}

func BenchmarkRoute(b *testing.B) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	registry := backends.NewRegistry(logger)
	_ = registry.Register(types.NewBackend("ollama", types.LocalityLocal, 0, 0))
	_ = registry.Register(types.NewBackend("claude", types.LocalityRemote, 0.005, 0.02))

	router := NewRouter(registry, nil, logger)
	_ = router.AddPolicy(PrivacyRule(), types.EnforcementStrict)
	req := request("Explain CAP theorem with distributed consensus examples")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := router.Route(req); err != nil {
			b.Fatal(err)
		}
	}
}
