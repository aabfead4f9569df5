package types

import "time"

// Metadata keys present on every dispatch response. The FDE path additionally
// carries the per-factor score keys; the policy path carries the
// classification. Callers and the HTTP gateway treat these as a stable
// contract.
const (
	MetaRoutingMode     = "routing_mode"
	MetaClassification  = "classification"
	MetaRationale       = "rationale"
	MetaScore           = "score"
	MetaPrivacyScore    = "privacy_score"
	MetaCostScore       = "cost_score"
	MetaCapabilityScore = "capability_score"
	MetaLatencyScore    = "latency_score"
	MetaEstimatedCost   = "estimated_cost"
	MetaWarnings        = "warnings"
	MetaFallbackReason  = "fallback_reason"
)

// Response is what a dispatch returns to the caller: which backend answered,
// what it said, and enough decision metadata to audit the choice.
type Response struct {
	RequestID   string                 `json:"request_id"`
	Backend     string                 `json:"backend"`
	Content     string                 `json:"content"`
	WasFallback bool                   `json:"was_fallback"`
	Metadata    map[string]interface{} `json:"metadata"`
	CreatedAt   time.Time              `json:"created_at"`
}
