package types

import "time"

// RoutingMode names the decision path that produced a Decision.
type RoutingMode string

const (
	RoutingModePolicy RoutingMode = "policy"
	RoutingModeFDE    RoutingMode = "fde"
)

// FactorScores is the per-factor breakdown the decision engine computes for
// one backend. Every factor and the weighted overall live in [0,1].
type FactorScores struct {
	Privacy    float64 `json:"privacy"`
	Cost       float64 `json:"cost"`
	Capability float64 `json:"capability"`
	Latency    float64 `json:"latency"`
	Overall    float64 `json:"overall"`
}

// BackendScore pairs a candidate backend with its breakdown for one request.
type BackendScore struct {
	Backend       string       `json:"backend"`
	Locality      Locality     `json:"locality"`
	Scores        FactorScores `json:"scores"`
	EstimatedCost float64      `json:"estimated_cost"`
}

// Decision is the immutable outcome of either routing path.
type Decision struct {
	Mode           RoutingMode    `json:"mode"`
	Backend        string         `json:"backend"`
	Classification Classification `json:"classification,omitempty"`
	Rationale      string         `json:"rationale"`
	// Candidates holds the full per-factor breakdown for every registered
	// backend on the FDE path, winner included, in registration order.
	Candidates []BackendScore `json:"candidates,omitempty"`
	Signals    Signals        `json:"signals"`
	// Warnings records policies skipped during evaluation.
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WinnerScore returns the winning backend's breakdown on the FDE path.
func (d *Decision) WinnerScore() (BackendScore, bool) {
	for _, c := range d.Candidates {
		if c.Backend == d.Backend {
			return c, true
		}
	}
	return BackendScore{}, false
}
