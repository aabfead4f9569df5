package types

import "time"

// Request is the unit of work the decision core routes. Treat it as immutable
// after construction.
type Request struct {
	PromptText string            `json:"prompt"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Signals are the derived, request-scoped features the decision paths consume.
// They are computed fresh per request and never cached: the privacy flag must
// not outlive the request that produced it.
type Signals struct {
	PrivacyFlag bool    `json:"privacy_flag"`
	Complexity  float64 `json:"complexity"`
	InputUnits  int     `json:"input_units"`
	OutputUnits int     `json:"output_units"`
}
