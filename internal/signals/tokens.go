package signals

import "github.com/tributary-ai/llm-dispatch/internal/types"

const (
	// Rough chars-per-token ratio, the same heuristic the adapters use for
	// cost estimates.
	charsPerToken = 4
	// Floor on the output estimate so a short prompt never yields a
	// zero-cost artifact.
	minOutputUnits = 8
)

// EstimateTokens estimates input and output units for a prompt from its
// length alone. It never calls an external tokenizer.
func EstimateTokens(text string) (inputUnits, outputUnits int) {
	return estimateTokens(text, EstimateComplexity(text))
}

func estimateTokens(text string, complexity float64) (inputUnits, outputUnits int) {
	inputUnits = (len(text) + charsPerToken - 1) / charsPerToken
	if inputUnits < 1 {
		inputUnits = 1
	}
	outputUnits = inputUnits * outputMultiplier(complexity)
	if outputUnits < minOutputUnits {
		outputUnits = minOutputUnits
	}
	return inputUnits, outputUnits
}

// Extract computes all signals for a prompt in one pass. Signals are request
// scoped: callers must not memoize them across requests.
func Extract(text string) types.Signals {
	complexity := EstimateComplexity(text)
	in, out := estimateTokens(text, complexity)
	return types.Signals{
		PrivacyFlag: DetectPrivacySignal(text),
		Complexity:  complexity,
		InputUnits:  in,
		OutputUnits: out,
	}
}
