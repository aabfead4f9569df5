package signals

import "strings"

// Vocabulary that marks a prompt as technically demanding. Each hit raises
// the complexity estimate; the list is fixed so the estimate stays
// deterministic across requests.
var complexityKeywords = []string{
	"explain",
	"analyze",
	"compare",
	"architecture",
	"algorithm",
	"theorem",
	"distributed",
	"consensus",
	"optimize",
	"design",
	"implement",
	"tradeoff",
	"concurrency",
	"scalability",
}

const (
	lengthWeightCap  = 0.4
	lengthNormChars  = 1000
	keywordPerHit    = 0.15
	keywordWeightCap = 0.6
)

// Complexity bands used by the token estimator's output multiplier.
const (
	bandModerate = 1.0 / 3.0
	bandComplex  = 2.0 / 3.0
)

// EstimateComplexity maps prompt text to a difficulty estimate in [0,1].
// Longer and keyword-denser prompts never score lower than shorter,
// keyword-sparse ones: both components are monotone and capped.
func EstimateComplexity(text string) float64 {
	lengthScore := float64(len(text)) / lengthNormChars * lengthWeightCap
	if lengthScore > lengthWeightCap {
		lengthScore = lengthWeightCap
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	keywordScore := float64(hits) * keywordPerHit
	if keywordScore > keywordWeightCap {
		keywordScore = keywordWeightCap
	}

	score := lengthScore + keywordScore
	if score > 1 {
		score = 1
	}
	return score
}

// outputMultiplier buckets a complexity estimate into the bands the token
// estimator uses: simple prompts produce short answers, complex ones long.
func outputMultiplier(complexity float64) int {
	switch {
	case complexity < bandModerate:
		return 1
	case complexity < bandComplex:
		return 2
	default:
		return 3
	}
}
