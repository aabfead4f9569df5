package policy

import (
	"strings"

	"github.com/tributary-ai/llm-dispatch/internal/signals"
	"github.com/tributary-ai/llm-dispatch/internal/types"
)

// PrivacyRule classifies requests carrying privacy-sensitive content as
// RESTRICTED and everything else as PUBLIC. Registered strict, it guarantees
// sensitive prompts resolve to a local backend.
func PrivacyRule() Rule {
	return RuleFunc(func(req types.Request) (types.Classification, error) {
		if signals.DetectPrivacySignal(req.PromptText) {
			return types.ClassificationRestricted, nil
		}
		return types.ClassificationPublic, nil
	})
}

// KeywordRule returns classification when the prompt contains any of the
// keywords (case-insensitive); otherwise it holds no opinion.
func KeywordRule(keywords []string, classification types.Classification) Rule {
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	return RuleFunc(func(req types.Request) (types.Classification, error) {
		prompt := strings.ToLower(req.PromptText)
		for _, kw := range lowered {
			if kw != "" && strings.Contains(prompt, kw) {
				return classification, nil
			}
		}
		return "", nil
	})
}

// MetadataRule returns classification when the request carries the given
// metadata key/value pair; otherwise it holds no opinion.
func MetadataRule(key, value string, classification types.Classification) Rule {
	return RuleFunc(func(req types.Request) (types.Classification, error) {
		if req.Metadata[key] == value {
			return classification, nil
		}
		return "", nil
	})
}

// FallbackRule always returns the given classification. Registered advisory,
// it acts as the default when nothing stricter resolves.
func FallbackRule(classification types.Classification) Rule {
	return RuleFunc(func(req types.Request) (types.Classification, error) {
		return classification, nil
	})
}
