// Package signals turns raw prompt text into the decision-relevant features
// the routing paths consume: a privacy flag, a complexity estimate, and token
// estimates. Every function here is deterministic and side-effect free;
// nothing is cached between requests.
package signals

import "regexp"

// Fixed sensitive-pattern detectors. Matching is exact (a pattern matches or
// it does not); novel PII formats are an accepted false negative, never an
// error. The privacy signal is the OR across detectors.
var piiPatterns = []*regexp.Regexp{
	// national ID (SSN)
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	// payment card
	regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
	// email address
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	// phone number
	regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
}

// DetectPrivacySignal reports whether the text contains privacy-sensitive
// content matching any of the fixed detectors.
func DetectPrivacySignal(text string) bool {
	for _, p := range piiPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
