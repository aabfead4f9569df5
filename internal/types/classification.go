package types

// Classification is the label a policy rule assigns to a request. The three
// built-in labels carry smart-default locality implications; any other label
// needs an explicit mapping to resolve.
type Classification string

const (
	ClassificationRestricted Classification = "RESTRICTED"
	ClassificationPrivate    Classification = "PRIVATE"
	ClassificationPublic     Classification = "PUBLIC"
)

// Enforcement is the weight a policy's classification carries during routing.
type Enforcement string

const (
	// EnforcementStrict marks a hard constraint that overrides advisory results.
	EnforcementStrict Enforcement = "strict"
	// EnforcementAdvisory marks a soft preference used when no strict result resolves.
	EnforcementAdvisory Enforcement = "advisory"
)

// Valid reports whether the enforcement level is known.
func (e Enforcement) Valid() bool {
	return e == EnforcementStrict || e == EnforcementAdvisory
}

// smartDefaults is the closed classification-to-locality table behind smart
// default resolution. Labels outside this table never resolve implicitly.
var smartDefaults = map[Classification]Locality{
	ClassificationRestricted: LocalityLocal,
	ClassificationPrivate:    LocalityLocal,
	ClassificationPublic:     LocalityRemote,
}

// SmartDefaultLocality returns the locality implied by a built-in
// classification, and whether the classification carries one.
func SmartDefaultLocality(c Classification) (Locality, bool) {
	loc, ok := smartDefaults[c]
	return loc, ok
}
