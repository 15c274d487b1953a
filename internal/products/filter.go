package products

// compliantTag is the explicit catalog label that marks an entry as already
// vetted for sale.
const compliantTag = "hemp-derived"

// LegalFilter drops products that cannot be affirmatively verified against
// the jurisdiction's rules. The posture is conservative: an ambiguous entry
// is excluded, never given the benefit of the doubt.
type LegalFilter struct {
	// HempDerivedOnly requires an affirmative hemp marker in the labeling.
	HempDerivedOnly bool
	// MaxCompoundPercent is the ceiling for the regulated compound, in
	// percent by weight.
	MaxCompoundPercent float64
}

// Allow reports whether p may be recommended. An entry passes when it is
// explicitly tagged compliant, or when its labeling declares hemp
// derivation and a tested compound value at or under the ceiling.
func (f LegalFilter) Allow(p Product) bool {
	for _, t := range p.Tags {
		if t == compliantTag {
			return true
		}
	}
	if f.HempDerivedOnly && !p.HempDerived {
		return false
	}
	if !p.CompoundTested {
		return false
	}
	return p.CompoundPercent <= f.MaxCompoundPercent
}
