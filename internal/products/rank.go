package products

import (
	"fmt"
	"sort"
	"strings"
)

// Additive ranking weights. Strain fit dominates because it is the
// strongest signal the heuristics extract from a goal-oriented query.
const (
	strainWeight      = 3
	effectWeight      = 2
	potencyWeight     = 2
	priceBandWeight   = 2
	productTypeWeight = 2
	starterWeight     = 1
)

// rank scores every product against the spec and orders them best first.
// The sort is stable, so products the spec cannot tell apart keep their
// catalog order.
func rank(spec SearchSpec, items []Product) []Product {
	out := make([]Product, len(items))
	copy(out, items)
	for i := range out {
		out[i].Score, out[i].Reason = scoreProduct(spec, out[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// scoreProduct returns an additive match score and the human-readable
// justification assembled from the signals that fired.
func scoreProduct(spec SearchSpec, p Product) (int, string) {
	score := 0
	var reasons []string

	if spec.Strain != "" && p.Strain == spec.Strain {
		score += strainWeight
		reasons = append(reasons, fmt.Sprintf("%s strain fits your goal", p.Strain))
	}

	for _, want := range spec.DesiredEffects {
		if hasEffect(p, want) {
			score += effectWeight
			reasons = append(reasons, "targets "+want)
		}
	}

	if spec.Potency.covers(p.PotencyPercent) {
		score += potencyWeight
		reasons = append(reasons, "within your potency comfort range")
	}

	if spec.PriceBand != "" && p.PriceBand == spec.PriceBand {
		score += priceBandWeight
		reasons = append(reasons, string(p.PriceBand)+" priced")
	}

	for _, want := range spec.ProductTypes {
		if p.Category == want {
			score += productTypeWeight
			reasons = append(reasons, "comes as a "+want)
			break
		}
	}

	// Gentle products get a nudge for cautious buyers.
	if spec.Potency.Max <= maxPotencyNew && p.PotencyPercent <= maxPotencyNew {
		score += starterWeight
	}

	if len(reasons) == 0 {
		return score, "broad match for your request"
	}
	return score, strings.Join(reasons, "; ")
}

func hasEffect(p Product, effect string) bool {
	for _, e := range p.Effects {
		if e == effect {
			return true
		}
	}
	return false
}
