// Package products turns a free-text question and a raw catalog into a
// ranked, legally filtered set of recommendations.
package products

import "strings"

// ExperienceLevel is the user's self-reported familiarity with these
// products. It drives the default search spec and ranking suitability.
type ExperienceLevel string

const (
	LevelNew         ExperienceLevel = "new"
	LevelCasual      ExperienceLevel = "casual"
	LevelExperienced ExperienceLevel = "experienced"
)

// ParseExperienceLevel maps free-form input onto a known level, defaulting
// to LevelNew: when in doubt, recommend conservatively.
func ParseExperienceLevel(s string) ExperienceLevel {
	switch ExperienceLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelCasual:
		return LevelCasual
	case LevelExperienced:
		return LevelExperienced
	default:
		return LevelNew
	}
}

// Strain is a product's dominant strain family.
type Strain string

const (
	StrainIndica Strain = "indica"
	StrainSativa Strain = "sativa"
	StrainHybrid Strain = "hybrid"
)

func parseStrain(s string) (Strain, bool) {
	switch Strain(strings.ToLower(strings.TrimSpace(s))) {
	case StrainIndica:
		return StrainIndica, true
	case StrainSativa:
		return StrainSativa, true
	case StrainHybrid:
		return StrainHybrid, true
	default:
		return "", false
	}
}

// PriceBand groups prices into the three tiers the spec builder reasons in.
type PriceBand string

const (
	BandValue   PriceBand = "value"
	BandMid     PriceBand = "mid"
	BandPremium PriceBand = "premium"
)

func parsePriceBand(s string) (PriceBand, bool) {
	switch PriceBand(strings.ToLower(strings.TrimSpace(s))) {
	case BandValue:
		return BandValue, true
	case BandMid:
		return BandMid, true
	case BandPremium:
		return BandPremium, true
	default:
		return "", false
	}
}

// PotencyRange bounds acceptable total cannabinoid strength in percent.
type PotencyRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r PotencyRange) covers(pct float64) bool {
	return pct >= r.Min && pct <= r.Max
}

// LegalConstraints is the jurisdiction rule a spec carries: hemp-derived
// products only, with a ceiling on the regulated compound percent.
type LegalConstraints struct {
	HempDerivedOnly    bool    `json:"hemp_derived_only"`
	MaxCompoundPercent float64 `json:"max_compound_percent"`
}

// SearchSpec is the structured search derived from a query. Read-only once
// built; refinement returns a new value rather than mutating.
type SearchSpec struct {
	DesiredEffects []string         `json:"desired_effects"`
	ProductTypes   []string         `json:"product_types"`
	Strain         Strain           `json:"strain"`
	Potency        PotencyRange     `json:"potency"`
	PriceBand      PriceBand        `json:"price_band"`
	Legal          LegalConstraints `json:"legal"`
}

// InventoryItem is a raw catalog entry exactly as a source returns it.
// Potency, Price, and CompoundPercent are deliberately loose: catalogs mix
// numbers with formatted strings, and absence is meaningful for compliance.
type InventoryItem struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	Strain          string   `json:"strain,omitempty"`
	Effects         []string `json:"effects,omitempty"`
	Potency         any      `json:"potency,omitempty"`
	Price           any      `json:"price,omitempty"`
	CompoundPercent any      `json:"compound_percent,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Product is the normalized, scored presentation form of an InventoryItem.
type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	Description     string    `json:"description"`
	Strain          Strain    `json:"strain"`
	Effects         []string  `json:"effects,omitempty"`
	PotencyPercent  float64   `json:"potency_percent"`
	PriceCents      int       `json:"price_cents"`
	PriceBand       PriceBand `json:"price_band"`
	CompoundPercent float64   `json:"compound_percent"`
	CompoundTested  bool      `json:"compound_tested"`
	HempDerived     bool      `json:"hemp_derived"`
	Tags            []string  `json:"tags,omitempty"`
	Score           int       `json:"score"`
	Reason          string    `json:"reason,omitempty"`
}
