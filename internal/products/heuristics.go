package products

import "strings"

// Potency caps by experience level, in percent. A new user never sees the
// strong end of the catalog unless they ask for it and the cap allows it.
const (
	maxPotencyNew         = 10
	maxPotencyCasual      = 20
	maxPotencyExperienced = 100
)

// defaultSpec is the baseline before any keyword or model input.
func defaultSpec(level ExperienceLevel) SearchSpec {
	spec := SearchSpec{
		Strain:    StrainHybrid,
		PriceBand: BandMid,
		Potency:   PotencyRange{Min: 0, Max: maxPotencyExperienced},
	}
	switch level {
	case LevelNew:
		spec.Potency.Max = maxPotencyNew
	case LevelCasual:
		spec.Potency.Max = maxPotencyCasual
	}
	return spec
}

// keywordRule rewrites part of the spec when any of its triggers appears in
// the query.
type keywordRule struct {
	triggers []string
	apply    func(*SearchSpec)
}

var keywordRules = []keywordRule{
	{
		triggers: []string{"sleep", "insomnia", "rest", "anxiety", "anxious", "stress", "relax", "calm", "unwind"},
		apply: func(s *SearchSpec) {
			s.Strain = StrainIndica
			s.DesiredEffects = appendUnique(s.DesiredEffects, "relaxation")
		},
	},
	{
		triggers: []string{"sleep", "insomnia", "rest"},
		apply: func(s *SearchSpec) {
			s.DesiredEffects = appendUnique(s.DesiredEffects, "sleep")
		},
	},
	{
		triggers: []string{"energy", "energetic", "focus", "creative", "creativity", "daytime", "productive", "motivation"},
		apply: func(s *SearchSpec) {
			s.Strain = StrainSativa
			s.DesiredEffects = appendUnique(s.DesiredEffects, "energy")
		},
	},
	{
		triggers: []string{"pain", "ache", "sore", "inflammation"},
		apply: func(s *SearchSpec) {
			s.DesiredEffects = appendUnique(s.DesiredEffects, "relief")
		},
	},
	{
		triggers: []string{"budget", "cheap", "affordable", "inexpensive"},
		apply:    func(s *SearchSpec) { s.PriceBand = BandValue },
	},
	{
		triggers: []string{"premium", "top-shelf", "top shelf", "luxury"},
		apply:    func(s *SearchSpec) { s.PriceBand = BandPremium },
	},
	{
		triggers: []string{"strong", "potent", "high potency"},
		apply: func(s *SearchSpec) {
			s.Potency.Min = 15
			if s.Potency.Max < s.Potency.Min {
				s.Potency.Min = s.Potency.Max
			}
		},
	},
	{
		triggers: []string{"mild", "gentle", "light", "low dose", "microdose"},
		apply: func(s *SearchSpec) {
			if s.Potency.Max > 8 {
				s.Potency.Max = 8
			}
		},
	},
	{
		triggers: []string{"gummy", "gummies", "edible", "edibles", "chocolate"},
		apply:    func(s *SearchSpec) { s.ProductTypes = appendUnique(s.ProductTypes, "edible") },
	},
	{
		triggers: []string{"oil", "tincture", "drops"},
		apply:    func(s *SearchSpec) { s.ProductTypes = appendUnique(s.ProductTypes, "tincture") },
	},
	{
		triggers: []string{"vape", "cartridge", "cart"},
		apply:    func(s *SearchSpec) { s.ProductTypes = appendUnique(s.ProductTypes, "vape") },
	},
	{
		triggers: []string{"flower", "bud", "pre-roll", "preroll", "joint"},
		apply:    func(s *SearchSpec) { s.ProductTypes = appendUnique(s.ProductTypes, "flower") },
	},
	{
		triggers: []string{"topical", "cream", "balm", "lotion", "salve"},
		apply:    func(s *SearchSpec) { s.ProductTypes = appendUnique(s.ProductTypes, "topical") },
	},
	{
		triggers: []string{"capsule", "capsules", "pill", "softgel"},
		apply:    func(s *SearchSpec) { s.ProductTypes = appendUnique(s.ProductTypes, "capsule") },
	},
}

// HeuristicSpec builds the baseline spec from the experience level and
// query keywords alone. It is deterministic and never calls a model; the
// refiner may extend its output but never has to exist for it to work.
func HeuristicSpec(query string, level ExperienceLevel) SearchSpec {
	spec := defaultSpec(level)
	q := strings.ToLower(query)
	for _, rule := range keywordRules {
		for _, t := range rule.triggers {
			if strings.Contains(q, t) {
				rule.apply(&spec)
				break
			}
		}
	}
	return spec
}

func appendUnique(list []string, v string) []string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return list
	}
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}
