package products

// FallbackProducts is the fixed set served when nothing in the live catalog
// survives the legal filter. Every entry here must pass the strictest
// filter configuration on its own merits.
func FallbackProducts() []Product {
	return []Product{
		{
			ID:              "fallback-calm-gummies",
			Name:            "Calm Evening Gummies",
			Category:        "edible",
			Description:     "Low-dose hemp-derived gummies blended with chamomile for winding down.",
			Strain:          StrainIndica,
			Effects:         []string{"relaxation", "sleep"},
			PotencyPercent:  2,
			PriceCents:      1899,
			PriceBand:       BandValue,
			CompoundPercent: 0.1,
			CompoundTested:  true,
			HempDerived:     true,
			Tags:            []string{compliantTag},
			Reason:          "always-available starter pick",
		},
		{
			ID:              "fallback-full-spectrum-tincture",
			Name:            "Full-Spectrum Hemp Tincture",
			Category:        "tincture",
			Description:     "Hemp-derived full-spectrum oil with a measured dropper for precise dosing.",
			Strain:          StrainHybrid,
			Effects:         []string{"relaxation", "relief"},
			PotencyPercent:  5,
			PriceCents:      4500,
			PriceBand:       BandMid,
			CompoundPercent: 0.3,
			CompoundTested:  true,
			HempDerived:     true,
			Tags:            []string{compliantTag},
			Reason:          "versatile house staple",
		},
		{
			ID:              "fallback-soothing-balm",
			Name:            "Soothing Hemp Balm",
			Category:        "topical",
			Description:     "Topical balm made from hemp-derived extract, shea butter, and arnica.",
			Strain:          StrainHybrid,
			Effects:         []string{"relief"},
			PotencyPercent:  0,
			PriceCents:      2800,
			PriceBand:       BandMid,
			CompoundPercent: 0,
			CompoundTested:  true,
			HempDerived:     true,
			Tags:            []string{compliantTag},
			Reason:          "no-dose option for local relief",
		},
	}
}
