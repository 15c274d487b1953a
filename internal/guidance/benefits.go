package guidance

// Benefit notes shown alongside the generated text. The lookup is pure and
// keyed only by experience level, so this sub-task can never fail: every
// level maps to a non-empty list.
var benefitsByLevel = map[ExperienceLevel][]string{
	LevelNew: {
		"Start with the lowest listed dose and wait at least two hours before taking more.",
		"Hemp-derived products are federally legal when they stay under the regulated compound ceiling.",
		"Edibles and tinctures act more slowly but last longer than inhaled forms.",
		"Keep a simple note of what you tried and how it felt; it makes the next pick easier.",
	},
	LevelCasual: {
		"Product potency varies batch to batch; check the label even on repeat purchases.",
		"Rotating product types can keep effects consistent without raising your dose.",
		"Full-spectrum products combine several hemp compounds and may feel different from isolates.",
		"Lab-tested (COA-backed) products are the only way to verify the compound content.",
	},
	LevelExperienced: {
		"Compare certificates of analysis rather than marketing claims when choosing between brands.",
		"Minor cannabinoid ratios matter more at higher doses than headline potency numbers.",
		"Tolerance resets of a few days restore sensitivity more reliably than escalating dose.",
		"Terpene profiles, not just strain labels, drive the character of the effect.",
	},
}

// BenefitsFor returns the canned benefit notes for a level. Unknown levels
// get the conservative new-user notes.
func BenefitsFor(level ExperienceLevel) []string {
	if notes, ok := benefitsByLevel[level]; ok {
		return notes
	}
	return benefitsByLevel[LevelNew]
}
