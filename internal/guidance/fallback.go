package guidance

// Canned guidance shown when generation fails outright. Single paragraph
// on purpose: the missing blank line is what lets the response cache
// recognize these as fallbacks later (see StructuralMarker).
var fallbackTextByLevel = map[ExperienceLevel]string{
	LevelNew: "We couldn't reach our guidance service just now, but here's the short version: " +
		"start with a low-dose, hemp-derived product in a form you're comfortable with, " +
		"give it time to work, and adjust slowly. The product picks below are a safe place to begin.",
	LevelCasual: "Our guidance service is temporarily unavailable. " +
		"Based on what usually works, consider a mid-potency hemp-derived product matched to the " +
		"effect you're after, and check the lab results on the label. The picks below fit most requests like yours.",
	LevelExperienced: "Our guidance service is temporarily unavailable. " +
		"You likely know the drill: match the cannabinoid and terpene profile to your goal and verify " +
		"the COA. The ranked picks below were selected against your query without model input.",
}

// StructuralMarker is present in every genuine completion (the prompt
// demands paragraphs separated by blank lines) and absent from every
// canned fallback. The cache uses it to avoid evicting a short but real
// response.
const StructuralMarker = "\n\n"

// FallbackText returns the canned guidance for a level.
func FallbackText(level ExperienceLevel) string {
	if text, ok := fallbackTextByLevel[level]; ok {
		return text
	}
	return fallbackTextByLevel[LevelNew]
}

// FallbackFingerprints are the phrases that identify canned guidance text.
// Kept as substrings rather than full texts so minor copy edits don't
// silently break detection.
func FallbackFingerprints() []string {
	return []string{
		"We couldn't reach our guidance service",
		"Our guidance service is temporarily unavailable",
	}
}
