package guidance

import "strings"

// Role framing per experience level. The model is told who it is talking
// to so the register matches: plain and cautious for new users, denser for
// experienced ones.
var levelFraming = map[ExperienceLevel]string{
	LevelNew: "The customer is completely new to hemp products. " +
		"Avoid jargon, explain any term you must use, and emphasize starting low and going slow.",
	LevelCasual: "The customer has tried hemp products occasionally. " +
		"You can use common product terms without defining them, but stay practical.",
	LevelExperienced: "The customer is experienced and wants specifics. " +
		"Discuss cannabinoid ratios, terpenes, and dosing detail directly.",
}

// BuildPrompt assembles the generation prompt for a question. The output
// contract (two to three short paragraphs) is part of the prompt: the
// paragraph break doubles as the structural marker the response cache uses
// to tell genuine completions from canned fallbacks.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are a knowledgeable, friendly budtender at a hemp wellness shop. ")
	b.WriteString(levelFraming[req.ExperienceLevel])
	b.WriteString("\n\nAnswer in two to three short paragraphs, separated by blank lines. ")
	b.WriteString("Recommend product categories and usage guidance, never medical claims. ")
	b.WriteString("Only discuss hemp-derived, federally compliant products.\n\n")
	b.WriteString("Customer question: ")
	b.WriteString(strings.TrimSpace(req.RawQuery))
	return b.String()
}
