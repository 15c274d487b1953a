package products

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Price band thresholds in cents. Boundaries land in the higher band.
const (
	valueBandCeiling = 2000
	midBandCeiling   = 6000
)

// Normalize converts a raw catalog entry into presentation form. Absent or
// malformed fields take documented defaults instead of failing: one bad
// catalog row must never take search down with it.
//
// Defaults: strain hybrid, potency 0, price band mid when no price is
// known. CompoundTested stays false when the entry carries no usable lab
// value, which the legal filter treats as ambiguous.
func Normalize(item InventoryItem) Product {
	p := Product{
		ID:          strings.TrimSpace(item.ID),
		Name:        strings.TrimSpace(item.Name),
		Category:    strings.ToLower(strings.TrimSpace(item.Category)),
		Description: stripMarkup(item.Description),
		Tags:        normalizeTags(item.Tags),
	}

	p.Strain = StrainHybrid
	if s, ok := parseStrain(item.Strain); ok {
		p.Strain = s
	}

	for _, e := range item.Effects {
		p.Effects = appendUnique(p.Effects, e)
	}

	if pct, ok := parsePercent(item.Potency); ok {
		p.PotencyPercent = pct
	}
	if pct, ok := parsePercent(item.CompoundPercent); ok {
		p.CompoundPercent = pct
		p.CompoundTested = true
	}

	p.PriceCents = parsePriceCents(item.Price)
	p.PriceBand = bandForCents(p.PriceCents)
	p.HempDerived = detectHempDerived(p.Category, p.Tags, p.Description)
	return p
}

// parsePercent accepts a bare number or a formatted string such as "22%",
// "22.5 %", or "0.3% Delta-9". Negative and non-numeric values are
// rejected.
func parsePercent(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int:
		if t < 0 {
			return 0, false
		}
		return float64(t), true
	case string:
		return parseLeadingFloat(t)
	default:
		return 0, false
	}
}

// parseLeadingFloat reads the first numeric token of s, skipping leading
// junk like "$" and ignoring everything after the number.
func parseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	start := strings.IndexFunc(s, func(r rune) bool {
		return r >= '0' && r <= '9' || r == '.'
	})
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	f, err := strconv.ParseFloat(s[start:end], 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// parsePriceCents accepts either a number, which catalogs send as cents,
// or a formatted dollar string such as "$45.00". Unknown shapes map to 0,
// meaning no price on record.
func parsePriceCents(v any) int {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0
		}
		return int(math.Round(t))
	case int:
		if t < 0 {
			return 0
		}
		return t
	case string:
		dollars, ok := parseLeadingFloat(t)
		if !ok {
			return 0
		}
		return int(math.Round(dollars * 100))
	default:
		return 0
	}
}

func bandForCents(cents int) PriceBand {
	switch {
	case cents <= 0:
		return BandMid
	case cents < valueBandCeiling:
		return BandValue
	case cents < midBandCeiling:
		return BandMid
	default:
		return BandPremium
	}
}

// stripMarkup flattens HTML fragments some catalogs put in descriptions
// down to plain text.
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return collapseSpaces(s)
	}

	var b strings.Builder
	tz := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := tz.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(tz.Token().Data))
		}
	}
	return collapseSpaces(b.String())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		out = appendUnique(out, t)
	}
	return out
}

// detectHempDerived looks for an affirmative hemp marker in the labeling.
// The check is intentionally narrow: the legal filter treats anything that
// does not declare itself as unverified.
func detectHempDerived(category string, tags []string, description string) bool {
	if strings.Contains(category, "hemp") {
		return true
	}
	for _, t := range tags {
		if strings.Contains(t, "hemp") {
			return true
		}
	}
	desc := strings.ToLower(description)
	return strings.Contains(desc, "hemp-derived") || strings.Contains(desc, "derived from hemp")
}
