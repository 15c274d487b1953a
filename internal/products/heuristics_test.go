package products

import "testing"

func TestParseExperienceLevel(t *testing.T) {
	cases := []struct {
		in   string
		want ExperienceLevel
	}{
		{"new", LevelNew},
		{"casual", LevelCasual},
		{"experienced", LevelExperienced},
		{" Experienced ", LevelExperienced},
		{"CASUAL", LevelCasual},
		{"", LevelNew},
		{"expert", LevelNew},
	}
	for _, tc := range cases {
		if got := ParseExperienceLevel(tc.in); got != tc.want {
			t.Errorf("ParseExperienceLevel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHeuristicSpec_Defaults(t *testing.T) {
	cases := []struct {
		level   ExperienceLevel
		wantMax float64
	}{
		{LevelNew, 10},
		{LevelCasual, 20},
		{LevelExperienced, 100},
	}
	for _, tc := range cases {
		spec := HeuristicSpec("", tc.level)
		if spec.Potency.Max != tc.wantMax {
			t.Errorf("level %s: potency max = %v, want %v", tc.level, spec.Potency.Max, tc.wantMax)
		}
		if spec.Strain != StrainHybrid {
			t.Errorf("level %s: strain = %q, want hybrid default", tc.level, spec.Strain)
		}
		if spec.PriceBand != BandMid {
			t.Errorf("level %s: price band = %q, want mid default", tc.level, spec.PriceBand)
		}
	}
}

func TestHeuristicSpec_SleepQuery(t *testing.T) {
	spec := HeuristicSpec("I have trouble sleeping lately", LevelNew)

	if spec.Strain != StrainIndica {
		t.Errorf("strain = %q, want indica for a sleep query", spec.Strain)
	}
	if !containsString(spec.DesiredEffects, "relaxation") {
		t.Errorf("desired effects %v missing relaxation", spec.DesiredEffects)
	}
	if !containsString(spec.DesiredEffects, "sleep") {
		t.Errorf("desired effects %v missing sleep", spec.DesiredEffects)
	}
	if spec.Potency.Max != maxPotencyNew {
		t.Errorf("potency max = %v, want new-user cap %v", spec.Potency.Max, maxPotencyNew)
	}
}

func TestHeuristicSpec_EnergyQuery(t *testing.T) {
	spec := HeuristicSpec("something for daytime focus and creativity", LevelCasual)

	if spec.Strain != StrainSativa {
		t.Errorf("strain = %q, want sativa for an energy query", spec.Strain)
	}
	if !containsString(spec.DesiredEffects, "energy") {
		t.Errorf("desired effects %v missing energy", spec.DesiredEffects)
	}
}

func TestHeuristicSpec_PriceKeywords(t *testing.T) {
	if spec := HeuristicSpec("something cheap to try", LevelNew); spec.PriceBand != BandValue {
		t.Errorf("price band = %q, want value", spec.PriceBand)
	}
	if spec := HeuristicSpec("only the top-shelf stuff", LevelExperienced); spec.PriceBand != BandPremium {
		t.Errorf("price band = %q, want premium", spec.PriceBand)
	}
}

func TestHeuristicSpec_PotencyKeywords(t *testing.T) {
	strong := HeuristicSpec("something strong please", LevelExperienced)
	if strong.Potency.Min != 15 {
		t.Errorf("potency min = %v, want 15 after strong keyword", strong.Potency.Min)
	}

	// A new user asking for strong product still keeps the low ceiling; the
	// floor clamps to it instead of inverting the range.
	cautious := HeuristicSpec("something strong please", LevelNew)
	if cautious.Potency.Max != maxPotencyNew {
		t.Errorf("potency max = %v, want cap %v preserved", cautious.Potency.Max, maxPotencyNew)
	}
	if cautious.Potency.Min > cautious.Potency.Max {
		t.Errorf("potency range inverted: min %v > max %v", cautious.Potency.Min, cautious.Potency.Max)
	}

	mild := HeuristicSpec("something mild for evenings", LevelCasual)
	if mild.Potency.Max != 8 {
		t.Errorf("potency max = %v, want 8 after mild keyword", mild.Potency.Max)
	}
}

func TestHeuristicSpec_ProductTypes(t *testing.T) {
	spec := HeuristicSpec("do you have gummies or maybe a tincture", LevelCasual)

	if !containsString(spec.ProductTypes, "edible") {
		t.Errorf("product types %v missing edible", spec.ProductTypes)
	}
	if !containsString(spec.ProductTypes, "tincture") {
		t.Errorf("product types %v missing tincture", spec.ProductTypes)
	}
}

func TestHeuristicSpec_CaseInsensitive(t *testing.T) {
	spec := HeuristicSpec("CANNOT SLEEP", LevelNew)
	if spec.Strain != StrainIndica {
		t.Errorf("strain = %q, want indica regardless of query case", spec.Strain)
	}
}

func TestHeuristicSpec_NoDuplicateEffects(t *testing.T) {
	spec := HeuristicSpec("relax and calm down to sleep", LevelNew)

	seen := map[string]int{}
	for _, e := range spec.DesiredEffects {
		seen[e]++
	}
	for e, n := range seen {
		if n > 1 {
			t.Errorf("effect %q appears %d times, want once", e, n)
		}
	}
}

func containsString(list []string, v string) bool {
	for _, have := range list {
		if have == v {
			return true
		}
	}
	return false
}
