package products

import (
	"strings"
	"testing"
)

func TestRank_OrdersByMatchQuality(t *testing.T) {
	spec := SearchSpec{
		Strain:         StrainIndica,
		DesiredEffects: []string{"sleep", "relaxation"},
		Potency:        PotencyRange{Min: 0, Max: 10},
		PriceBand:      BandMid,
	}
	catalog := []Product{
		{ID: "energizer", Strain: StrainSativa, Effects: []string{"energy"}, PotencyPercent: 18, PriceBand: BandPremium},
		{ID: "night-cap", Strain: StrainIndica, Effects: []string{"sleep", "relaxation"}, PotencyPercent: 5, PriceBand: BandMid},
		{ID: "middle", Strain: StrainHybrid, Effects: []string{"relaxation"}, PotencyPercent: 8, PriceBand: BandMid},
	}

	ranked := rank(spec, catalog)

	if ranked[0].ID != "night-cap" {
		t.Errorf("top result = %s, want night-cap", ranked[0].ID)
	}
	if ranked[2].ID != "energizer" {
		t.Errorf("last result = %s, want energizer", ranked[2].ID)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Errorf("scores not descending: %d then %d", ranked[0].Score, ranked[1].Score)
	}
}

func TestRank_StableForTies(t *testing.T) {
	spec := SearchSpec{Strain: StrainHybrid, Potency: PotencyRange{Max: 100}}
	catalog := []Product{
		{ID: "first", Strain: StrainHybrid, PotencyPercent: 10},
		{ID: "second", Strain: StrainHybrid, PotencyPercent: 10},
		{ID: "third", Strain: StrainHybrid, PotencyPercent: 10},
	}

	ranked := rank(spec, catalog)

	for i, want := range []string{"first", "second", "third"} {
		if ranked[i].ID != want {
			t.Errorf("position %d = %s, want %s (catalog order on ties)", i, ranked[i].ID, want)
		}
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	spec := SearchSpec{Strain: StrainIndica}
	catalog := []Product{
		{ID: "a", Strain: StrainSativa},
		{ID: "b", Strain: StrainIndica},
	}

	rank(spec, catalog)

	if catalog[0].ID != "a" || catalog[0].Score != 0 {
		t.Errorf("input slice mutated: %+v", catalog[0])
	}
}

func TestScoreProduct_Reasons(t *testing.T) {
	spec := SearchSpec{
		Strain:         StrainIndica,
		DesiredEffects: []string{"sleep"},
		Potency:        PotencyRange{Max: 10},
		ProductTypes:   []string{"edible"},
		PriceBand:      BandValue,
	}
	p := Product{
		Strain:         StrainIndica,
		Effects:        []string{"sleep"},
		PotencyPercent: 4,
		PriceBand:      BandValue,
		Category:       "edible",
	}

	score, reason := scoreProduct(spec, p)

	wantScore := strainWeight + effectWeight + potencyWeight + priceBandWeight + productTypeWeight + starterWeight
	if score != wantScore {
		t.Errorf("score = %d, want %d", score, wantScore)
	}
	for _, fragment := range []string{"indica", "sleep", "potency", "value", "edible"} {
		if !strings.Contains(reason, fragment) {
			t.Errorf("reason %q missing %q", reason, fragment)
		}
	}
}

func TestScoreProduct_NoSignals(t *testing.T) {
	spec := SearchSpec{Strain: StrainIndica, PriceBand: BandPremium, Potency: PotencyRange{Min: 15, Max: 30}}
	p := Product{Strain: StrainSativa, PriceBand: BandValue, PotencyPercent: 5}

	score, reason := scoreProduct(spec, p)

	if score != 0 {
		t.Errorf("score = %d, want 0", score)
	}
	if reason != "broad match for your request" {
		t.Errorf("reason = %q, want the generic fallback wording", reason)
	}
}
