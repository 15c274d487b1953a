package products

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
)

type sourceFunc func(ctx context.Context) ([]InventoryItem, error)

func (f sourceFunc) Fetch(ctx context.Context) ([]InventoryItem, error) { return f(ctx) }

func strictFilter() LegalFilter {
	return LegalFilter{HempDerivedOnly: true, MaxCompoundPercent: 0.3}
}

func TestSearch_EmptyInventoryServesFallback(t *testing.T) {
	p := NewPipeline(sourceFunc(func(context.Context) ([]InventoryItem, error) {
		return nil, nil
	}), nil, strictFilter(), 4)

	got := p.Search(context.Background(), "help me sleep", LevelNew)
	if len(got) == 0 {
		t.Fatal("expected a non-empty fallback set")
	}
	for _, prod := range got {
		if !strictFilter().Allow(prod) {
			t.Errorf("fallback product %q fails the legal filter", prod.Name)
		}
	}
}

func TestSearch_SourceErrorServesFallback(t *testing.T) {
	p := NewPipeline(sourceFunc(func(context.Context) ([]InventoryItem, error) {
		return nil, errors.New("catalog unavailable")
	}), nil, strictFilter(), 4)

	got := p.Search(context.Background(), "something relaxing", LevelCasual)
	if len(got) == 0 {
		t.Fatal("source failure must still yield products")
	}
}

func TestSearch_CapsResults(t *testing.T) {
	items := make([]InventoryItem, 20)
	for i := range items {
		items[i] = InventoryItem{
			ID:       fmt.Sprintf("item-%d", i),
			Name:     fmt.Sprintf("Item %d", i),
			Category: "tincture",
			Strain:   "hybrid",
			Tags:     []string{"hemp-derived"},
		}
	}
	p := NewPipeline(sourceFunc(func(context.Context) ([]InventoryItem, error) {
		return items, nil
	}), nil, strictFilter(), 4)

	got := p.Search(context.Background(), "anything", LevelCasual)
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestSearch_AllResultsPassLegalFilter(t *testing.T) {
	// A large mixed catalog: some explicitly compliant, some hemp-derived
	// with tested values on either side of the ceiling, some ambiguous.
	rng := rand.New(rand.NewSource(42))
	strains := []string{"indica", "sativa", "hybrid", ""}
	items := make([]InventoryItem, 1000)
	for i := range items {
		item := InventoryItem{
			ID:       fmt.Sprintf("item-%d", i),
			Name:     fmt.Sprintf("Item %d", i),
			Category: "edible",
			Strain:   strains[rng.Intn(len(strains))],
			Potency:  rng.Float64() * 30,
			Price:    rng.Intn(10000),
		}
		switch rng.Intn(4) {
		case 0:
			item.Tags = []string{"hemp-derived"}
		case 1:
			item.Description = "Hemp-derived extract, lab tested."
			item.CompoundPercent = rng.Float64() * 0.3
		case 2:
			item.Description = "Hemp-derived extract."
			item.CompoundPercent = 0.3 + rng.Float64()*5
		case 3:
			// No compliance signals at all.
		}
		items[i] = item
	}

	filter := strictFilter()
	p := NewPipeline(sourceFunc(func(context.Context) ([]InventoryItem, error) {
		return items, nil
	}), nil, filter, 4)

	queries := []string{"help me sleep", "energy for hiking", "cheap edible", "strongest you have"}
	for _, q := range queries {
		for _, prod := range p.Search(context.Background(), q, LevelExperienced) {
			if !filter.Allow(prod) {
				t.Errorf("query %q returned non-compliant product %q (compound %.2f, tested %v, hemp %v, tags %v)",
					q, prod.Name, prod.CompoundPercent, prod.CompoundTested, prod.HempDerived, prod.Tags)
			}
		}
	}
}

func TestSearch_SleepQueryPrefersIndica(t *testing.T) {
	items := []InventoryItem{
		{ID: "s1", Name: "Morning Blend", Category: "tincture", Strain: "sativa",
			Effects: []string{"energizing"}, Tags: []string{"hemp-derived"}},
		{ID: "i1", Name: "Night Cap", Category: "tincture", Strain: "indica",
			Effects: []string{"calming", "sleepy"}, Tags: []string{"hemp-derived"}},
		{ID: "h1", Name: "Day Hybrid", Category: "tincture", Strain: "hybrid",
			Effects: []string{"balanced"}, Tags: []string{"hemp-derived"}},
	}
	p := NewPipeline(sourceFunc(func(context.Context) ([]InventoryItem, error) {
		return items, nil
	}), nil, strictFilter(), 4)

	got := p.Search(context.Background(), "I have trouble sleeping", LevelNew)
	if len(got) == 0 {
		t.Fatal("no products returned")
	}
	if got[0].Strain != StrainIndica {
		t.Errorf("top result strain = %q, want %q (results: %v)", got[0].Strain, StrainIndica, names(got))
	}
}

func TestSearch_NilSourceServesFallback(t *testing.T) {
	p := NewPipeline(nil, nil, strictFilter(), 4)

	got := p.Search(context.Background(), "anything", LevelNew)
	if len(got) == 0 {
		t.Fatal("expected fallback products")
	}
}

func TestBuildSpec_CarriesLegalConstraints(t *testing.T) {
	filter := LegalFilter{HempDerivedOnly: true, MaxCompoundPercent: 0.2}
	p := NewPipeline(nil, nil, filter, 4)

	spec := p.BuildSpec(context.Background(), "help me sleep", LevelNew)
	if !spec.Legal.HempDerivedOnly {
		t.Error("spec should carry the hemp-only rule")
	}
	if spec.Legal.MaxCompoundPercent != 0.2 {
		t.Errorf("ceiling = %v, want 0.2", spec.Legal.MaxCompoundPercent)
	}
}

func names(ps []Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
