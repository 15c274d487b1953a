package products

import (
	"context"
	"log/slog"
)

const defaultMaxResults = 4

// Source supplies raw catalog entries. Implementations live in the
// inventory package; the pipeline only cares that entries arrive.
type Source interface {
	Fetch(ctx context.Context) ([]InventoryItem, error)
}

// Pipeline turns a question into a short, compliant, ranked product list.
// Search never fails: every stage degrades to a documented default, and an
// empty outcome is replaced by the fallback set.
type Pipeline struct {
	source     Source
	refiner    *Refiner
	filter     LegalFilter
	maxResults int
}

// NewPipeline assembles a search pipeline. refiner may be nil, which
// disables model refinement and leaves specs purely heuristic.
func NewPipeline(source Source, refiner *Refiner, filter LegalFilter, maxResults int) *Pipeline {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Pipeline{
		source:     source,
		refiner:    refiner,
		filter:     filter,
		maxResults: maxResults,
	}
}

// Search recommends at most maxResults products for the query. The
// returned slice is never empty and the method never returns an error;
// callers can always render the result.
func (p *Pipeline) Search(ctx context.Context, query string, level ExperienceLevel) []Product {
	spec := p.BuildSpec(ctx, query, level)

	items := p.fetchInventory(ctx)

	kept := make([]Product, 0, len(items))
	for _, item := range items {
		prod := Normalize(item)
		if p.filter.Allow(prod) {
			kept = append(kept, prod)
		}
	}

	if len(kept) == 0 {
		slog.Info("no compliant products matched, serving fallback set", "query_len", len(query))
		return limit(FallbackProducts(), p.maxResults)
	}

	return limit(rank(spec, kept), p.maxResults)
}

// BuildSpec derives the structured search for a query: experience-level
// defaults, then keyword heuristics, then optional model refinement.
func (p *Pipeline) BuildSpec(ctx context.Context, query string, level ExperienceLevel) SearchSpec {
	spec := HeuristicSpec(query, level)
	spec.Legal = LegalConstraints{
		HempDerivedOnly:    p.filter.HempDerivedOnly,
		MaxCompoundPercent: p.filter.MaxCompoundPercent,
	}
	if p.refiner != nil {
		spec = p.refiner.Refine(ctx, query, spec)
	}
	return spec
}

// fetchInventory treats a source failure as an empty catalog so the caller
// still gets the fallback path instead of an error.
func (p *Pipeline) fetchInventory(ctx context.Context) []InventoryItem {
	if p.source == nil {
		return nil
	}
	items, err := p.source.Fetch(ctx)
	if err != nil {
		slog.Warn("inventory fetch failed, continuing with empty catalog", "error", err)
		return nil
	}
	return items
}

func limit(items []Product, n int) []Product {
	if len(items) > n {
		return items[:n]
	}
	return items
}
