package products

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/leafwise/budtender/internal/ollama"
)

const defaultRefineTimeout = 3 * time.Second

// Generator is the structured completion capability the refiner needs.
type Generator interface {
	GenerateStructured(ctx context.Context, model, prompt string, schema *ollama.Schema, opts *ollama.Options) (string, error)
}

// Refiner uses a fast local model to sharpen a heuristic spec with signals
// the keyword rules cannot see.
type Refiner struct {
	client  Generator
	model   string
	timeout time.Duration
}

// NewRefiner creates a Refiner using the given client and model name. A
// non-positive timeout falls back to the default.
func NewRefiner(client Generator, model string, timeout time.Duration) *Refiner {
	if timeout <= 0 {
		timeout = defaultRefineTimeout
	}
	return &Refiner{client: client, model: model, timeout: timeout}
}

// refinement is the delta the model may propose. Every field is optional;
// only values the overlay recognizes are applied.
type refinement struct {
	Strain         string   `json:"strain"`
	PriceBand      string   `json:"price_band"`
	DesiredEffects []string `json:"desired_effects"`
	ProductTypes   []string `json:"product_types"`
}

// Refine asks the model for spec adjustments and overlays the recognized
// ones on base. On any failure (timeout, malformed JSON, model error) it
// returns base unchanged — refinement may only ever add to the heuristic
// result, never degrade it.
func (r *Refiner) Refine(ctx context.Context, query string, base SearchSpec) SearchSpec {
	if query == "" {
		return base
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.client.GenerateStructured(ctx, r.model, buildRefinePrompt(query), refineSchema(), nil)
	if err != nil {
		slog.Warn("spec refinement failed", "error", err)
		return base
	}

	var delta refinement
	if err := json.Unmarshal([]byte(raw), &delta); err != nil {
		slog.Warn("failed to unmarshal refinement from model response", "error", err, "response", raw)
		return base
	}
	return delta.overlay(base)
}

// overlay applies recognized values only. A hallucinated enum or empty
// string leaves the corresponding field of base untouched.
func (d refinement) overlay(base SearchSpec) SearchSpec {
	if s, ok := parseStrain(d.Strain); ok {
		base.Strain = s
	}
	if b, ok := parsePriceBand(d.PriceBand); ok {
		base.PriceBand = b
	}
	for _, e := range d.DesiredEffects {
		base.DesiredEffects = appendUnique(base.DesiredEffects, e)
	}
	for _, t := range d.ProductTypes {
		base.ProductTypes = appendUnique(base.ProductTypes, t)
	}
	return base
}

func buildRefinePrompt(query string) string {
	return "You help match customers to hemp wellness products. " +
		"Extract search preferences from this request. " +
		"Only include values the customer actually implied.\n\nRequest: " + query
}

// refineSchema returns the JSON schema for structured refinement output.
func refineSchema() *ollama.Schema {
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"strain":          {Type: "string", Description: "One of: indica, sativa, hybrid"},
			"price_band":      {Type: "string", Description: "One of: value, mid, premium"},
			"desired_effects": {Type: "array", Description: "Effects the customer wants, e.g. relaxation, sleep, energy, relief"},
			"product_types":   {Type: "array", Description: "Product forms mentioned, e.g. edible, tincture, flower, topical"},
		},
		Required: []string{"strain", "price_band", "desired_effects", "product_types"},
	}
}
