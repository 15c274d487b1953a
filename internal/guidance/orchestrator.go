package guidance

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/leafwise/budtender/internal/conn"
	"github.com/leafwise/budtender/internal/ollama"
	"github.com/leafwise/budtender/internal/products"
)

const defaultSubTaskTimeout = 30 * time.Second

// Liveness is the endpoint state the orchestrator consults before fanning
// out. Only conn.Manager implements it in production.
type Liveness interface {
	EnsureLive(ctx context.Context) (conn.Endpoint, error)
	Host() string
}

// Generator produces free-form guidance text.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, opts *ollama.Options) (string, error)
}

// ProductSearcher is the product pipeline surface the orchestrator fans
// out to. Search never fails and never returns an empty slice.
type ProductSearcher interface {
	Search(ctx context.Context, query string, level ExperienceLevel) []products.Product
}

// Orchestrator runs the three sub-requests of a guidance query and merges
// the results. Handle degrades instead of failing: a sub-task error is
// replaced by its documented fallback and flagged on the response.
type Orchestrator struct {
	live    Liveness
	gen     Generator
	search  ProductSearcher
	model   string
	temp    float64
	subTask time.Duration
	now     func() time.Time
}

// Config holds Orchestrator parameters. SubTaskTimeout is the outer
// ceiling per network sub-task, independent of the retry client's own
// per-attempt deadlines.
type Config struct {
	Model          string
	Temperature    float64
	SubTaskTimeout time.Duration
}

// NewOrchestrator wires the three sub-task collaborators together.
func NewOrchestrator(live Liveness, gen Generator, search ProductSearcher, cfg Config) *Orchestrator {
	if cfg.SubTaskTimeout <= 0 {
		cfg.SubTaskTimeout = defaultSubTaskTimeout
	}
	return &Orchestrator{
		live:    live,
		gen:     gen,
		search:  search,
		model:   cfg.Model,
		temp:    cfg.Temperature,
		subTask: cfg.SubTaskTimeout,
		now:     time.Now,
	}
}

// subResult is the tagged outcome of one sub-task. Exactly one of val/err
// is meaningful; the merge step never sees a half-settled branch.
type subResult[T any] struct {
	val T
	err error
}

// Handle answers one request. It never returns an error for ordinary
// network failure; the returned error is non-nil only when no backend
// endpoint could be found at all AND generation still failed, which is the
// one case callers may surface as a connection problem. Even then the
// response is complete and renderable.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	connErr := o.checkConnectivity(ctx)

	// Fixed-arity fan-out. Each branch owns its working data until it
	// reports on its channel; the merge below is the only join point.
	textCh := make(chan subResult[string], 1)
	benefitsCh := make(chan subResult[[]string], 1)
	productsCh := make(chan subResult[[]products.Product], 1)

	go func() {
		tctx, cancel := context.WithTimeout(ctx, o.subTask)
		defer cancel()
		text, err := o.gen.Generate(tctx, o.model, BuildPrompt(req), &ollama.Options{Temperature: o.temp})
		textCh <- subResult[string]{val: strings.TrimSpace(text), err: err}
	}()

	go func() {
		// Pure lookup, no I/O. Kept as a branch so the join stays
		// commutative over which sub-task settles first.
		benefitsCh <- subResult[[]string]{val: BenefitsFor(req.ExperienceLevel)}
	}()

	go func() {
		pctx, cancel := context.WithTimeout(ctx, o.subTask)
		defer cancel()
		productsCh <- subResult[[]products.Product]{val: o.search.Search(pctx, req.RawQuery, req.ExperienceLevel)}
	}()

	// Settle-all: every branch is read exactly once, failures included.
	text := <-textCh
	benefits := <-benefitsCh
	prods := <-productsCh

	resp := Response{
		Query:           req.RawQuery,
		ExperienceLevel: req.ExperienceLevel,
		Benefits:        benefits.val,
		Products:        prods.val,
		Host:            o.live.Host(),
		IssuedAt:        o.now(),
	}

	if text.err != nil || text.val == "" {
		slog.Warn("guidance generation failed, using fallback text",
			"request_id", req.RequestID, "error", text.err)
		resp.AIText = FallbackText(req.ExperienceLevel)
		resp.PartialFailure = true
	} else {
		resp.AIText = text.val
	}

	if prods.err != nil {
		// The pipeline contract says this cannot happen; guard anyway so a
		// future searcher implementation cannot blank the product list.
		slog.Warn("product search failed, using fallback products",
			"request_id", req.RequestID, "error", prods.err)
		resp.Products = products.FallbackProducts()
		resp.PartialFailure = true
	}

	if connErr != nil && (text.err != nil || text.val == "") {
		return resp, connErr
	}
	return resp, nil
}

// checkConnectivity repairs endpoint state before the fan-out. Failure is
// logged and reported but never aborts the request: the retry client may
// still get through on its own schedule.
func (o *Orchestrator) checkConnectivity(ctx context.Context) error {
	ep, err := o.live.EnsureLive(ctx)
	if err != nil {
		slog.Warn("no live backend endpoint, continuing degraded", "error", err)
		return err
	}
	slog.Debug("backend endpoint confirmed", "endpoint", ep.BaseURL)
	return nil
}
