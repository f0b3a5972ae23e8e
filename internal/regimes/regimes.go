// Package regimes fans payloads out to regime evaluators and collects their
// raw findings into a result bundle keyed by regime id. Evaluators are
// external collaborators; this package only owns the orchestration contract.
package regimes

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"gnce/internal/catalog"
)

// maxWorkers bounds the evaluation pool regardless of configuration.
const maxWorkers = 4

// Evaluator assesses one regulatory regime against a payload and returns its
// raw findings. Findings are normalized downstream; evaluators return
// whatever field shapes they natively produce.
type Evaluator interface {
	ID() string
	Evaluate(ctx context.Context, payload map[string]any) ([]map[string]any, error)
}

// Orchestrator runs a set of evaluators and assembles the result bundle.
// Evaluator failures are logged and their regimes omitted from the bundle;
// one broken regime never blocks the rest.
type Orchestrator struct {
	evaluators []Evaluator
	catalog    *catalog.Catalog
	workers    int
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers caps the parallel evaluation pool. Values outside [1,4] clamp.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n < 1 {
			n = 1
		}
		if n > maxWorkers {
			n = maxWorkers
		}
		o.workers = n
	}
}

// WithCatalog annotates bundle entries with the regime's domain and
// framework from the catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(o *Orchestrator) { o.catalog = c }
}

// New builds an orchestrator over the given evaluators.
func New(evaluators []Evaluator, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{evaluators: evaluators, workers: maxWorkers, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate runs every evaluator and returns a bundle keyed by regime id,
// each entry shaped {domain, framework, results}. Two or fewer regimes run
// sequentially; beyond that a bounded pool runs them in parallel.
func (o *Orchestrator) Evaluate(ctx context.Context, payload map[string]any) map[string]any {
	bundle := make(map[string]any, len(o.evaluators))

	if len(o.evaluators) <= 2 {
		for _, ev := range o.evaluators {
			o.runOne(ctx, ev, payload, bundle, nil)
		}
		return bundle
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, ev := range o.evaluators {
		g.Go(func() error {
			o.runOne(ctx, ev, payload, bundle, &mu)
			return nil
		})
	}
	_ = g.Wait()
	return bundle
}

func (o *Orchestrator) runOne(ctx context.Context, ev Evaluator, payload map[string]any, bundle map[string]any, mu *sync.Mutex) {
	findings, err := ev.Evaluate(ctx, payload)
	if err != nil {
		o.logger.Warn("regime evaluation failed, skipping", "regime", ev.ID(), "error", err)
		return
	}

	results := make([]any, 0, len(findings))
	for _, f := range findings {
		results = append(results, map[string]any(f))
	}
	entry := map[string]any{"results": results}
	if o.catalog != nil {
		if r, ok := o.catalog.Get(ev.ID()); ok {
			entry["domain"] = r.Domain
			entry["framework"] = r.Framework
		}
	}

	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	bundle[ev.ID()] = entry
}
