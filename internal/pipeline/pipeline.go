// Package pipeline runs one digest cycle: fetch activity from every
// registered source in parallel, resolve entity context, summarize each
// source, then fold the per-source results into a composite digest.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"briefdesk/internal/logging"
	"briefdesk/internal/orchestrator"
	"briefdesk/internal/resolver"
	"briefdesk/internal/types"

	"golang.org/x/sync/errgroup"
)

// Fetcher pulls activity records from one external service. Fetchers
// are external collaborators; the pipeline only needs records back.
type Fetcher interface {
	Source() string
	Fetch(ctx context.Context) ([]types.SourceRecord, error)
}

// RunResult collects one cycle's output. A source appears in Summaries
// or in Errors, never both; sources that produced no records appear in
// neither.
type RunResult struct {
	Summaries map[string]*types.SummaryResult
	Composite *types.SummaryResult
	Errors    map[string]error
}

// Pipeline fans one digest cycle out over the registered fetchers.
type Pipeline struct {
	fetchers []Fetcher
	resolver *resolver.Resolver
	orch     *orchestrator.Orchestrator

	// concurrency bounds the parallel per-source work.
	concurrency int
}

// New assembles a pipeline. Zero concurrency means one worker per
// fetcher.
func New(fetchers []Fetcher, res *resolver.Resolver, orch *orchestrator.Orchestrator, concurrency int) *Pipeline {
	return &Pipeline{
		fetchers:    fetchers,
		resolver:    res,
		orch:        orch,
		concurrency: concurrency,
	}
}

// Run executes one cycle. Each source fetches, resolves, and summarizes
// independently; a failing source is recorded in Errors and never stops
// its siblings. The composite pass runs over whatever succeeded. Run
// returns an error only when no source produced a summary.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	timer := logging.StartTimer(logging.CategoryPipeline, "Run")
	defer timer.Stop()

	if len(p.fetchers) == 0 {
		return nil, &types.ValidationError{Field: "fetchers", Reason: "no sources registered"}
	}

	result := &RunResult{
		Summaries: make(map[string]*types.SummaryResult),
		Errors:    make(map[string]error),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if p.concurrency > 0 {
		g.SetLimit(p.concurrency)
	}

	for _, fetcher := range p.fetchers {
		fetcher := fetcher
		g.Go(func() error {
			summary, err := p.runSource(gctx, fetcher)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[fetcher.Source()] = err
				logging.Get(logging.CategoryPipeline).Warn("source %s failed: %v", fetcher.Source(), err)
				return nil
			}
			if summary != nil {
				result.Summaries[fetcher.Source()] = summary
			}
			return nil
		})
	}

	// Goroutines never return errors, but Wait still observes gctx.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(result.Summaries) == 0 {
		if len(result.Errors) > 0 {
			return result, fmt.Errorf("all %d sources failed", len(result.Errors))
		}
		logging.Pipeline("cycle produced no activity, skipping composite")
		return result, nil
	}

	composite, err := p.orch.Combine(ctx, orderedSummaries(result.Summaries))
	if err != nil {
		return result, fmt.Errorf("composite pass: %w", err)
	}
	result.Composite = composite

	logging.Pipeline("cycle complete: %d sources summarized, %d failed", len(result.Summaries), len(result.Errors))
	return result, nil
}

// runSource handles one fetcher end to end. A source with no new
// activity yields (nil, nil) and is skipped.
func (p *Pipeline) runSource(ctx context.Context, fetcher Fetcher) (*types.SummaryResult, error) {
	records, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(records) == 0 {
		logging.PipelineDebug("source %s had no activity", fetcher.Source())
		return nil, nil
	}

	bundle, err := p.resolver.Resolve(ctx, records)
	if err != nil {
		// Context resolution failing is not fatal to the digest; the
		// summary just goes out without entity enrichment.
		logging.Get(logging.CategoryPipeline).Warn("context resolution failed for %s: %v", fetcher.Source(), err)
		bundle = types.ContextBundle{}
	}

	return p.orch.Summarize(ctx, fetcher.Source(), records, bundle)
}

// orderedSummaries returns the per-source results sorted by source tag
// so the composite digest is deterministic.
func orderedSummaries(m map[string]*types.SummaryResult) []*types.SummaryResult {
	sources := make([]string, 0, len(m))
	for source := range m {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	out := make([]*types.SummaryResult, 0, len(m))
	for _, source := range sources {
		out = append(out, m[source])
	}
	return out
}
