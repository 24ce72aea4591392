// Package resolver enriches batches of heterogeneous source records
// with the domain entities they mention. It extracts candidate names,
// consults the entity cache, falls back to the durable store in one
// batched lookup, and bumps recency metadata asynchronously.
package resolver

import (
	"context"
	"strings"
	"sync"

	"briefdesk/internal/cache"
	"briefdesk/internal/logging"
	"briefdesk/internal/types"
)

// Resolver binds one cache pool and the durable store.
type Resolver struct {
	cache   *cache.EntityCache
	durable types.DurableStore
	kind    types.EntityKind

	// wg tracks the fire-and-forget recency bumps so shutdown and tests
	// can wait for them.
	wg sync.WaitGroup
}

// New creates a resolver for client entities.
func New(c *cache.EntityCache, durable types.DurableStore) *Resolver {
	return &Resolver{cache: c, durable: durable, kind: types.KindClient}
}

// Resolve returns the entities referenced by the given records. Cache
// hits and store hits are unioned and de-duplicated by ID with store
// hits taking precedence. Store hits are merged back into the cache, and
// last_referenced is bumped for every resolved entity asynchronously;
// bump failures are logged, never propagated.
//
// Zero input records or zero extracted names return an empty bundle
// without touching cache or store.
func (r *Resolver) Resolve(ctx context.Context, records []types.SourceRecord) (types.ContextBundle, error) {
	timer := logging.StartTimer(logging.CategoryResolver, "Resolve")
	defer timer.Stop()

	if len(records) == 0 {
		return types.ContextBundle{}, nil
	}

	names := r.extractFromRecords(records)
	if len(names) == 0 {
		return types.ContextBundle{}, nil
	}

	pool := r.cache.PoolFor(r.kind)
	cacheHits := pool.GetByName(names)

	missing := missingNames(names, cacheHits)

	var storeHits []types.Entity
	if len(missing) > 0 {
		found, err := r.durable.FindEntitiesByNames(ctx, r.kind, missing)
		if err != nil {
			return types.ContextBundle{}, err
		}
		storeHits = found
		if len(storeHits) > 0 {
			pool.Put(storeHits)
		}
	}

	// Union with store precedence on ID conflict.
	byID := make(map[string]types.Entity, len(cacheHits)+len(storeHits))
	var order []string
	for _, e := range cacheHits {
		if _, ok := byID[e.ID]; !ok {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}
	for _, e := range storeHits {
		if _, ok := byID[e.ID]; !ok {
			order = append(order, e.ID)
		}
		byID[e.ID] = e
	}

	entities := make([]types.Entity, 0, len(order))
	ids := make([]string, 0, len(order))
	for _, id := range order {
		entities = append(entities, byID[id])
		ids = append(ids, id)
	}

	if len(ids) > 0 {
		r.bumpRecency(ids)
	}

	logging.ResolverDebug("resolved %d entities from %d names (%d cache, %d store)",
		len(entities), len(names), len(cacheHits), len(storeHits))

	return types.ContextBundle{Entities: entities, ExtractedNames: names}, nil
}

// extractFromRecords pulls name candidates from every record's title
// and body, de-duplicated in order of first appearance.
func (r *Resolver) extractFromRecords(records []types.SourceRecord) []string {
	var names []string
	seen := make(map[string]bool)
	for _, rec := range records {
		for _, name := range ExtractNames(rec.Title + " " + rec.Text) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// bumpRecency updates last_referenced in cache and store off the
// request path. The store call runs detached from the caller's context
// so cancellation of the resolve does not drop the bump.
func (r *Resolver) bumpRecency(ids []string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.cache.PoolFor(r.kind).TouchReferenced(ids)
		if err := r.durable.TouchEntities(context.Background(), ids); err != nil {
			logging.Get(logging.CategoryResolver).Warn("recency bump failed for %d entities: %v", len(ids), err)
		}
	}()
}

// Wait blocks until in-flight recency bumps finish. Used at shutdown
// and by tests.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func missingNames(asked []string, hits []types.Entity) []string {
	have := make(map[string]bool, len(hits))
	for _, e := range hits {
		have[strings.ToLower(e.Name)] = true
	}
	var missing []string
	for _, name := range asked {
		if !have[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	return missing
}
