// Package cache implements the short-lived entity cache that shields the
// durable store from repeated lookups during a processing burst.
//
// Entities are held in independent pools per kind (clients, projects).
// Each pool enforces a freshness TTL evaluated against insertion time and
// a maximum resident-entry count. Eviction removes the least-recently-
// referenced entries first, with insertion order breaking ties.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"briefdesk/internal/logging"
	"briefdesk/internal/types"
)

const (
	// DefaultTTL is the freshness window for resident entries.
	DefaultTTL = 5 * time.Minute

	// DefaultCapacity is the maximum resident entries per pool.
	DefaultCapacity = 100
)

// entry wraps a resident entity with its cache bookkeeping. insertedAt
// drives the freshness check; lastReferenced drives eviction ordering
// only and never extends the TTL.
type entry struct {
	entity         types.Entity
	insertedAt     time.Time
	lastReferenced time.Time
	seq            uint64
}

// Pool is one bounded, TTL-scoped set of entities of a single kind.
// Safe for concurrent use; the mutex is held only for in-memory
// mutations, never across external calls.
type Pool struct {
	mu       sync.RWMutex
	kind     types.EntityKind
	entries  map[string]*entry // keyed by entity ID
	byName   map[string]string // lowercased name -> entity ID
	ttl      time.Duration
	capacity int
	seq      uint64

	// lastBulkRefresh is the pool-wide staleness marker: batch reads
	// only trust partial hits when this is within the TTL.
	lastBulkRefresh time.Time

	now func() time.Time
}

// NewPool creates a pool for one entity kind. Zero ttl/capacity select
// the defaults.
func NewPool(kind types.EntityKind, ttl time.Duration, capacity int) *Pool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		kind:     kind,
		entries:  make(map[string]*entry),
		byName:   make(map[string]string),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
}

// SetClock overrides the pool's time source. Test hook.
func (p *Pool) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// Get returns the entity for the given ID if it is resident and fresh.
// A miss is a normal outcome, never a failure.
func (p *Pool) Get(id string) (types.Entity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.entries[id]
	if !ok || p.expired(e) {
		return types.Entity{}, false
	}
	return e.entity, true
}

// Fresh reports whether the pool as a whole is usable for batch reads.
// A pool whose last bulk refresh is older than the TTL is wholly stale
// even if individual entries are still within their windows.
func (p *Pool) Fresh() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.freshLocked()
}

func (p *Pool) freshLocked() bool {
	if p.lastBulkRefresh.IsZero() {
		return false
	}
	return p.now().Sub(p.lastBulkRefresh) <= p.ttl
}

// GetByName returns the fresh, resident entities matching the given
// names (case-insensitive). When the pool-wide bulk refresh marker is
// older than the TTL the pool is treated as wholly stale and no hits
// are returned, forcing callers back to the durable store.
func (p *Pool) GetByName(names []string) []types.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.freshLocked() {
		return nil
	}

	var hits []types.Entity
	for _, name := range names {
		id, ok := p.byName[strings.ToLower(name)]
		if !ok {
			continue
		}
		e, ok := p.entries[id]
		if !ok || p.expired(e) {
			continue
		}
		hits = append(hits, e.entity)
	}
	return hits
}

// Put upserts entities into the pool, refreshing insertedAt for each and
// bumping the pool-wide bulk refresh marker. Eviction runs after the
// upsert to restore the capacity bound.
func (p *Pool) Put(entities []types.Entity) {
	if len(entities) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for _, ent := range entities {
		if ent.ID == "" {
			continue
		}
		prev, existed := p.entries[ent.ID]
		e := &entry{
			entity:     ent,
			insertedAt: now,
		}
		if existed {
			// Recency survives a refresh; freshness does not.
			e.lastReferenced = prev.lastReferenced
			e.seq = prev.seq
			delete(p.byName, strings.ToLower(prev.entity.Name))
		} else {
			p.seq++
			e.seq = p.seq
		}
		p.entries[ent.ID] = e
		if ent.Name != "" {
			p.byName[strings.ToLower(ent.Name)] = ent.ID
		}
	}
	p.lastBulkRefresh = now

	evicted := p.evictLocked()
	if evicted > 0 {
		logging.CacheDebug("pool %s evicted %d entries on put", p.kind, evicted)
	}
}

// TouchReferenced bumps last_referenced for the given IDs. Used for
// eviction ordering only; it does not refresh the TTL.
func (p *Pool) TouchReferenced(ids []string) {
	if len(ids) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for _, id := range ids {
		if e, ok := p.entries[id]; ok {
			e.lastReferenced = now
		}
	}
}

// EvictExpiredOrOverCapacity drops expired entries and, if the pool is
// still over capacity, the least-recently-referenced entries until it
// is at or under capacity. Returns the number of entries removed.
func (p *Pool) EvictExpiredOrOverCapacity() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.evictLocked()
}

func (p *Pool) evictLocked() int {
	removed := 0

	for id, e := range p.entries {
		if p.expired(e) {
			p.removeLocked(id, e)
			removed++
		}
	}

	if len(p.entries) <= p.capacity {
		return removed
	}

	// Over capacity: order by last_referenced ascending (never-referenced
	// entries sort oldest), ties broken by insertion order.
	type victim struct {
		id string
		e  *entry
	}
	victims := make([]victim, 0, len(p.entries))
	for id, e := range p.entries {
		victims = append(victims, victim{id, e})
	}
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i].e, victims[j].e
		if !a.lastReferenced.Equal(b.lastReferenced) {
			return a.lastReferenced.Before(b.lastReferenced)
		}
		return a.seq < b.seq
	})

	for _, v := range victims {
		if len(p.entries) <= p.capacity {
			break
		}
		p.removeLocked(v.id, v.e)
		removed++
	}

	return removed
}

func (p *Pool) removeLocked(id string, e *entry) {
	delete(p.entries, id)
	key := strings.ToLower(e.entity.Name)
	if cur, ok := p.byName[key]; ok && cur == id {
		delete(p.byName, key)
	}
}

func (p *Pool) expired(e *entry) bool {
	return p.now().Sub(e.insertedAt) > p.ttl
}

// Len returns the resident entry count, including expired-but-resident
// entries that have not been pruned yet.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Clear drops every resident entry and resets the bulk refresh marker.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]*entry)
	p.byName = make(map[string]string)
	p.lastBulkRefresh = time.Time{}
}

// EntityCache groups the per-kind pools behind one handle.
type EntityCache struct {
	Clients  *Pool
	Projects *Pool
}

// New creates an EntityCache with independent client and project pools.
func New(ttl time.Duration, capacity int) *EntityCache {
	return &EntityCache{
		Clients:  NewPool(types.KindClient, ttl, capacity),
		Projects: NewPool(types.KindProject, ttl, capacity),
	}
}

// PoolFor returns the pool for the given kind, defaulting to clients.
func (c *EntityCache) PoolFor(kind types.EntityKind) *Pool {
	if kind == types.KindProject {
		return c.Projects
	}
	return c.Clients
}

// Prune runs eviction across all pools and returns the total removed.
func (c *EntityCache) Prune() int {
	n := c.Clients.EvictExpiredOrOverCapacity()
	n += c.Projects.EvictExpiredOrOverCapacity()
	if n > 0 {
		logging.Cache("pruned %d cache entries", n)
	}
	return n
}

// Clear empties all pools.
func (c *EntityCache) Clear() {
	c.Clients.Clear()
	c.Projects.Clear()
	logging.Cache("cache cleared")
}
