package resolver

import (
	"context"
	"sync"
	"testing"

	"briefdesk/internal/cache"
	"briefdesk/internal/types"

	"github.com/google/go-cmp/cmp"
)

// fakeStore implements types.DurableStore for resolver tests.
type fakeStore struct {
	mu       sync.Mutex
	entities map[string]types.Entity // keyed by lowercase name
	finds    int
	touched  [][]string
}

func newFakeStore(entities ...types.Entity) *fakeStore {
	fs := &fakeStore{entities: make(map[string]types.Entity)}
	for _, e := range entities {
		fs.entities[lower(e.Name)] = e
	}
	return fs
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func (f *fakeStore) FindEntitiesByNames(ctx context.Context, kind types.EntityKind, names []string) ([]types.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	var out []types.Entity
	for _, name := range names {
		if e, ok := f.entities[lower(name)]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertEntity(ctx context.Context, e types.Entity) error { return nil }

func (f *fakeStore) GetEntityByID(ctx context.Context, id string) (types.Entity, error) {
	return types.Entity{}, types.ErrNotFound
}

func (f *fakeStore) TouchEntities(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, ids)
	return nil
}

func (f *fakeStore) InsertFeedback(ctx context.Context, rec types.FeedbackRecord) error { return nil }
func (f *fakeStore) QueryFeedback(ctx context.Context, filter types.FeedbackFilter) ([]types.FeedbackRecord, error) {
	return nil, nil
}
func (f *fakeStore) InsertEditAnalysis(ctx context.Context, ea types.EditAnalysis) error { return nil }
func (f *fakeStore) RecentEditAnalyses(ctx context.Context, limit int) ([]types.EditAnalysis, error) {
	return nil, nil
}
func (f *fakeStore) InsertRejectionContext(ctx context.Context, summaryID, source string, recent int) error {
	return nil
}
func (f *fakeStore) InsertSummary(ctx context.Context, res types.SummaryResult) error { return nil }
func (f *fakeStore) QuerySummaries(ctx context.Context, filter types.SummaryFilter) ([]types.SummaryResult, error) {
	return nil, nil
}

func record(text string) types.SourceRecord {
	return types.SourceRecord{ID: "r1", Source: "chat", Text: text}
}

func TestResolveRoundTrip(t *testing.T) {
	fs := newFakeStore(types.Entity{ID: "c1", Kind: types.KindClient, Name: "Acme Corp"})
	r := New(cache.New(0, 0), fs)

	bundle, err := r.Resolve(context.Background(), []types.SourceRecord{record("Acme Corp needs an update")})
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}

	wantNames := []string{"Acme Corp"}
	if diff := cmp.Diff(wantNames, bundle.ExtractedNames); diff != "" {
		t.Fatalf("extracted names mismatch (-want +got):\n%s", diff)
	}
	if len(bundle.Entities) != 1 || bundle.Entities[0].ID != "c1" {
		t.Fatalf("entities = %+v, want [c1]", bundle.Entities)
	}
}

func TestResolveEmptyInput(t *testing.T) {
	fs := newFakeStore()
	r := New(cache.New(0, 0), fs)

	bundle, err := r.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if len(bundle.Entities) != 0 || len(bundle.ExtractedNames) != 0 {
		t.Fatalf("bundle = %+v, want empty", bundle)
	}

	// No capitalized candidates either: still no store traffic.
	bundle, err = r.Resolve(context.Background(), []types.SourceRecord{record("nothing here")})
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if len(bundle.Entities) != 0 {
		t.Fatalf("entities = %+v, want empty", bundle.Entities)
	}
	if fs.finds != 0 {
		t.Fatalf("store lookups = %d, want 0", fs.finds)
	}
}

func TestResolveSecondCallServedFromCache(t *testing.T) {
	fs := newFakeStore(types.Entity{ID: "c1", Kind: types.KindClient, Name: "Acme Corp"})
	r := New(cache.New(0, 0), fs)
	records := []types.SourceRecord{record("Acme Corp needs an update")}

	first, err := r.Resolve(context.Background(), records)
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	second, err := r.Resolve(context.Background(), records)
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}

	// The store hit was merged into the cache, so the second resolve
	// is served entirely from cache.
	if fs.finds != 1 {
		t.Fatalf("store lookups = %d, want 1 (second resolve served from cache)", fs.finds)
	}

	if diff := cmp.Diff(first.Entities, second.Entities); diff != "" {
		t.Fatalf("resolve not idempotent (-first +second):\n%s", diff)
	}
}

func TestResolveRecencyBump(t *testing.T) {
	fs := newFakeStore(types.Entity{ID: "c1", Kind: types.KindClient, Name: "Acme Corp"})
	r := New(cache.New(0, 0), fs)

	_, err := r.Resolve(context.Background(), []types.SourceRecord{record("Acme Corp needs an update")})
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	r.Wait()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.touched) != 1 || len(fs.touched[0]) != 1 || fs.touched[0][0] != "c1" {
		t.Fatalf("touched = %v, want [[c1]]", fs.touched)
	}
}

func TestResolveStorePrecedenceOnConflict(t *testing.T) {
	stale := types.Entity{ID: "c1", Kind: types.KindClient, Name: "Acme Corp", Profile: map[string]string{"tier": "old"}}
	freshFromStore := types.Entity{ID: "c1", Kind: types.KindClient, Name: "Acme Corp", Profile: map[string]string{"tier": "gold"}}

	fs := newFakeStore(freshFromStore)
	c := cache.New(0, 0)
	r := New(c, fs)

	// Seed the cache with a stale copy under a different name so the
	// store is consulted for "Acme Corp" and returns the same ID.
	c.Clients.Put([]types.Entity{{ID: "c1", Kind: types.KindClient, Name: "Acme Corporation", Profile: stale.Profile}})

	bundle, err := r.Resolve(context.Background(), []types.SourceRecord{record("Acme Corporation and Acme Corp both appear")})
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}

	if len(bundle.Entities) != 1 {
		t.Fatalf("entities = %d, want 1 (deduplicated by ID)", len(bundle.Entities))
	}
	if got := bundle.Entities[0].Profile["tier"]; got != "gold" {
		t.Fatalf("tier = %q, want gold (store hit takes precedence)", got)
	}
}
