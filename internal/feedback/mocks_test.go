package feedback

import (
	"context"
	"errors"
	"sync"
	"time"

	"briefdesk/internal/types"
)

// mockStore is an in-memory types.DurableStore for learner tests.
type mockStore struct {
	mu sync.Mutex

	feedback   []types.FeedbackRecord
	analyses   []types.EditAnalysis
	summaries  []types.SummaryResult
	rejections []rejectionNote

	feedbackErr      error
	analysisErr      error
	rejectionErr     error
	recentCalls      int // RecentEditAnalyses invocations, for cache tests
	insertedFeedback int
}

type rejectionNote struct {
	summaryID string
	source    string
	recent    int
}

func (m *mockStore) FindEntitiesByNames(ctx context.Context, kind types.EntityKind, names []string) ([]types.Entity, error) {
	return nil, nil
}

func (m *mockStore) UpsertEntity(ctx context.Context, e types.Entity) error { return nil }

func (m *mockStore) GetEntityByID(ctx context.Context, id string) (types.Entity, error) {
	return types.Entity{}, types.ErrNotFound
}

func (m *mockStore) TouchEntities(ctx context.Context, ids []string) error { return nil }

func (m *mockStore) InsertFeedback(ctx context.Context, rec types.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.feedbackErr != nil {
		return m.feedbackErr
	}
	m.feedback = append(m.feedback, rec)
	m.insertedFeedback++
	return nil
}

func (m *mockStore) QueryFeedback(ctx context.Context, filter types.FeedbackFilter) ([]types.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.FeedbackRecord
	for _, rec := range m.feedback {
		if filter.SummaryID != "" && rec.SummaryID != filter.SummaryID {
			continue
		}
		if filter.Verdict != "" && rec.Verdict != filter.Verdict {
			continue
		}
		if !filter.Since.IsZero() && rec.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockStore) InsertEditAnalysis(ctx context.Context, ea types.EditAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analysisErr != nil {
		return m.analysisErr
	}
	m.analyses = append(m.analyses, ea)
	return nil
}

func (m *mockStore) RecentEditAnalyses(ctx context.Context, limit int) ([]types.EditAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentCalls++
	// Most recent first, like the SQLite store.
	out := make([]types.EditAnalysis, 0, len(m.analyses))
	for i := len(m.analyses) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.analyses[i])
	}
	return out, nil
}

func (m *mockStore) InsertRejectionContext(ctx context.Context, summaryID, source string, recent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejectionErr != nil {
		return m.rejectionErr
	}
	m.rejections = append(m.rejections, rejectionNote{summaryID, source, recent})
	return nil
}

func (m *mockStore) InsertSummary(ctx context.Context, res types.SummaryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, res)
	return nil
}

func (m *mockStore) QuerySummaries(ctx context.Context, filter types.SummaryFilter) ([]types.SummaryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.SummaryResult
	for _, res := range m.summaries {
		if filter.ID != "" && res.ID != filter.ID {
			continue
		}
		if filter.Source != "" && res.Source != filter.Source {
			continue
		}
		if !filter.Since.IsZero() && res.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

var errBoom = errors.New("boom")

func (m *mockStore) addSummary(id, source, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, types.SummaryResult{
		ID: id, Source: source, Summary: text, CreatedAt: time.Now(),
	})
}
