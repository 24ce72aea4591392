package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"briefdesk/internal/types"

	"github.com/stretchr/testify/require"
)

var errDown = errors.New("store down")

type stubLLM struct {
	response string
	err      error

	mu         sync.Mutex
	calls      int
	lastSystem string
	lastUser   string
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *stubLLM) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

type stubStore struct {
	mu        sync.Mutex
	summaries []types.SummaryResult
	insertErr error
}

func (s *stubStore) FindEntitiesByNames(ctx context.Context, kind types.EntityKind, names []string) ([]types.Entity, error) {
	return nil, nil
}
func (s *stubStore) UpsertEntity(ctx context.Context, e types.Entity) error { return nil }
func (s *stubStore) GetEntityByID(ctx context.Context, id string) (types.Entity, error) {
	return types.Entity{}, types.ErrNotFound
}
func (s *stubStore) TouchEntities(ctx context.Context, ids []string) error { return nil }
func (s *stubStore) InsertFeedback(ctx context.Context, rec types.FeedbackRecord) error {
	return nil
}
func (s *stubStore) QueryFeedback(ctx context.Context, f types.FeedbackFilter) ([]types.FeedbackRecord, error) {
	return nil, nil
}
func (s *stubStore) InsertEditAnalysis(ctx context.Context, ea types.EditAnalysis) error { return nil }
func (s *stubStore) RecentEditAnalyses(ctx context.Context, limit int) ([]types.EditAnalysis, error) {
	return nil, nil
}
func (s *stubStore) InsertRejectionContext(ctx context.Context, summaryID, source string, recent int) error {
	return nil
}
func (s *stubStore) InsertSummary(ctx context.Context, res types.SummaryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.summaries = append(s.summaries, res)
	return nil
}
func (s *stubStore) QuerySummaries(ctx context.Context, f types.SummaryFilter) ([]types.SummaryResult, error) {
	return nil, nil
}

func somePayload() []types.SourceRecord {
	return []types.SourceRecord{
		{ID: "r1", Source: "chat", Author: "dana", Text: "Acme asked about the renewal."},
	}
}

func TestSummarizeStructuredResponse(t *testing.T) {
	llm := &stubLLM{response: `{
		"summary": "Acme wants to talk renewals.",
		"action_items": ["Reply to Dana about Acme renewal"],
		"suggested_messages": [{"recipient": "dana", "subject": "Re: renewal", "body": "On it.", "confidence": 0.8}]
	}`}
	store := &stubStore{}
	o := New(llm, store, nil, nil)

	res, err := o.Summarize(context.Background(), "chat", somePayload(), types.ContextBundle{})
	require.NoError(t, err)
	require.Equal(t, "chat", res.Source)
	require.Equal(t, "Acme wants to talk renewals.", res.Summary)
	require.Equal(t, []string{"Reply to Dana about Acme renewal"}, res.ActionItems)
	require.Len(t, res.SuggestedMessages, 1)
	require.InDelta(t, 0.8, res.SuggestedMessages[0].Confidence, 1e-9)
	require.False(t, res.ParseDegraded)

	require.Len(t, store.summaries, 1)
	require.Equal(t, res.ID, store.summaries[0].ID)
}

func TestSummarizeProseFallbackSetsDegraded(t *testing.T) {
	llm := &stubLLM{response: "This week Acme asked about renewals and Globex went quiet.\n\n" +
		"Action items:\n- Follow up with Acme\n- Ping Globex\n"}
	store := &stubStore{}
	o := New(llm, store, nil, nil)

	res, err := o.Summarize(context.Background(), "chat", somePayload(), types.ContextBundle{})
	require.NoError(t, err)
	require.True(t, res.ParseDegraded)
	require.NotNil(t, res.ActionItems)
	require.Equal(t, []string{"Follow up with Acme", "Ping Globex"}, res.ActionItems)
	require.Contains(t, res.Summary, "Acme asked about renewals")

	// Degraded results still persist.
	require.Len(t, store.summaries, 1)
	require.True(t, store.summaries[0].ParseDegraded)
}

func TestSummarizeEmptyPayload(t *testing.T) {
	o := New(&stubLLM{}, &stubStore{}, nil, nil)

	_, err := o.Summarize(context.Background(), "chat", nil, types.ContextBundle{})

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "payload", verr.Field)
}

func TestSummarizeModelUnavailablePropagates(t *testing.T) {
	llm := &stubLLM{err: &types.ModelUnavailableError{Attempts: 3, Err: errors.New("503")}}
	o := New(llm, &stubStore{}, nil, nil)

	_, err := o.Summarize(context.Background(), "chat", somePayload(), types.ContextBundle{})

	var merr *types.ModelUnavailableError
	require.ErrorAs(t, err, &merr)
	require.Equal(t, 3, merr.Attempts)
}

func TestSummarizePersistFailureStillReturnsResult(t *testing.T) {
	llm := &stubLLM{response: `{"summary": "fine", "action_items": []}`}
	store := &stubStore{insertErr: errDown}
	o := New(llm, store, nil, nil)

	res, err := o.Summarize(context.Background(), "chat", somePayload(), types.ContextBundle{})
	require.NoError(t, err)
	require.Equal(t, "fine", res.Summary)
}

func TestSummarizePromptCarriesContextEntities(t *testing.T) {
	llm := &stubLLM{response: `{"summary": "ok"}`}
	o := New(llm, &stubStore{}, nil, nil)

	bundle := types.ContextBundle{
		Entities: []types.Entity{
			{ID: "e1", Kind: types.KindClient, Name: "Acme Corp", Profile: map[string]string{"tier": "gold"}},
		},
		ExtractedNames: []string{"Acme Corp"},
	}
	_, err := o.Summarize(context.Background(), "chat", somePayload(), bundle)
	require.NoError(t, err)

	require.Contains(t, llm.lastUser, "Acme Corp (client)")
	require.Contains(t, llm.lastUser, "tier=gold")
	require.Contains(t, llm.lastUser, "Acme asked about the renewal.")
	require.Contains(t, llm.lastUser, `"action_items"`)
}

func TestSummarizeUsesSourceTemplate(t *testing.T) {
	llm := &stubLLM{response: `{"summary": "ok"}`}
	reg := NewTemplateRegistry("")
	reg.Put(Template{
		Source:       "tickets",
		Role:         "You triage support tickets.",
		Instructions: "List every ticket that breached SLA.",
	})
	o := New(llm, &stubStore{}, nil, reg)

	payload := []types.SourceRecord{{ID: "t1", Source: "tickets", Text: "SEV2 open 3 days"}}
	_, err := o.Summarize(context.Background(), "tickets", payload, types.ContextBundle{})
	require.NoError(t, err)

	require.Contains(t, llm.lastSystem, "You triage support tickets.")
	require.Contains(t, llm.lastUser, "List every ticket that breached SLA.")
}

func TestCombineMergesAndDedupes(t *testing.T) {
	store := &stubStore{}
	o := New(nil, store, nil, nil)

	results := []*types.SummaryResult{
		{
			ID: "s1", Source: "chat", Summary: "Acme pinged.",
			ActionItems:       []string{"Reply to Acme", "File expense report"},
			SuggestedMessages: []types.SuggestedMessage{{Body: "On it.", Confidence: 0.8}},
		},
		{
			ID: "s2", Source: "tickets", Summary: "One SEV2 open.",
			ActionItems:       []string{"Reply to Acme", "Escalate SEV2"},
			SuggestedMessages: []types.SuggestedMessage{{Body: "On it.", Confidence: 0.5}},
			ParseDegraded:     true,
		},
	}

	composite, err := o.Combine(context.Background(), results)
	require.NoError(t, err)
	require.Equal(t, CompositeSource, composite.Source)
	require.Contains(t, composite.Summary, "[chat] Acme pinged.")
	require.Contains(t, composite.Summary, "[tickets] One SEV2 open.")
	require.Equal(t, []string{"Reply to Acme", "File expense report", "Escalate SEV2"}, composite.ActionItems)
	require.Len(t, composite.SuggestedMessages, 1)
	require.True(t, composite.ParseDegraded, "degraded flag carries into the composite")

	require.Len(t, store.summaries, 1)
}

func TestCombineEmptyInput(t *testing.T) {
	o := New(nil, &stubStore{}, nil, nil)

	_, err := o.Combine(context.Background(), nil)

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSummarizeDefaultsSourceFromPayload(t *testing.T) {
	llm := &stubLLM{response: `{"summary": "ok"}`}
	o := New(llm, &stubStore{}, nil, nil)

	res, err := o.Summarize(context.Background(), "", somePayload(), types.ContextBundle{})
	require.NoError(t, err)
	require.Equal(t, "chat", res.Source)
}

func TestSetClockControlsTimestamps(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	llm := &stubLLM{response: `{"summary": "ok"}`}
	o := New(llm, &stubStore{}, nil, nil)
	o.SetClock(func() time.Time { return fixed })

	res, err := o.Summarize(context.Background(), "chat", somePayload(), types.ContextBundle{})
	require.NoError(t, err)
	require.True(t, res.CreatedAt.Equal(fixed))
	require.NotEmpty(t, res.ID)
}
