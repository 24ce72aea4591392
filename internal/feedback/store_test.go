package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"briefdesk/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestStoreFeedbackEmptySummaryID(t *testing.T) {
	s := NewStore(&mockStore{}, 0)

	rec, err := s.StoreFeedback(context.Background(), "", "approved", "", "", "")
	require.Nil(t, rec)

	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "summary_id", verr.Field)
}

func TestStoreFeedbackNormalizesUnknownVerdict(t *testing.T) {
	m := &mockStore{}
	s := NewStore(m, 0)

	rec, err := s.StoreFeedback(context.Background(), "s1", "bogus", "", "", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, types.VerdictApproved, rec.Verdict)
	require.Len(t, m.feedback, 1)
	require.Equal(t, types.VerdictApproved, m.feedback[0].Verdict)
}

func TestStoreFeedbackPrimaryWriteFailure(t *testing.T) {
	m := &mockStore{feedbackErr: &types.StorageError{Op: "insert_feedback", Err: errBoom}}
	s := NewStore(m, 0)

	rec, err := s.StoreFeedback(context.Background(), "s1", "approved", "", "", "")
	require.Nil(t, rec)

	var serr *types.StorageError
	require.ErrorAs(t, err, &serr)
}

func TestStoreFeedbackEditedDerivesAnalysis(t *testing.T) {
	m := &mockStore{}
	m.addSummary("s1", "chat", "Regarding the incident, we will accordingly deploy a fix therefore.")
	s := NewStore(m, 0)

	edited := "Hey, thanks! Cool, gonna ship the fix. No worries."
	rec, err := s.StoreFeedback(context.Background(), "s1", "edited", "", edited, "op1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Len(t, m.analyses, 1)
	ea := m.analyses[0]
	require.Equal(t, rec.ID, ea.FeedbackID)
	require.Equal(t, "casual", ea.ToneShift)
	require.NotZero(t, ea.OriginalLength)
	require.NotZero(t, ea.EditedLength)
}

func TestStoreFeedbackEditedAnalysisFailureDoesNotBlock(t *testing.T) {
	m := &mockStore{analysisErr: &types.StorageError{Op: "insert_edit_analysis", Err: errBoom}}
	m.addSummary("s1", "chat", "original body")
	s := NewStore(m, 0)

	rec, err := s.StoreFeedback(context.Background(), "s1", "edited", "", "edited body", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, m.feedback, 1)
	require.Empty(t, m.analyses)
}

func TestStoreFeedbackRejectedRecordsContext(t *testing.T) {
	m := &mockStore{}
	m.addSummary("s1", "email", "first summary")
	m.addSummary("s2", "email", "second summary")
	s := NewStore(m, 0)

	_, err := s.StoreFeedback(context.Background(), "s1", "rejected", "not relevant", "", "")
	require.NoError(t, err)
	_, err = s.StoreFeedback(context.Background(), "s2", "rejected", "still off", "", "")
	require.NoError(t, err)

	require.Len(t, m.rejections, 2)
	require.Equal(t, "email", m.rejections[1].source)
	// The count includes the rejection just stored.
	require.Equal(t, 1, m.rejections[0].recent)
	require.Equal(t, 2, m.rejections[1].recent)
}

func TestStoreFeedbackRejectionTableAbsent(t *testing.T) {
	m := &mockStore{rejectionErr: &types.StorageError{Op: "insert_rejection_context", Err: errors.New("no such table: rejection_contexts")}}
	m.addSummary("s1", "chat", "body")
	s := NewStore(m, 0)

	rec, err := s.StoreFeedback(context.Background(), "s1", "rejected", "", "", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestPreferenceProfileCachedWithinTTL(t *testing.T) {
	m := &mockStore{}
	s := NewStore(m, 5*time.Minute)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	first, err := s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)

	now = now.Add(time.Minute)
	second, err := s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("cached profile differs (-first +second):\n%s", diff)
	}
	require.Equal(t, 1, m.recentCalls, "second call within TTL must not recompute")

	// A feedback write invalidates the cache; the next call recomputes.
	_, err = s.StoreFeedback(context.Background(), "s1", "approved", "", "", "")
	require.NoError(t, err)

	_, err = s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, m.recentCalls, "call after feedback write must recompute")
}

func TestPreferenceProfileTTLExpiry(t *testing.T) {
	m := &mockStore{}
	s := NewStore(m, 5*time.Minute)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	_, err := s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)

	now = now.Add(6 * time.Minute)
	_, err = s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, m.recentCalls, "call after TTL must recompute")
}

func TestProfileMajorityVoteWithEarliestSeenTieBreak(t *testing.T) {
	m := &mockStore{}
	base := time.Now().Add(-time.Hour)
	// Two casual votes, two technical votes: tie resolves to the vote
	// seen earliest (casual, the oldest analysis).
	m.analyses = []types.EditAnalysis{
		{ID: "ea1", ToneShift: "casual", CreatedAt: base},
		{ID: "ea2", ToneShift: "technical", CreatedAt: base.Add(time.Minute)},
		{ID: "ea3", ToneShift: "casual", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "ea4", ToneShift: "technical", CreatedAt: base.Add(3 * time.Minute)},
	}
	s := NewStore(m, 0)

	profile, err := s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "casual", profile.PreferredTone)
}

func TestProfileLengthBandAndStyle(t *testing.T) {
	m := &mockStore{}
	// Edits consistently shrink the text past the concise threshold and
	// strip bullets.
	m.analyses = []types.EditAnalysis{
		{ID: "ea1", OriginalLength: 1000, EditedLength: 500, StyleShift: "fewer bullet points"},
		{ID: "ea2", OriginalLength: 800, EditedLength: 600, StyleShift: "fewer bullet points"},
		{ID: "ea3", OriginalLength: 900, EditedLength: 890},
	}
	s := NewStore(m, 0)

	profile, err := s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.LengthConcise, profile.PreferredLength)
	require.Equal(t, "fewer bullet points", profile.PreferredStyle)
}

func TestProfileDefaultsWithNoVotes(t *testing.T) {
	s := NewStore(&mockStore{}, 0)

	profile, err := s.GetPreferenceProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "friendly", profile.PreferredTone)
	require.Equal(t, types.LengthMedium, profile.PreferredLength)
	require.Empty(t, profile.PreferredStyle)
}

func TestGetFeedbackStats(t *testing.T) {
	m := &mockStore{}
	now := time.Now()
	m.feedback = []types.FeedbackRecord{
		{ID: "f1", SummaryID: "s1", Verdict: types.VerdictApproved, CreatedAt: now},
		{ID: "f2", SummaryID: "s2", Verdict: types.VerdictApproved, CreatedAt: now},
		{ID: "f3", SummaryID: "s3", Verdict: types.VerdictEdited, CreatedAt: now},
		{ID: "f4", SummaryID: "s4", Verdict: types.VerdictRejected, CreatedAt: now},
		// Outside the trailing window, excluded.
		{ID: "f5", SummaryID: "s5", Verdict: types.VerdictRejected, CreatedAt: now.AddDate(0, 0, -45)},
	}
	s := NewStore(m, 0)

	stats, err := s.GetFeedbackStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.Total)
	require.Equal(t, 2, stats.Approved)
	require.Equal(t, 1, stats.Edited)
	require.Equal(t, 1, stats.Rejected)
	require.InDelta(t, 0.5, stats.ApprovalRate, 1e-9)
}
