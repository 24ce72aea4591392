// Package feedback records operator verdicts on model suggestions and
// learns lightweight stylistic preferences from edit deltas. The learned
// PreferenceProfile feeds the orchestrator's prompt assembly.
//
// Tone/style inference is a fixed small-lexicon heuristic with majority
// voting, not a trained model. Keep it that way: the point is
// reproducible, testable behavior.
package feedback

import (
	"context"
	"sync"
	"time"

	"briefdesk/internal/logging"
	"briefdesk/internal/types"

	"github.com/google/uuid"
)

const (
	// ProfileTTL bounds how long a computed PreferenceProfile is served
	// from cache before recomputation.
	ProfileTTL = 5 * time.Minute

	// analysisWindow is how many recent EditAnalyses feed a recompute.
	analysisWindow = 20

	// statsWindowDays is the trailing window for verdict rates.
	statsWindowDays = 30
)

// Store is the feedback store and pattern learner. Safe for concurrent
// use; the mutex guards only the cached profile, never a store call.
type Store struct {
	durable    types.DurableStore
	profileTTL time.Duration

	mu       sync.Mutex
	cached   *types.PreferenceProfile
	cachedAt time.Time

	now func() time.Time
}

// NewStore creates a feedback store backed by the given durable store.
// Zero ttl selects ProfileTTL.
func NewStore(durable types.DurableStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = ProfileTTL
	}
	return &Store{
		durable:    durable,
		profileTTL: ttl,
		now:        time.Now,
	}
}

// SetClock overrides the store's time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// normalizeVerdict maps unknown verdict values to approved rather than
// rejecting the call. Documented lenient behavior: the record is kept,
// the original value is logged.
func normalizeVerdict(v string) types.Verdict {
	switch types.Verdict(v) {
	case types.VerdictApproved, types.VerdictEdited, types.VerdictRejected:
		return types.Verdict(v)
	default:
		logging.Get(logging.CategoryFeedback).Warn("unknown verdict %q normalized to approved", v)
		return types.VerdictApproved
	}
}

// StoreFeedback validates and persists one operator verdict, then runs
// the best-effort side effects: an EditAnalysis for edited verdicts, a
// rejection-context note for rejected ones, and invalidation of the
// cached PreferenceProfile. Side-effect failures are logged, never
// propagated; a primary-write failure returns a nil record and the
// storage error.
func (s *Store) StoreFeedback(ctx context.Context, summaryID, verdict, comment, editedBody, userID string) (*types.FeedbackRecord, error) {
	timer := logging.StartTimer(logging.CategoryFeedback, "StoreFeedback")
	defer timer.Stop()

	if summaryID == "" {
		return nil, &types.ValidationError{Field: "summary_id", Reason: "must not be empty"}
	}

	rec := types.FeedbackRecord{
		ID:         uuid.NewString(),
		SummaryID:  summaryID,
		Verdict:    normalizeVerdict(verdict),
		Comment:    comment,
		EditedBody: editedBody,
		UserID:     userID,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.durable.InsertFeedback(ctx, rec); err != nil {
		logging.Get(logging.CategoryFeedback).Error("feedback write failed for summary %s: %v", summaryID, err)
		return nil, err
	}

	switch rec.Verdict {
	case types.VerdictEdited:
		s.deriveEditAnalysis(ctx, rec)
	case types.VerdictRejected:
		s.recordRejectionContext(ctx, rec)
	}

	// Invalidate before returning so any summarize call that starts
	// after this write observes the new feedback.
	s.InvalidateProfile()

	logging.Feedback("stored feedback %s summary=%s verdict=%s", rec.ID, rec.SummaryID, rec.Verdict)
	return &rec, nil
}

// deriveEditAnalysis computes and persists the edit delta. Best effort:
// failures here never block the primary feedback write.
func (s *Store) deriveEditAnalysis(ctx context.Context, rec types.FeedbackRecord) {
	original, err := s.summaryText(ctx, rec.SummaryID)
	if err != nil {
		logging.Get(logging.CategoryFeedback).Warn("edit analysis skipped, summary %s unavailable: %v", rec.SummaryID, err)
		return
	}

	ea := analyzeEdit(rec.ID, original, rec.EditedBody, s.now().UTC())
	if err := s.durable.InsertEditAnalysis(ctx, ea); err != nil {
		if types.IsMissingRelation(err) {
			logging.FeedbackDebug("edit_analyses relation absent, skipping analytics write")
			return
		}
		logging.Get(logging.CategoryFeedback).Warn("edit analysis write failed: %v", err)
		return
	}
	logging.FeedbackDebug("edit analysis %s tone=%q style=%q delta=%.1f%%", ea.ID, ea.ToneShift, ea.StyleShift, ea.LengthDeltaPct)
}

// recordRejectionContext notes how many recent summaries from the same
// source were also rejected, for future prompt bias. Best effort.
func (s *Store) recordRejectionContext(ctx context.Context, rec types.FeedbackRecord) {
	source := ""
	if summaries, err := s.durable.QuerySummaries(ctx, types.SummaryFilter{ID: rec.SummaryID, Limit: 1}); err == nil && len(summaries) > 0 {
		source = summaries[0].Source
	}

	recent := s.countRecentRejections(ctx, source)

	if err := s.durable.InsertRejectionContext(ctx, rec.SummaryID, source, recent); err != nil {
		if types.IsMissingRelation(err) {
			logging.FeedbackDebug("rejection_contexts relation absent, skipping analytics write")
			return
		}
		logging.Get(logging.CategoryFeedback).Warn("rejection context write failed: %v", err)
	}
}

// countRecentRejections counts rejected verdicts in the trailing window
// whose summaries came from the same source.
func (s *Store) countRecentRejections(ctx context.Context, source string) int {
	since := s.now().AddDate(0, 0, -statsWindowDays)

	rejected, err := s.durable.QueryFeedback(ctx, types.FeedbackFilter{Verdict: types.VerdictRejected, Since: since})
	if err != nil {
		logging.FeedbackDebug("rejection count query failed: %v", err)
		return 0
	}
	if source == "" {
		return len(rejected)
	}

	summaries, err := s.durable.QuerySummaries(ctx, types.SummaryFilter{Source: source, Since: since})
	if err != nil {
		logging.FeedbackDebug("rejection summary query failed: %v", err)
		return 0
	}
	fromSource := make(map[string]bool, len(summaries))
	for _, sum := range summaries {
		fromSource[sum.ID] = true
	}

	count := 0
	for _, rec := range rejected {
		if fromSource[rec.SummaryID] {
			count++
		}
	}
	return count
}

// summaryText fetches the stored summary body for an edit comparison.
func (s *Store) summaryText(ctx context.Context, summaryID string) (string, error) {
	summaries, err := s.durable.QuerySummaries(ctx, types.SummaryFilter{ID: summaryID, Limit: 1})
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", types.ErrNotFound
	}
	return summaries[0].Summary, nil
}

// InvalidateProfile drops the cached PreferenceProfile so the next
// GetPreferenceProfile recomputes.
func (s *Store) InvalidateProfile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.cachedAt = time.Time{}
}

// GetPreferenceProfile returns the cached profile when it is younger
// than the TTL, otherwise recomputes from the most recent EditAnalyses
// plus trailing verdict counts and re-caches. The recompute runs outside
// the lock; concurrent callers may race to recompute, last write wins.
func (s *Store) GetPreferenceProfile(ctx context.Context) (types.PreferenceProfile, error) {
	s.mu.Lock()
	if s.cached != nil && s.now().Sub(s.cachedAt) < s.profileTTL {
		profile := *s.cached
		s.mu.Unlock()
		return profile, nil
	}
	s.mu.Unlock()

	profile, err := s.computeProfile(ctx)
	if err != nil {
		return types.PreferenceProfile{}, err
	}

	s.mu.Lock()
	s.cached = &profile
	s.cachedAt = s.now()
	s.mu.Unlock()

	logging.FeedbackDebug("preference profile recomputed: tone=%s length=%s style=%q samples=%d",
		profile.PreferredTone, profile.PreferredLength, profile.PreferredStyle, profile.SampleSize)
	return profile, nil
}

// GetFeedbackStats returns verdict counts over the trailing window.
func (s *Store) GetFeedbackStats(ctx context.Context) (types.FeedbackStats, error) {
	since := s.now().AddDate(0, 0, -statsWindowDays)
	records, err := s.durable.QueryFeedback(ctx, types.FeedbackFilter{Since: since})
	if err != nil {
		return types.FeedbackStats{}, err
	}

	stats := types.FeedbackStats{Total: len(records), WindowDays: statsWindowDays}
	for _, rec := range records {
		switch rec.Verdict {
		case types.VerdictApproved:
			stats.Approved++
		case types.VerdictEdited:
			stats.Edited++
		case types.VerdictRejected:
			stats.Rejected++
		}
	}
	if stats.Total > 0 {
		stats.ApprovalRate = float64(stats.Approved) / float64(stats.Total)
	}
	return stats, nil
}
