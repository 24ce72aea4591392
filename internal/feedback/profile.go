package feedback

import (
	"context"

	"briefdesk/internal/types"
)

// Defaults applied when no votes exist yet.
const (
	defaultTone = "friendly"
)

// computeProfile aggregates the most recent EditAnalyses and the
// trailing verdict counts into a PreferenceProfile.
//
// Votes are tallied per label; the majority wins, ties broken by the
// earliest-seen label. Analyses arrive most-recent-first from the store,
// so "earliest seen" walks them oldest-first.
func (s *Store) computeProfile(ctx context.Context) (types.PreferenceProfile, error) {
	analyses, err := s.durable.RecentEditAnalyses(ctx, analysisWindow)
	if err != nil {
		return types.PreferenceProfile{}, err
	}

	stats, err := s.GetFeedbackStats(ctx)
	if err != nil {
		return types.PreferenceProfile{}, err
	}

	profile := types.PreferenceProfile{
		PreferredTone:   defaultTone,
		PreferredLength: types.LengthMedium,
		SampleSize:      len(analyses),
		ComputedAt:      s.now().UTC(),
	}
	if stats.Total > 0 {
		total := float64(stats.Total)
		profile.ApprovalRate = float64(stats.Approved) / total
		profile.EditRate = float64(stats.Edited) / total
		profile.RejectionRate = float64(stats.Rejected) / total
	}

	toneVotes := newTally()
	lengthVotes := newTally()
	styleVotes := newTally()

	// Oldest first, so ties resolve to the earliest-seen label.
	for i := len(analyses) - 1; i >= 0; i-- {
		ea := analyses[i]
		if ea.ToneShift != "" {
			toneVotes.add(ea.ToneShift)
		}
		if band := lengthVote(ea); band != "" {
			lengthVotes.add(string(band))
		}
		if ea.StyleShift != "" {
			styleVotes.add(ea.StyleShift)
		}
	}

	if tone := toneVotes.winner(); tone != "" {
		profile.PreferredTone = tone
	}
	if band := lengthVotes.winner(); band != "" {
		profile.PreferredLength = types.LengthBand(band)
	}
	profile.PreferredStyle = styleVotes.winner()

	return profile, nil
}

// tally counts votes and remembers first-seen order for tie-breaking.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally {
	return &tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if _, seen := t.counts[label]; !seen {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

// winner returns the majority label, earliest-seen breaking ties, or ""
// when no votes were cast.
func (t *tally) winner() string {
	best := ""
	bestCount := 0
	for _, label := range t.order {
		if t.counts[label] > bestCount {
			best = label
			bestCount = t.counts[label]
		}
	}
	return best
}
