package feedback

import (
	"strings"
	"time"

	"briefdesk/internal/types"

	"github.com/google/uuid"
)

// Length/style thresholds. These are a documented contract, not tuning
// knobs: tests assert on the exact boundaries.
const (
	sentenceLengthDelta = 10   // chars of average sentence length
	bulletCountDelta    = 2    // bullet glyphs
	detailedRatio       = 1.2  // edited/original length
	conciseRatio        = 0.83 // edited/original length
)

// analyzeEdit derives an EditAnalysis from an edited feedback record.
// Computed once per edit; the caller persists it append-only.
func analyzeEdit(feedbackID, original, edited string, now time.Time) types.EditAnalysis {
	ea := types.EditAnalysis{
		ID:             uuid.NewString(),
		FeedbackID:     feedbackID,
		OriginalLength: len(original),
		EditedLength:   len(edited),
		CreatedAt:      now,
	}
	if len(original) > 0 {
		ea.LengthDeltaPct = float64(len(edited)-len(original)) / float64(len(original)) * 100
	}

	ea.ToneShift = toneShift(original, edited)
	ea.StyleShift = styleShift(original, edited)
	return ea
}

// dominantTone returns the lexicon with the highest occurrence count in
// text, or "" when no lexicon word appears. Ties resolve in fixed
// lexicon order.
func dominantTone(text string) string {
	lower := strings.ToLower(text)
	best := ""
	bestCount := 0
	for _, tone := range toneOrder {
		count := 0
		for _, word := range toneLexicons[tone] {
			count += strings.Count(lower, word)
		}
		if count > bestCount {
			best = tone
			bestCount = count
		}
	}
	return best
}

// toneShift returns the edited text's dominant lexicon when it differs
// from the original's, otherwise "".
func toneShift(original, edited string) string {
	editedTone := dominantTone(edited)
	if editedTone == "" {
		return ""
	}
	if editedTone == dominantTone(original) {
		return ""
	}
	return editedTone
}

// styleShift derives the coarse style-shift label from an edit.
// Bullet-glyph deltas take precedence over sentence-length deltas.
func styleShift(original, edited string) string {
	bulletDelta := countBullets(edited) - countBullets(original)
	if bulletDelta > bulletCountDelta {
		return "more bullet points"
	}
	if bulletDelta < -bulletCountDelta {
		return "fewer bullet points"
	}

	sentenceDelta := avgSentenceLength(edited) - avgSentenceLength(original)
	if sentenceDelta > sentenceLengthDelta {
		return "longer sentences"
	}
	if sentenceDelta < -sentenceLengthDelta {
		return "shorter sentences"
	}
	return ""
}

// lengthVote maps an analysis to a length-band vote, or "" when the
// edit did not meaningfully change total length.
func lengthVote(ea types.EditAnalysis) types.LengthBand {
	if ea.OriginalLength == 0 {
		return ""
	}
	ratio := float64(ea.EditedLength) / float64(ea.OriginalLength)
	if ratio > detailedRatio {
		return types.LengthDetailed
	}
	if ratio < conciseRatio {
		return types.LengthConcise
	}
	return ""
}

func countBullets(text string) int {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		for _, glyph := range bulletGlyphs {
			if strings.HasPrefix(trimmed, glyph) {
				count++
				break
			}
		}
	}
	return count
}

func avgSentenceLength(text string) float64 {
	sentences := 0
	var lengths int
	current := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if current > 0 {
				sentences++
				lengths += current
				current = 0
			}
		default:
			current++
		}
	}
	if current > 0 {
		sentences++
		lengths += current
	}
	if sentences == 0 {
		return 0
	}
	return float64(lengths) / float64(sentences)
}
