package feedback

// Fixed lexicons for tone inference. The learner counts occurrences of
// these words in original vs. edited text; the dominant lexicon of the
// edited text, when it differs from the original's, becomes a tone-shift
// vote. Deliberately small and fixed so behavior stays reproducible.
var toneLexicons = map[string][]string{
	"formal": {
		"regarding", "pursuant", "accordingly", "hereby", "furthermore",
		"therefore", "kindly", "sincerely", "respectfully", "acknowledge",
	},
	"casual": {
		"hey", "thanks", "cool", "yeah", "stuff", "gonna", "btw",
		"awesome", "no worries", "cheers",
	},
	"technical": {
		"deploy", "endpoint", "latency", "config", "migration", "rollback",
		"regression", "throughput", "dependency", "incident",
	},
	"friendly": {
		"happy", "great", "glad", "appreciate", "wonderful", "hope",
		"love", "excited", "welcome", "enjoy",
	},
}

// toneOrder fixes the iteration order so vote tallying and tie-breaks
// are deterministic.
var toneOrder = []string{"formal", "casual", "technical", "friendly"}

// bulletGlyphs are the markers counted for bullet-point style detection.
var bulletGlyphs = []string{"- ", "* ", "• "}
