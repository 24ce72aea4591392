package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"briefdesk/internal/types"
)

// outputSchema tells the model the exact JSON shape we parse. Kept in
// the user prompt rather than the system prompt so per-source templates
// can override the persona without losing the contract.
const outputSchema = `Respond with a single JSON object, no surrounding prose:
{
  "summary": "one paragraph digest",
  "action_items": ["things the operator should do"],
  "suggested_messages": [
    {"recipient": "who", "subject": "short subject", "body": "draft text", "confidence": 0.0}
  ]
}`

// renderSystemPrompt folds the operator's learned preferences into the
// template's persona line.
func renderSystemPrompt(tmpl Template, profile *types.PreferenceProfile) string {
	var b strings.Builder
	b.WriteString(tmpl.Role)

	if profile != nil {
		if profile.PreferredTone != "" {
			fmt.Fprintf(&b, "\nWrite in a %s tone.", profile.PreferredTone)
		}
		switch profile.PreferredLength {
		case types.LengthConcise:
			b.WriteString("\nKeep the summary short; a few sentences at most.")
		case types.LengthDetailed:
			b.WriteString("\nBe thorough; the operator prefers detail over brevity.")
		}
		if profile.PreferredStyle != "" {
			fmt.Fprintf(&b, "\nStyle note: the operator prefers %s.", profile.PreferredStyle)
		}
	}

	return b.String()
}

// renderUserPrompt assembles instructions, known-entity context, the
// activity payload, and the output contract.
func renderUserPrompt(tmpl Template, payload []types.SourceRecord, bundle types.ContextBundle) string {
	var b strings.Builder
	b.WriteString(tmpl.Instructions)
	b.WriteString("\n\n")

	if len(bundle.Entities) > 0 {
		b.WriteString("Known entities mentioned in this activity:\n")
		for _, e := range bundle.Entities {
			fmt.Fprintf(&b, "- %s (%s)", e.Name, e.Kind)
			if len(e.Profile) > 0 {
				fmt.Fprintf(&b, ": %s", formatAttributes(e.Profile))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Activity records:\n")
	for i, rec := range payload {
		fmt.Fprintf(&b, "[%d] source=%s", i+1, rec.Source)
		if rec.Author != "" {
			fmt.Fprintf(&b, " from=%s", rec.Author)
		}
		if !rec.SentAt.IsZero() {
			fmt.Fprintf(&b, " at=%s", rec.SentAt.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
		if rec.Title != "" {
			fmt.Fprintf(&b, "%s\n", rec.Title)
		}
		if rec.Text != "" {
			fmt.Fprintf(&b, "%s\n", rec.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString(outputSchema)
	return b.String()
}

func formatAttributes(attrs map[string]string) string {
	parts := make([]string, 0, len(attrs))
	for k, v := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	// Deterministic order keeps prompts stable across runs.
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
