package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"

	"briefdesk/internal/logging"
	"briefdesk/internal/types"
)

// modelOutput is the JSON schema the prompt asks the model to emit.
type modelOutput struct {
	Summary           string   `json:"summary"`
	ActionItems       []string `json:"action_items"`
	SuggestedMessages []struct {
		Recipient  string  `json:"recipient"`
		Subject    string  `json:"subject"`
		Body       string  `json:"body"`
		Confidence float64 `json:"confidence"`
	} `json:"suggested_messages"`
}

// fallbackConfidence is assigned to messages recovered from prose,
// since the model never scored them.
const fallbackConfidence = 0.3

var (
	summaryHeading  = regexp.MustCompile(`(?im)^\s*(?:#+\s*|\*\*)?summary\b[:*\s]*$|^\s*(?:#+\s*|\*\*)?summary\b[:*]+`)
	actionHeading   = regexp.MustCompile(`(?im)^\s*(?:#+\s*|\*\*)?action\s*items?\b[:*\s]*`)
	messagesHeading = regexp.MustCompile(`(?im)^\s*(?:#+\s*|\*\*)?(?:suggested\s*)?(?:messages?|replies|responses)\b[:*\s]*`)
	bulletLine      = regexp.MustCompile(`(?m)^\s*(?:[-*\x{2022}]|\d+[.)])\s+(.+)$`)
)

// parseModelResponse turns a raw completion into the summary fields.
// It tries the structured schema first; anything that does not parse
// goes through the labeled-section fallback with degraded set.
func parseModelResponse(raw string) (summary string, actionItems []string, messages []types.SuggestedMessage, degraded bool) {
	if out, ok := parseStructured(raw); ok {
		actionItems = out.ActionItems
		if actionItems == nil {
			actionItems = []string{}
		}
		messages = make([]types.SuggestedMessage, 0, len(out.SuggestedMessages))
		for _, m := range out.SuggestedMessages {
			messages = append(messages, types.SuggestedMessage{
				Recipient:  m.Recipient,
				Subject:    m.Subject,
				Body:       m.Body,
				Confidence: m.Confidence,
			})
		}
		return out.Summary, actionItems, messages, false
	}

	logging.Orchestrator("structured parse failed, falling back to section extraction (response_len=%d)", len(raw))
	summary, actionItems, messages = parseSections(raw)
	return summary, actionItems, messages, true
}

// parseStructured extracts and decodes the JSON object from a raw
// completion, tolerating code fences and surrounding chatter.
func parseStructured(raw string) (*modelOutput, bool) {
	candidate := stripCodeFences(raw)

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &out); err != nil {
		return nil, false
	}
	if strings.TrimSpace(out.Summary) == "" {
		return nil, false
	}
	return &out, true
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseSections recovers what it can from a prose response. Labeled
// headings split the text; bullets under "action items" become items
// and bullets under a messages heading become low-confidence drafts.
// With no recognizable labels the entire text becomes the summary.
func parseSections(raw string) (string, []string, []types.SuggestedMessage) {
	text := strings.TrimSpace(raw)
	actionItems := []string{}
	messages := []types.SuggestedMessage{}

	actionLoc := actionHeading.FindStringIndex(text)
	messagesLoc := messagesHeading.FindStringIndex(text)

	summaryEnd := len(text)
	if actionLoc != nil && actionLoc[0] < summaryEnd {
		summaryEnd = actionLoc[0]
	}
	if messagesLoc != nil && messagesLoc[0] < summaryEnd {
		summaryEnd = messagesLoc[0]
	}

	summary := strings.TrimSpace(summaryHeading.ReplaceAllString(text[:summaryEnd], ""))
	if summary == "" {
		summary = text
	}

	if actionLoc != nil {
		section := text[actionLoc[1]:]
		if messagesLoc != nil && messagesLoc[0] > actionLoc[1] {
			section = text[actionLoc[1]:messagesLoc[0]]
		}
		actionItems = extractBullets(section)
	}

	if messagesLoc != nil {
		section := text[messagesLoc[1]:]
		if actionLoc != nil && actionLoc[0] > messagesLoc[1] {
			section = text[messagesLoc[1]:actionLoc[0]]
		}
		for _, body := range extractBullets(section) {
			messages = append(messages, types.SuggestedMessage{
				Body:       body,
				Confidence: fallbackConfidence,
			})
		}
	}

	return summary, actionItems, messages
}

func extractBullets(section string) []string {
	items := []string{}
	for _, m := range bulletLine.FindAllStringSubmatch(section, -1) {
		if item := strings.TrimSpace(m[1]); item != "" {
			items = append(items, item)
		}
	}
	return items
}
