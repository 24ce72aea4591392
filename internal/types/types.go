// Package types defines the shared domain model for briefdesk.
// It has no dependencies on other briefdesk packages so that the cache,
// feedback, resolver, and orchestrator layers can all share it without
// import cycles.
package types

import (
	"time"
)

// EntityKind distinguishes the independent cache pools.
type EntityKind string

const (
	KindClient  EntityKind = "client"
	KindProject EntityKind = "project"
)

// Entity is a cached/stored domain object (typically a client) that
// source records reference by name.
type Entity struct {
	ID             string            `json:"id"`
	Kind           EntityKind        `json:"kind"`
	Name           string            `json:"name"` // unique within the store, lookup key
	Profile        map[string]string `json:"profile,omitempty"`
	LastReferenced time.Time         `json:"last_referenced"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// SourceRecord is one unit of ingested activity (a message, a ticket,
// a time entry, an email). The fetchers that produce these are external
// collaborators; the core only reads Text and the identifying fields.
type SourceRecord struct {
	ID     string    `json:"id"`
	Source string    `json:"source"` // "chat", "tickets", "time", "email"
	Title  string    `json:"title,omitempty"`
	Text   string    `json:"text"`
	Author string    `json:"author,omitempty"`
	SentAt time.Time `json:"sent_at,omitempty"`
}

// ContextBundle is the resolved set of entities relevant to a batch of
// source records, keyed work for the orchestrator's prompt enrichment.
type ContextBundle struct {
	Entities       []Entity `json:"entities"`
	ExtractedNames []string `json:"extracted_names"`
}

// Verdict is the operator's decision on a suggested summary.
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictEdited   Verdict = "edited"
	VerdictRejected Verdict = "rejected"
)

// FeedbackRecord stores one operator verdict. Immutable once created.
type FeedbackRecord struct {
	ID         string    `json:"id"`
	SummaryID  string    `json:"summary_id"`
	Verdict    Verdict   `json:"verdict"`
	Comment    string    `json:"comment,omitempty"`
	EditedBody string    `json:"edited_body,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EditAnalysis captures the delta between an original summary and the
// operator's edit. Computed once per edited verdict, append-only.
type EditAnalysis struct {
	ID             string    `json:"id"`
	FeedbackID     string    `json:"feedback_id"`
	OriginalLength int       `json:"original_length"`
	EditedLength   int       `json:"edited_length"`
	LengthDeltaPct float64   `json:"length_delta_pct"`
	ToneShift      string    `json:"tone_shift,omitempty"`  // e.g. "formal", "casual"
	StyleShift     string    `json:"style_shift,omitempty"` // e.g. "more bullet points"
	CreatedAt      time.Time `json:"created_at"`
}

// LengthBand buckets the preferred summary length.
type LengthBand string

const (
	LengthConcise  LengthBand = "concise"
	LengthMedium   LengthBand = "medium"
	LengthDetailed LengthBand = "detailed"
)

// PreferenceProfile is the learned tone/length/style aggregate derived
// from operator feedback. Recomputed from recent EditAnalyses plus
// trailing verdict rates; cached by the feedback store with its own TTL.
type PreferenceProfile struct {
	PreferredTone   string     `json:"preferred_tone"` // "formal", "casual", "technical", "friendly"
	PreferredLength LengthBand `json:"preferred_length"`
	PreferredStyle  string     `json:"preferred_style"` // free text, e.g. "bullet-points"
	ApprovalRate    float64    `json:"approval_rate"`
	EditRate        float64    `json:"edit_rate"`
	RejectionRate   float64    `json:"rejection_rate"`
	SampleSize      int        `json:"sample_size"`
	ComputedAt      time.Time  `json:"computed_at"`
}

// FeedbackStats is the aggregate exposed to callers (CLI, HTTP layer).
type FeedbackStats struct {
	Total        int     `json:"total"`
	Approved     int     `json:"approved"`
	Edited       int     `json:"edited"`
	Rejected     int     `json:"rejected"`
	ApprovalRate float64 `json:"approval_rate"`
	WindowDays   int     `json:"window_days"`
}

// SuggestedMessage is one model-suggested outbound reply. Replies are
// only queued for human review, never sent by the core.
type SuggestedMessage struct {
	Recipient  string  `json:"recipient,omitempty"`
	Subject    string  `json:"subject,omitempty"`
	Body       string  `json:"body"`
	Confidence float64 `json:"confidence"` // [0,1]
}

// SummaryResult is the orchestrator's output for one source (or for the
// cross-source composite pass). ParseDegraded marks results recovered
// through the fallback section parser instead of structured parsing.
type SummaryResult struct {
	ID                string             `json:"id"`
	Source            string             `json:"source"`
	Summary           string             `json:"summary"`
	ActionItems       []string           `json:"action_items"`
	SuggestedMessages []SuggestedMessage `json:"suggested_messages"`
	ParseDegraded     bool               `json:"parse_degraded,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
