// Package orchestrator assembles prompts, calls the model, parses the
// response, and persists the resulting summaries. It is the only layer
// that talks to the LLM; everything it returns is a structured
// SummaryResult or a typed error, never a raw completion.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"briefdesk/internal/feedback"
	"briefdesk/internal/logging"
	"briefdesk/internal/types"

	"github.com/google/uuid"
)

// CompositeSource labels the cross-source digest produced by Combine.
const CompositeSource = "composite"

// Orchestrator drives one summarization request end to end.
type Orchestrator struct {
	llm       types.LLMClient
	durable   types.DurableStore
	prefs     *feedback.Store
	templates *TemplateRegistry

	now func() time.Time
}

// New wires an orchestrator. prefs may be nil, in which case prompts
// are rendered without preference shaping.
func New(llm types.LLMClient, durable types.DurableStore, prefs *feedback.Store, templates *TemplateRegistry) *Orchestrator {
	if templates == nil {
		templates = NewTemplateRegistry("")
	}
	return &Orchestrator{
		llm:       llm,
		durable:   durable,
		prefs:     prefs,
		templates: templates,
		now:       time.Now,
	}
}

// SetClock overrides the orchestrator's time source. Test hook.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Summarize runs the full pipeline for one source: preference-shaped
// prompt, model call, parse (with fallback), best-effort persistence.
// Model failures propagate as *types.ModelUnavailableError; an empty
// payload is a *types.ValidationError. Persistence failures are logged
// and do not fail the call.
func (o *Orchestrator) Summarize(ctx context.Context, sourceTag string, payload []types.SourceRecord, bundle types.ContextBundle) (*types.SummaryResult, error) {
	timer := logging.StartTimer(logging.CategoryOrchestrator, "Summarize")
	defer timer.Stop()

	if len(payload) == 0 {
		return nil, &types.ValidationError{Field: "payload", Reason: "must contain at least one record"}
	}
	if sourceTag == "" {
		sourceTag = payload[0].Source
	}

	profile := o.loadProfile(ctx)
	tmpl := o.templates.Get(sourceTag)

	systemPrompt := renderSystemPrompt(tmpl, profile)
	userPrompt := renderUserPrompt(tmpl, payload, bundle)

	raw, err := o.llm.CompleteWithSystem(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", sourceTag, err)
	}

	summary, actionItems, messages, degraded := parseModelResponse(raw)
	result := &types.SummaryResult{
		ID:                uuid.NewString(),
		Source:            sourceTag,
		Summary:           summary,
		ActionItems:       actionItems,
		SuggestedMessages: messages,
		ParseDegraded:     degraded,
		CreatedAt:         o.now().UTC(),
	}

	o.persist(ctx, result)

	logging.Orchestrator("summarized %s: %d records, %d action items, %d messages, degraded=%v",
		sourceTag, len(payload), len(result.ActionItems), len(result.SuggestedMessages), degraded)
	return result, nil
}

// Combine merges per-source results into one composite digest without
// another model call. Summaries are concatenated under source labels;
// action items and suggested messages are unioned with duplicates
// dropped. The composite is persisted through the same best-effort path.
func (o *Orchestrator) Combine(ctx context.Context, results []*types.SummaryResult) (*types.SummaryResult, error) {
	if len(results) == 0 {
		return nil, &types.ValidationError{Field: "results", Reason: "must contain at least one summary"}
	}

	var parts []string
	actionItems := []string{}
	messages := []types.SuggestedMessage{}
	seenItems := make(map[string]bool)
	seenBodies := make(map[string]bool)
	degraded := false

	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Summary != "" {
			parts = append(parts, fmt.Sprintf("[%s] %s", res.Source, res.Summary))
		}
		for _, item := range res.ActionItems {
			if !seenItems[item] {
				seenItems[item] = true
				actionItems = append(actionItems, item)
			}
		}
		for _, msg := range res.SuggestedMessages {
			if !seenBodies[msg.Body] {
				seenBodies[msg.Body] = true
				messages = append(messages, msg)
			}
		}
		degraded = degraded || res.ParseDegraded
	}

	composite := &types.SummaryResult{
		ID:                uuid.NewString(),
		Source:            CompositeSource,
		Summary:           strings.Join(parts, "\n\n"),
		ActionItems:       actionItems,
		SuggestedMessages: messages,
		ParseDegraded:     degraded,
		CreatedAt:         o.now().UTC(),
	}

	o.persist(ctx, composite)

	logging.Orchestrator("combined %d summaries into composite %s", len(results), composite.ID)
	return composite, nil
}

// loadProfile fetches the learned preferences. A learner failure is a
// storage problem, not a summarization problem: log it and shape the
// prompt without preferences.
func (o *Orchestrator) loadProfile(ctx context.Context) *types.PreferenceProfile {
	if o.prefs == nil {
		return nil
	}
	profile, err := o.prefs.GetPreferenceProfile(ctx)
	if err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("preference profile unavailable, using unshaped prompt: %v", err)
		return nil
	}
	return &profile
}

// persist writes the result. Best effort: the operator still gets the
// summary even when the store is down.
func (o *Orchestrator) persist(ctx context.Context, res *types.SummaryResult) {
	if o.durable == nil {
		return
	}
	if err := o.durable.InsertSummary(ctx, *res); err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("summary %s not persisted: %v", res.ID, err)
	}
}
