package types

import (
	"context"
	"time"
)

// LLMClient defines the interface for model endpoint interactions.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// FeedbackFilter narrows QueryFeedback results. Zero values mean "any".
type FeedbackFilter struct {
	SummaryID string
	Verdict   Verdict
	Since     time.Time
	Limit     int
}

// SummaryFilter narrows QuerySummaries results. Zero values mean "any".
type SummaryFilter struct {
	ID     string
	Source string
	Since  time.Time
	Limit  int
}

// DurableStore is the persistence collaborator consumed by the core.
// Implemented by store.LocalStore; any call may fail with a *StorageError.
type DurableStore interface {
	FindEntitiesByNames(ctx context.Context, kind EntityKind, names []string) ([]Entity, error)
	UpsertEntity(ctx context.Context, e Entity) error
	GetEntityByID(ctx context.Context, id string) (Entity, error)
	TouchEntities(ctx context.Context, ids []string) error

	InsertFeedback(ctx context.Context, rec FeedbackRecord) error
	QueryFeedback(ctx context.Context, filter FeedbackFilter) ([]FeedbackRecord, error)
	InsertEditAnalysis(ctx context.Context, ea EditAnalysis) error
	RecentEditAnalyses(ctx context.Context, limit int) ([]EditAnalysis, error)
	InsertRejectionContext(ctx context.Context, summaryID, source string, recentRejections int) error

	InsertSummary(ctx context.Context, res SummaryResult) error
	QuerySummaries(ctx context.Context, filter SummaryFilter) ([]SummaryResult, error)
}
