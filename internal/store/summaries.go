package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"briefdesk/internal/logging"
	"briefdesk/internal/types"
)

// InsertSummary persists one summarization result.
func (s *LocalStore) InsertSummary(ctx context.Context, res types.SummaryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actionItems, err := json.Marshal(res.ActionItems)
	if err != nil {
		return &types.StorageError{Op: "insert_summary", Err: err}
	}
	messages, err := json.Marshal(res.SuggestedMessages)
	if err != nil {
		return &types.StorageError{Op: "insert_summary", Err: err}
	}

	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO summaries (id, source, summary, action_items, suggested_messages, parse_degraded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.Source, res.Summary, string(actionItems), string(messages), boolToInt(res.ParseDegraded), res.CreatedAt)
	if err != nil {
		return &types.StorageError{Op: "insert_summary", Err: err}
	}

	logging.StoreDebug("InsertSummary id=%s source=%s degraded=%v", res.ID, res.Source, res.ParseDegraded)
	return nil
}

// QuerySummaries returns summaries matching the filter, most recent first.
func (s *LocalStore) QuerySummaries(ctx context.Context, filter types.SummaryFilter) ([]types.SummaryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, source, summary, action_items, suggested_messages, parse_degraded, created_at FROM summaries`
	var conds []string
	var args []interface{}

	if filter.ID != "" {
		conds = append(conds, "id = ?")
		args = append(args, filter.ID)
	}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, filter.Source)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.StorageError{Op: "query_summaries", Err: err}
	}
	defer rows.Close()

	var results []types.SummaryResult
	for rows.Next() {
		var res types.SummaryResult
		var actionItems, messages string
		var degraded int
		if err := rows.Scan(&res.ID, &res.Source, &res.Summary, &actionItems, &messages, &degraded, &res.CreatedAt); err != nil {
			return nil, &types.StorageError{Op: "query_summaries", Err: err}
		}
		res.ParseDegraded = degraded != 0
		if err := json.Unmarshal([]byte(actionItems), &res.ActionItems); err != nil {
			logging.Get(logging.CategoryStore).Warn("unparseable action items for summary %s: %v", res.ID, err)
		}
		if err := json.Unmarshal([]byte(messages), &res.SuggestedMessages); err != nil {
			logging.Get(logging.CategoryStore).Warn("unparseable messages for summary %s: %v", res.ID, err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "query_summaries", Err: err}
	}
	return results, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
