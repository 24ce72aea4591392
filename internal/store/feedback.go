package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"briefdesk/internal/logging"
	"briefdesk/internal/types"
)

// InsertFeedback persists one immutable feedback record.
func (s *LocalStore) InsertFeedback(ctx context.Context, rec types.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, summary_id, verdict, comment, edited_body, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SummaryID, string(rec.Verdict), rec.Comment, rec.EditedBody, rec.UserID, rec.CreatedAt)
	if err != nil {
		return &types.StorageError{Op: "insert_feedback", Err: err}
	}

	logging.StoreDebug("InsertFeedback id=%s summary=%s verdict=%s", rec.ID, rec.SummaryID, rec.Verdict)
	return nil
}

// QueryFeedback returns feedback records matching the filter, most
// recent first.
func (s *LocalStore) QueryFeedback(ctx context.Context, filter types.FeedbackFilter) ([]types.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, summary_id, verdict, comment, edited_body, user_id, created_at FROM feedback`
	var conds []string
	var args []interface{}

	if filter.SummaryID != "" {
		conds = append(conds, "summary_id = ?")
		args = append(args, filter.SummaryID)
	}
	if filter.Verdict != "" {
		conds = append(conds, "verdict = ?")
		args = append(args, string(filter.Verdict))
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
		return nil, &types.StorageError{Op: "query_feedback", Err: err}
	}
	defer rows.Close()

	var records []types.FeedbackRecord
	for rows.Next() {
		var rec types.FeedbackRecord
		var verdict string
		if err := rows.Scan(&rec.ID, &rec.SummaryID, &verdict, &rec.Comment, &rec.EditedBody, &rec.UserID, &rec.CreatedAt); err != nil {
			return nil, &types.StorageError{Op: "query_feedback", Err: err}
		}
		rec.Verdict = types.Verdict(verdict)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "query_feedback", Err: err}
	}
	return records, nil
}

// InsertEditAnalysis persists a derived edit analysis. Append-only.
func (s *LocalStore) InsertEditAnalysis(ctx context.Context, ea types.EditAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ea.CreatedAt.IsZero() {
		ea.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edit_analyses (id, feedback_id, original_length, edited_length, length_delta_pct, tone_shift, style_shift, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ea.ID, ea.FeedbackID, ea.OriginalLength, ea.EditedLength, ea.LengthDeltaPct, ea.ToneShift, ea.StyleShift, ea.CreatedAt)
	if err != nil {
		return &types.StorageError{Op: "insert_edit_analysis", Err: err}
	}
	return nil
}

// RecentEditAnalyses returns the newest analyses up to limit.
func (s *LocalStore) RecentEditAnalyses(ctx context.Context, limit int) ([]types.EditAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feedback_id, original_length, edited_length, length_delta_pct, tone_shift, style_shift, created_at
		FROM edit_analyses ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &types.StorageError{Op: "recent_edit_analyses", Err: err}
	}
	defer rows.Close()

	var analyses []types.EditAnalysis
	for rows.Next() {
		var ea types.EditAnalysis
		if err := rows.Scan(&ea.ID, &ea.FeedbackID, &ea.OriginalLength, &ea.EditedLength, &ea.LengthDeltaPct, &ea.ToneShift, &ea.StyleShift, &ea.CreatedAt); err != nil {
			return nil, &types.StorageError{Op: "recent_edit_analyses", Err: err}
		}
		analyses = append(analyses, ea)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "recent_edit_analyses", Err: err}
	}
	return analyses, nil
}

// InsertRejectionContext records an analytics note about a rejection.
// Callers treat a missing relation here as non-fatal (optional table).
func (s *LocalStore) InsertRejectionContext(ctx context.Context, summaryID, source string, recentRejections int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rejection_contexts (summary_id, source, recent_rejections, created_at)
		VALUES (?, ?, ?, ?)`,
		summaryID, source, recentRejections, time.Now().UTC())
	if err != nil {
		return &types.StorageError{Op: "insert_rejection_context", Err: err}
	}
	return nil
}
