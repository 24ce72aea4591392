// Package store implements briefdesk's durable persistence on SQLite.
// It is the collaborator behind the entity cache and the feedback
// learner; every public method may fail with a *types.StorageError.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"briefdesk/internal/logging"
	"briefdesk/internal/types"

	_ "github.com/mattn/go-sqlite3"
)

// LocalStore is the SQLite-backed implementation of types.DurableStore.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s", path)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	store := &LocalStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("LocalStore initialization complete")
	return store, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	entitiesTable := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL DEFAULT 'client',
		name TEXT NOT NULL,
		profile TEXT DEFAULT '{}',
		last_referenced TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(kind, name)
	);
	CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
	`

	feedbackTable := `
	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		summary_id TEXT NOT NULL,
		verdict TEXT NOT NULL,
		comment TEXT DEFAULT '',
		edited_body TEXT DEFAULT '',
		user_id TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_summary ON feedback(summary_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_verdict ON feedback(verdict);
	`

	analysesTable := `
	CREATE TABLE IF NOT EXISTS edit_analyses (
		id TEXT PRIMARY KEY,
		feedback_id TEXT NOT NULL,
		original_length INTEGER NOT NULL,
		edited_length INTEGER NOT NULL,
		length_delta_pct REAL NOT NULL,
		tone_shift TEXT DEFAULT '',
		style_shift TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_feedback ON edit_analyses(feedback_id);
	`

	// Optional analytics table: rejection-context notes for future bias.
	rejectionsTable := `
	CREATE TABLE IF NOT EXISTS rejection_contexts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		summary_id TEXT NOT NULL,
		source TEXT DEFAULT '',
		recent_rejections INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	summariesTable := `
	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		summary TEXT NOT NULL,
		action_items TEXT DEFAULT '[]',
		suggested_messages TEXT DEFAULT '[]',
		parse_degraded INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_source ON summaries(source);
	CREATE INDEX IF NOT EXISTS idx_summaries_created ON summaries(created_at);
	`

	for _, schema := range []string{entitiesTable, feedbackTable, analysesTable, rejectionsTable, summariesTable} {
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// FindEntitiesByNames returns entities of the given kind whose names
// match any of the given names (case-insensitive), in one batched query.
func (s *LocalStore) FindEntitiesByNames(ctx context.Context, kind types.EntityKind, names []string) ([]types.Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := make([]string, len(names))
	args := make([]interface{}, 0, len(names)+1)
	args = append(args, string(kind))
	for i, name := range names {
		placeholders[i] = "?"
		args = append(args, strings.ToLower(name))
	}

	query := fmt.Sprintf(`
		SELECT id, kind, name, profile, last_referenced, created_at, updated_at
		FROM entities
		WHERE kind = ? AND LOWER(name) IN (%s)`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &types.StorageError{Op: "find_entities", Err: err}
	}
	defer rows.Close()

	var entities []types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, &types.StorageError{Op: "find_entities", Err: err}
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "find_entities", Err: err}
	}

	logging.StoreDebug("FindEntitiesByNames kind=%s asked=%d found=%d", kind, len(names), len(entities))
	return entities, nil
}

// UpsertEntity inserts or updates an entity keyed by ID.
func (s *LocalStore) UpsertEntity(ctx context.Context, e types.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := json.Marshal(e.Profile)
	if err != nil {
		return &types.StorageError{Op: "upsert_entity", Err: err}
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, kind, name, profile, last_referenced, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			profile = excluded.profile,
			updated_at = excluded.updated_at`,
		e.ID, string(e.Kind), e.Name, string(profile), nullableTime(e.LastReferenced), e.CreatedAt, now)
	if err != nil {
		return &types.StorageError{Op: "upsert_entity", Err: err}
	}
	return nil
}

// GetEntityById semantics: returns types.ErrNotFound when no row exists.
func (s *LocalStore) GetEntityByID(ctx context.Context, id string) (types.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, name, profile, last_referenced, created_at, updated_at
		FROM entities WHERE id = ?`, id)

	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Entity{}, types.ErrNotFound
	}
	if err != nil {
		return types.Entity{}, &types.StorageError{Op: "get_entity", Err: err}
	}
	return e, nil
}

// TouchEntities bumps last_referenced for the given IDs in one statement.
func (s *LocalStore) TouchEntities(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		"UPDATE entities SET last_referenced = ? WHERE id IN (%s)",
		strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &types.StorageError{Op: "touch_entities", Err: err}
	}
	return nil
}

// rowScanner lets scanEntity work for both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(r rowScanner) (types.Entity, error) {
	var e types.Entity
	var kind, profile string
	var lastRef sql.NullTime
	if err := r.Scan(&e.ID, &kind, &e.Name, &profile, &lastRef, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return types.Entity{}, err
	}
	e.Kind = types.EntityKind(kind)
	if lastRef.Valid {
		e.LastReferenced = lastRef.Time
	}
	if profile != "" {
		if err := json.Unmarshal([]byte(profile), &e.Profile); err != nil {
			// A corrupt profile blob should not make the entity unreadable.
			logging.Get(logging.CategoryStore).Warn("unparseable profile for entity %s: %v", e.ID, err)
			e.Profile = nil
		}
	}
	return e, nil
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
