package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// markdownFilter restricts file_states rows to markdown notes.
const markdownFilter = "(file_path LIKE '%.md' OR file_path LIKE '%.markdown')"

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// New creates a new SQLite store with WAL self-healing.
// If the initial open fails due to stale WAL files (left behind by a crashed
// process), it verifies no other process holds them and retries once after
// removing the stale -shm/-wal files.
func New(dsn string) (*Store, error) {
	store, err := open(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || dbPath == ":memory:" {
		return nil, err
	}

	if !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := open(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

// open opens a SQLite database, configures WAL mode, and creates the schema.
func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Using a single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Connections live for the lifetime of the store.

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout so that callers wait instead of getting an immediate
	// SQLITE_BUSY error when the connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying database connection.
// Used by the backup command for VACUUM INTO.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- FileStateStore ---

// UpsertFileState creates or updates the tracking row for one file.
func (s *Store) UpsertFileState(ctx context.Context, state *types.FileState) error {
	if state == nil || state.Path == "" {
		return fmt.Errorf("%w: file path is required", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO file_states (file_path, content_hash, last_modified)
		VALUES (?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			last_modified = excluded.last_modified
	`

	if _, err := s.db.ExecContext(ctx, query, state.Path, state.ContentHash, state.LastModified.UTC()); err != nil {
		return fmt.Errorf("failed to upsert file state: %w", err)
	}
	return nil
}

// DeleteFileState removes the tracking row for a file gone from disk.
func (s *Store) DeleteFileState(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: file path is required", storage.ErrInvalidInput)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM file_states WHERE file_path = ?", path); err != nil {
		return fmt.Errorf("failed to delete file state: %w", err)
	}
	return nil
}

// ListFileStates returns all tracked files.
func (s *Store) ListFileStates(ctx context.Context) ([]*types.FileState, error) {
	query := "SELECT file_path, content_hash, last_modified FROM file_states ORDER BY file_path"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list file states: %w", err)
	}
	defer rows.Close()

	return scanFileStates(rows)
}

// ListNotesModifiedSince returns tracked markdown notes modified at or after
// the given time, newest first.
func (s *Store) ListNotesModifiedSince(ctx context.Context, since time.Time, limit int) ([]*types.FileState, error) {
	query := `
		SELECT file_path, content_hash, last_modified
		FROM file_states
		WHERE ` + markdownFilter + ` AND last_modified >= ?
		ORDER BY last_modified DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list modified notes: %w", err)
	}
	defer rows.Close()

	return scanFileStates(rows)
}

func scanFileStates(rows *sql.Rows) ([]*types.FileState, error) {
	var states []*types.FileState
	for rows.Next() {
		var fs types.FileState
		if err := rows.Scan(&fs.Path, &fs.ContentHash, &fs.LastModified); err != nil {
			return nil, fmt.Errorf("failed to scan file state: %w", err)
		}
		states = append(states, &fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file states: %w", err)
	}
	return states, nil
}

// --- ProcessingStateStore ---

// dueNotesCondition selects markdown notes whose current content hash differs
// from the processing cursor, or that have never been processed.
const dueNotesCondition = `
	FROM file_states f
	LEFT JOIN semantic_processing_state s ON s.note_path = f.file_path
	WHERE (f.file_path LIKE '%.md' OR f.file_path LIKE '%.markdown')
	  AND (s.note_path IS NULL OR s.content_hash != f.content_hash)
`

// ListNotesDue returns notes due for processing, most recently modified first.
func (s *Store) ListNotesDue(ctx context.Context, limit int) ([]*types.FileState, error) {
	query := "SELECT f.file_path, f.content_hash, f.last_modified" + dueNotesCondition +
		"ORDER BY f.last_modified DESC LIMIT ?"

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notes: %w", err)
	}
	defer rows.Close()

	return scanFileStates(rows)
}

// CountNotesDue returns the size of the current due set.
func (s *Store) CountNotesDue(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+dueNotesCondition).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count due notes: %w", err)
	}
	return count, nil
}

// UpsertProcessingState records a successful extraction for a note.
func (s *Store) UpsertProcessingState(ctx context.Context, state *types.ProcessingState) error {
	if state == nil || state.NotePath == "" {
		return fmt.Errorf("%w: note path is required", storage.ErrInvalidInput)
	}

	query := `
		INSERT INTO semantic_processing_state (note_path, content_hash, last_entity_extraction)
		VALUES (?, ?, ?)
		ON CONFLICT(note_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			last_entity_extraction = excluded.last_entity_extraction
	`

	if _, err := s.db.ExecContext(ctx, query, state.NotePath, state.ContentHash, state.LastEntityExtraction.UTC()); err != nil {
		return fmt.Errorf("failed to upsert processing state: %w", err)
	}
	return nil
}

// --- EntityStore ---

// ReplaceEntities deletes all entities for the note and inserts the given set
// in a single transaction.
func (s *Store) ReplaceEntities(ctx context.Context, notePath string, entities []*types.Entity) error {
	if notePath == "" {
		return fmt.Errorf("%w: note path is required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM note_entities WHERE note_path = ?", notePath); err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}

	insert := `
		INSERT INTO note_entities (note_path, entity_type, entity_value, context, status, line_number, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, e := range entities {
		if e == nil || e.EntityValue == "" {
			continue
		}
		status := e.Status
		if status == "" {
			status = types.EntityActive
		}
		extractedAt := e.ExtractedAt
		if extractedAt.IsZero() {
			extractedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, insert,
			notePath, string(e.EntityType), e.EntityValue, e.Context,
			string(status), e.LineNumber, extractedAt.UTC(),
		); err != nil {
			return fmt.Errorf("failed to insert entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entity replacement: %w", err)
	}
	return nil
}

const entityColumns = "id, note_path, entity_type, entity_value, context, status, line_number, extracted_at"

// ListEntitiesByTypes returns all entities of the given types.
func (s *Store) ListEntitiesByTypes(ctx context.Context, entityTypes []types.EntityType) ([]*types.Entity, error) {
	if len(entityTypes) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(entityTypes)), ",")
	args := make([]interface{}, 0, len(entityTypes))
	for _, t := range entityTypes {
		args = append(args, string(t))
	}

	query := "SELECT " + entityColumns + " FROM note_entities WHERE entity_type IN (" + placeholders + ") ORDER BY extracted_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities by type: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// ListEntitiesForNotes returns all entities belonging to the given notes.
func (s *Store) ListEntitiesForNotes(ctx context.Context, notePaths []string) ([]*types.Entity, error) {
	if len(notePaths) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(notePaths)), ",")
	args := make([]interface{}, 0, len(notePaths))
	for _, p := range notePaths {
		args = append(args, p)
	}

	query := "SELECT " + entityColumns + " FROM note_entities WHERE note_path IN (" + placeholders + ") ORDER BY note_path, line_number"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities for notes: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// ListActiveTodos returns active todo entities, newest extraction first.
func (s *Store) ListActiveTodos(ctx context.Context, limit int) ([]*types.Entity, error) {
	query := "SELECT " + entityColumns + ` FROM note_entities
		WHERE entity_type = ? AND status = ?
		ORDER BY extracted_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(types.EntityTodo), string(types.EntityActive), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active todos: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// ListStaleActiveTodos returns active todo entities extracted before
// olderThan, oldest first.
func (s *Store) ListStaleActiveTodos(ctx context.Context, olderThan time.Time, limit int) ([]*types.Entity, error) {
	query := "SELECT " + entityColumns + ` FROM note_entities
		WHERE entity_type = ? AND status = ? AND extracted_at < ?
		ORDER BY extracted_at ASC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(types.EntityTodo), string(types.EntityActive), olderThan.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale todos: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// AggregateTodos returns whole-vault todo counts.
func (s *Store) AggregateTodos(ctx context.Context) (*storage.TodoAggregate, error) {
	query := `
		SELECT
			COUNT(CASE WHEN status = 'active' THEN 1 END),
			COUNT(CASE WHEN status = 'completed' THEN 1 END),
			COUNT(DISTINCT note_path)
		FROM note_entities
		WHERE entity_type = 'todo'
	`

	var agg storage.TodoAggregate
	if err := s.db.QueryRowContext(ctx, query).Scan(&agg.ActiveCount, &agg.CompletedCount, &agg.NoteCount); err != nil {
		return nil, fmt.Errorf("failed to aggregate todos: %w", err)
	}
	return &agg, nil
}

// CountEntitiesByType returns entity counts grouped by type.
func (s *Store) CountEntitiesByType(ctx context.Context) (map[types.EntityType]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT entity_type, COUNT(*) FROM note_entities GROUP BY entity_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.EntityType]int)
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan entity count: %w", err)
		}
		counts[types.EntityType(entityType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entity counts: %w", err)
	}
	return counts, nil
}

// CompleteTodoEntity marks matching active todo entities as completed.
func (s *Store) CompleteTodoEntity(ctx context.Context, notePath, todoText string) (int, error) {
	if notePath == "" || todoText == "" {
		return 0, fmt.Errorf("%w: note path and todo text are required", storage.ErrInvalidInput)
	}

	query := `
		UPDATE note_entities SET status = ?
		WHERE note_path = ? AND entity_type = ? AND entity_value = ? AND status = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(types.EntityCompleted), notePath, string(types.EntityTodo), todoText, string(types.EntityActive))
	if err != nil {
		return 0, fmt.Errorf("failed to complete todo entity: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(n), nil
}

func scanEntities(rows *sql.Rows) ([]*types.Entity, error) {
	var entities []*types.Entity
	for rows.Next() {
		var e types.Entity
		var entityType, status string
		if err := rows.Scan(&e.ID, &e.NotePath, &entityType, &e.EntityValue, &e.Context, &status, &e.LineNumber, &e.ExtractedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.EntityType = types.EntityType(entityType)
		e.Status = types.EntityStatus(status)
		entities = append(entities, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}
	return entities, nil
}

// --- InsightStore ---

const insightColumns = "id, insight_type, title, summary, source_notes, evidence, confidence, priority, status, suggested_actions, dedup_key, created_at, viewed_at"

// liveStatusCondition restricts insight queries to non-terminal rows: a
// dismissed or actioned insight never blocks a rule from creating a fresh one.
const liveStatusCondition = "status NOT IN ('dismissed', 'actioned')"

// CreateInsight persists a new insight.
func (s *Store) CreateInsight(ctx context.Context, insight *types.Insight) error {
	if insight == nil {
		return storage.ErrInvalidInput
	}
	if insight.ID == "" {
		return fmt.Errorf("%w: insight ID is required", storage.ErrInvalidInput)
	}
	if !types.IsValidInsightType(insight.InsightType) {
		return fmt.Errorf("%w: unknown insight type %q", storage.ErrInvalidInput, insight.InsightType)
	}
	if insight.Confidence < 0 || insight.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be within [0,1]", storage.ErrInvalidInput)
	}
	if insight.Priority < 0 {
		return fmt.Errorf("%w: priority must be non-negative", storage.ErrInvalidInput)
	}

	if insight.Status == "" {
		insight.Status = types.InsightNew
	}
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now()
	}

	sourceNotesJSON, actionsJSON, evidence, err := marshalInsightFields(insight)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO semantic_insights (` + insightColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		insight.ID,
		string(insight.InsightType),
		insight.Title,
		insight.Summary,
		sourceNotesJSON,
		evidence,
		insight.Confidence,
		insight.Priority,
		string(insight.Status),
		actionsJSON,
		insight.DedupKey,
		insight.CreatedAt.UTC(),
		nullableTime(insight.ViewedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create insight: %w", err)
	}
	return nil
}

// GetInsight retrieves an insight by ID.
func (s *Store) GetInsight(ctx context.Context, id string) (*types.Insight, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: insight ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+insightColumns+" FROM semantic_insights WHERE id = ?", id)
	insight, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get insight: %w", err)
	}
	return insight, nil
}

// ListInsights retrieves insights ordered by status rank (pinned, new,
// viewed, rest), then priority descending, then created_at descending.
func (s *Store) ListInsights(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Insight], error) {
	opts.Normalize()

	var conditions []string
	var args []interface{}

	if opts.Type != "" {
		conditions = append(conditions, "insight_type = ?")
		args = append(args, string(opts.Type))
	}
	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(opts.Status))
	}

	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := "SELECT " + insightColumns + " FROM semantic_insights" + whereClause + `
		ORDER BY
			CASE status WHEN 'pinned' THEN 0 WHEN 'new' THEN 1 WHEN 'viewed' THEN 2 ELSE 3 END,
			priority DESC,
			created_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	var insights []types.Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		insights = append(insights, *insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating insights: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM semantic_insights" + whereClause
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count insights: %w", err)
	}

	return &storage.PaginatedResult[types.Insight]{
		Items:   insights,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(insights) < total,
	}, nil
}

// UpdateInsightStatus sets the status, and viewed_at when non-nil.
func (s *Store) UpdateInsightStatus(ctx context.Context, id string, status types.InsightStatus, viewedAt *time.Time) error {
	if id == "" {
		return fmt.Errorf("%w: insight ID is required", storage.ErrInvalidInput)
	}
	if !types.IsValidInsightStatus(status) {
		return fmt.Errorf("%w: unknown insight status %q", storage.ErrInvalidInput, status)
	}

	var result sql.Result
	var err error
	if viewedAt != nil {
		result, err = s.db.ExecContext(ctx,
			"UPDATE semantic_insights SET status = ?, viewed_at = ? WHERE id = ?",
			string(status), viewedAt.UTC(), id)
	} else {
		result, err = s.db.ExecContext(ctx,
			"UPDATE semantic_insights SET status = ? WHERE id = ?",
			string(status), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update insight status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdateInsightContent rewrites the mutable content fields of an existing
// insight without touching its review status.
func (s *Store) UpdateInsightContent(ctx context.Context, insight *types.Insight) error {
	if insight == nil || insight.ID == "" {
		return fmt.Errorf("%w: insight ID is required", storage.ErrInvalidInput)
	}

	sourceNotesJSON, actionsJSON, evidence, err := marshalInsightFields(insight)
	if err != nil {
		return err
	}

	query := `
		UPDATE semantic_insights SET
			title = ?, summary = ?, source_notes = ?, evidence = ?,
			confidence = ?, priority = ?, suggested_actions = ?, dedup_key = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		insight.Title, insight.Summary, sourceNotesJSON, evidence,
		insight.Confidence, insight.Priority, actionsJSON, insight.DedupKey,
		insight.ID)
	if err != nil {
		return fmt.Errorf("failed to update insight content: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindLiveByDedupKey returns the first live insight of the given type
// carrying the dedup key.
func (s *Store) FindLiveByDedupKey(ctx context.Context, insightType types.InsightType, dedupKey string) (*types.Insight, error) {
	if dedupKey == "" {
		return nil, fmt.Errorf("%w: dedup key is required", storage.ErrInvalidInput)
	}

	query := "SELECT " + insightColumns + ` FROM semantic_insights
		WHERE insight_type = ? AND dedup_key = ? AND ` + liveStatusCondition + `
		ORDER BY created_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, string(insightType), dedupKey)
	insight, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find insight by dedup key: %w", err)
	}
	return insight, nil
}

// MatchLiveSubstring reports whether any live insight of the given type
// contains needle as a case-insensitive substring of the whitelisted field.
// Needles are normalized lowercase; stored text is not.
func (s *Store) MatchLiveSubstring(ctx context.Context, insightType types.InsightType, field storage.DedupScanField, needle string) (bool, error) {
	if !storage.IsValidDedupScanField(field) {
		return false, fmt.Errorf("%w: unknown scan field %q", storage.ErrInvalidInput, field)
	}
	if needle == "" {
		return false, fmt.Errorf("%w: needle is required", storage.ErrInvalidInput)
	}

	// Field name comes from the whitelist above, never from the caller's data.
	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM semantic_insights WHERE insight_type = ? AND %s AND instr(lower(%s), lower(?)) > 0",
		liveStatusCondition, string(field))

	var count int
	if err := s.db.QueryRowContext(ctx, query, string(insightType), needle).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to scan for substring match: %w", err)
	}
	return count > 0, nil
}

// DeleteExpiredDismissed hard-deletes dismissed insights created before
// olderThan. This is the only irreversible deletion path.
func (s *Store) DeleteExpiredDismissed(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM semantic_insights WHERE status = ? AND created_at < ?",
		string(types.InsightDismissed), olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired insights: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return int(n), nil
}

// CountInsightsByType returns insight counts grouped by type.
func (s *Store) CountInsightsByType(ctx context.Context) (map[types.InsightType]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT insight_type, COUNT(*) FROM semantic_insights GROUP BY insight_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count insights by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.InsightType]int)
	for rows.Next() {
		var insightType string
		var count int
		if err := rows.Scan(&insightType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan insight count: %w", err)
		}
		counts[types.InsightType(insightType)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating insight counts: %w", err)
	}
	return counts, nil
}

// CountInsightsByStatus returns insight counts grouped by status.
func (s *Store) CountInsightsByStatus(ctx context.Context) (map[types.InsightStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM semantic_insights GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count insights by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.InsightStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[types.InsightStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

// marshalInsightFields serializes the JSON columns of an insight. Empty
// slices and missing evidence fall back to their schema defaults.
func marshalInsightFields(insight *types.Insight) (sourceNotes, actions, evidence string, err error) {
	sourceNotesJSON, err := json.Marshal(insight.SourceNotes)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal source notes: %w", err)
	}
	if insight.SourceNotes == nil {
		sourceNotesJSON = []byte("[]")
	}

	actionsJSON, err := json.Marshal(insight.SuggestedActions)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal suggested actions: %w", err)
	}
	if insight.SuggestedActions == nil {
		actionsJSON = []byte("[]")
	}

	evidenceJSON := string(insight.Evidence)
	if evidenceJSON == "" {
		evidenceJSON = "{}"
	}

	return string(sourceNotesJSON), string(actionsJSON), evidenceJSON, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInsight(row rowScanner) (*types.Insight, error) {
	var insight types.Insight
	var insightType, status string
	var sourceNotesJSON, evidenceJSON, actionsJSON string
	var viewedAt sql.NullTime

	err := row.Scan(
		&insight.ID,
		&insightType,
		&insight.Title,
		&insight.Summary,
		&sourceNotesJSON,
		&evidenceJSON,
		&insight.Confidence,
		&insight.Priority,
		&status,
		&actionsJSON,
		&insight.DedupKey,
		&insight.CreatedAt,
		&viewedAt,
	)
	if err != nil {
		return nil, err
	}

	insight.InsightType = types.InsightType(insightType)
	insight.Status = types.InsightStatus(status)

	if sourceNotesJSON != "" && sourceNotesJSON != "[]" {
		if err := json.Unmarshal([]byte(sourceNotesJSON), &insight.SourceNotes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source notes: %w", err)
		}
	}
	if actionsJSON != "" && actionsJSON != "[]" {
		if err := json.Unmarshal([]byte(actionsJSON), &insight.SuggestedActions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal suggested actions: %w", err)
		}
	}
	if evidenceJSON != "" && evidenceJSON != "{}" {
		insight.Evidence = json.RawMessage(evidenceJSON)
	}
	if viewedAt.Valid {
		t := viewedAt.Time
		insight.ViewedAt = &t
	}

	return &insight, nil
}

// --- RunStore ---

// CreateRun inserts the run row at run start.
func (s *Store) CreateRun(ctx context.Context, run *types.SchedulerRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run ID is required", storage.ErrInvalidInput)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
		INSERT INTO insight_scheduler_runs (id, started_at, errors)
		VALUES (?, ?, '[]')
	`

	if _, err := s.db.ExecContext(ctx, query, run.ID, run.StartedAt.UTC()); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinalizeRun writes completion time, runtime, counts and errors.
func (s *Store) FinalizeRun(ctx context.Context, run *types.SchedulerRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run ID is required", storage.ErrInvalidInput)
	}

	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal run errors: %w", err)
	}
	if run.Errors == nil {
		errorsJSON = []byte("[]")
	}

	query := `
		UPDATE insight_scheduler_runs SET
			completed_at = ?, runtime_seconds = ?,
			notes_processed = ?, entities_extracted = ?, insights_generated = ?,
			errors = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		nullableTime(run.CompletedAt), run.RuntimeSeconds,
		run.NotesProcessed, run.EntitiesExtracted, run.InsightsGenerated,
		string(errorsJSON), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const runColumns = "id, started_at, completed_at, runtime_seconds, notes_processed, entities_extracted, insights_generated, errors"

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*types.SchedulerRun, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: run ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM insight_scheduler_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*types.SchedulerRun, error) {
	query := "SELECT " + runColumns + " FROM insight_scheduler_runs ORDER BY started_at DESC LIMIT ?"

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*types.SchedulerRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(row rowScanner) (*types.SchedulerRun, error) {
	var run types.SchedulerRun
	var completedAt sql.NullTime
	var errorsJSON string

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&completedAt,
		&run.RuntimeSeconds,
		&run.NotesProcessed,
		&run.EntitiesExtracted,
		&run.InsightsGenerated,
		&errorsJSON,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	if errorsJSON != "" && errorsJSON != "[]" {
		if err := json.Unmarshal([]byte(errorsJSON), &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run errors: %w", err)
		}
	}

	return &run, nil
}

// --- ContextConfigStore ---

// GetContextWindowDays returns the persisted window, or the default when
// nothing has been stored yet.
func (s *Store) GetContextWindowDays(ctx context.Context) (int, error) {
	var days int
	err := s.db.QueryRowContext(ctx, "SELECT context_window_days FROM working_context_config WHERE id = 1").Scan(&days)
	if err == sql.ErrNoRows {
		return types.DefaultContextWindowDays, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get context window: %w", err)
	}
	return days, nil
}

// SetContextWindowDays persists the window.
func (s *Store) SetContextWindowDays(ctx context.Context, days int) error {
	if !types.IsValidContextWindowDays(days) {
		return fmt.Errorf("%w: context window must be one of %v days", storage.ErrInvalidInput, types.ValidContextWindowDays)
	}

	query := `
		INSERT INTO working_context_config (id, context_window_days, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			context_window_days = excluded.context_window_days,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, days, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set context window: %w", err)
	}
	return nil
}

// --- helpers ---

// nullableTime converts a time pointer to sql.NullTime.
func nullableTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// dbPathFromDSN extracts the filesystem path from a SQLite DSN.
// Handles bare paths ("/path/to/db.sqlite") and file: URIs ("file:/path/to/db.sqlite?mode=rwc").
// Returns empty string for in-memory databases or unparseable DSNs.
func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" || path == "" {
			return ""
		}
		return path
	}

	return dsn
}

// isRecoverableWALError returns true if the error matches patterns caused by
// stale WAL files left behind after a crash (SIGKILL, OOM, etc.).
func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") ||
		strings.Contains(msg, "database is locked")
}

// isWALStale checks whether -shm/-wal files exist for the given database path
// AND no other process currently holds them open (via lsof).
// Returns false if lsof is unavailable (conservative: no deletion).
func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"

	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}

	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		// lsof not available (e.g. Alpine images); do not risk deletion.
		return false
	}

	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		// lsof exits 1 when no process holds the files, so they are stale.
		return true
	}

	return strings.TrimSpace(string(output)) == ""
}

// removeStaleWAL removes -shm and -wal files for the given database path.
func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

// fileExists returns true if the path exists on disk.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
