// Package sqlite provides a SQLite implementation of the storage interfaces.
package sqlite

// Schema contains the SQL statements to create the database schema for SQLite.
// All statements are idempotent (IF NOT EXISTS) so the schema can be applied
// on every open.
const Schema = `
-- File states: the scanner's view of files on disk.
-- Written only by the vault scanner/watcher; the engine reads it.
CREATE TABLE IF NOT EXISTS file_states (
    file_path     TEXT PRIMARY KEY,
    content_hash  TEXT NOT NULL,
    last_modified TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_states_last_modified ON file_states(last_modified);

-- Processing cursor: content fingerprint of each note at its last
-- successful entity extraction. A note is due when its file_states hash
-- differs from this one (or no row exists).
CREATE TABLE IF NOT EXISTS semantic_processing_state (
    note_path              TEXT PRIMARY KEY,
    content_hash           TEXT NOT NULL,
    last_entity_extraction TIMESTAMP NOT NULL
);

-- Note entities: structured facts extracted from notes.
-- A note's entity set is replaced wholesale on each reprocess.
CREATE TABLE IF NOT EXISTS note_entities (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    note_path    TEXT NOT NULL,
    entity_type  TEXT NOT NULL,
    entity_value TEXT NOT NULL,
    context      TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'active',
    line_number  INTEGER NOT NULL DEFAULT 0,
    extracted_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_note_entities_note_path ON note_entities(note_path);
CREATE INDEX IF NOT EXISTS idx_note_entities_type_status ON note_entities(entity_type, status);
CREATE INDEX IF NOT EXISTS idx_note_entities_extracted_at ON note_entities(extracted_at);

-- Semantic insights: generated observations with their review lifecycle.
-- JSON columns (source_notes, evidence, suggested_actions, errors) are
-- stored as TEXT.
CREATE TABLE IF NOT EXISTS semantic_insights (
    id                TEXT PRIMARY KEY,
    insight_type      TEXT NOT NULL,
    title             TEXT NOT NULL,
    summary           TEXT NOT NULL DEFAULT '',
    source_notes      TEXT NOT NULL DEFAULT '[]',
    evidence          TEXT NOT NULL DEFAULT '{}',
    confidence        REAL NOT NULL DEFAULT 0,
    priority          INTEGER NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'new',
    suggested_actions TEXT NOT NULL DEFAULT '[]',
    dedup_key         TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMP NOT NULL,
    viewed_at         TIMESTAMP
);

-- Dedup guard lookups: live insight by (type, key).
CREATE INDEX IF NOT EXISTS idx_semantic_insights_type_dedup ON semantic_insights(insight_type, dedup_key);
CREATE INDEX IF NOT EXISTS idx_semantic_insights_status ON semantic_insights(status);
CREATE INDEX IF NOT EXISTS idx_semantic_insights_created_at ON semantic_insights(created_at);

-- Scheduler runs: one audit row per pipeline run, created at start and
-- finalized exactly once.
CREATE TABLE IF NOT EXISTS insight_scheduler_runs (
    id                 TEXT PRIMARY KEY,
    started_at         TIMESTAMP NOT NULL,
    completed_at       TIMESTAMP,
    runtime_seconds    REAL NOT NULL DEFAULT 0,
    notes_processed    INTEGER NOT NULL DEFAULT 0,
    entities_extracted INTEGER NOT NULL DEFAULT 0,
    insights_generated INTEGER NOT NULL DEFAULT 0,
    errors             TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_insight_scheduler_runs_started_at ON insight_scheduler_runs(started_at);

-- Working context config: single-row table persisting the context window
-- across restarts.
CREATE TABLE IF NOT EXISTS working_context_config (
    id                  INTEGER PRIMARY KEY CHECK (id = 1),
    context_window_days INTEGER NOT NULL DEFAULT 7,
    updated_at          TIMESTAMP NOT NULL
);
`
