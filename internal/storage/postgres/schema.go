// Package postgres provides a PostgreSQL implementation of the storage interfaces.
package postgres

// Schema contains the SQL statements to create the database schema for
// PostgreSQL. It mirrors the SQLite schema with native types (TIMESTAMPTZ,
// JSONB); all statements are idempotent.
const Schema = `
-- File states: the scanner's view of files on disk.
CREATE TABLE IF NOT EXISTS file_states (
    file_path     TEXT PRIMARY KEY,
    content_hash  TEXT NOT NULL,
    last_modified TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_states_last_modified ON file_states(last_modified);

-- Processing cursor: content fingerprint of each note at its last
-- successful entity extraction.
CREATE TABLE IF NOT EXISTS semantic_processing_state (
    note_path              TEXT PRIMARY KEY,
    content_hash           TEXT NOT NULL,
    last_entity_extraction TIMESTAMPTZ NOT NULL
);

-- Note entities: structured facts extracted from notes.
CREATE TABLE IF NOT EXISTS note_entities (
    id           BIGSERIAL PRIMARY KEY,
    note_path    TEXT NOT NULL,
    entity_type  TEXT NOT NULL,
    entity_value TEXT NOT NULL,
    context      TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT 'active',
    line_number  INTEGER NOT NULL DEFAULT 0,
    extracted_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_note_entities_note_path ON note_entities(note_path);
CREATE INDEX IF NOT EXISTS idx_note_entities_type_status ON note_entities(entity_type, status);
CREATE INDEX IF NOT EXISTS idx_note_entities_extracted_at ON note_entities(extracted_at);

-- Semantic insights: generated observations with their review lifecycle.
CREATE TABLE IF NOT EXISTS semantic_insights (
    id                TEXT PRIMARY KEY,
    insight_type      TEXT NOT NULL,
    title             TEXT NOT NULL,
    summary           TEXT NOT NULL DEFAULT '',
    source_notes      JSONB NOT NULL DEFAULT '[]',
    evidence          JSONB NOT NULL DEFAULT '{}',
    confidence        REAL NOT NULL DEFAULT 0,
    priority          INTEGER NOT NULL DEFAULT 0,
    status            TEXT NOT NULL DEFAULT 'new',
    suggested_actions JSONB NOT NULL DEFAULT '[]',
    dedup_key         TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL,
    viewed_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_semantic_insights_type_dedup ON semantic_insights(insight_type, dedup_key);
CREATE INDEX IF NOT EXISTS idx_semantic_insights_status ON semantic_insights(status);
CREATE INDEX IF NOT EXISTS idx_semantic_insights_created_at ON semantic_insights(created_at);

-- Scheduler runs: one audit row per pipeline run.
CREATE TABLE IF NOT EXISTS insight_scheduler_runs (
    id                 TEXT PRIMARY KEY,
    started_at         TIMESTAMPTZ NOT NULL,
    completed_at       TIMESTAMPTZ,
    runtime_seconds    DOUBLE PRECISION NOT NULL DEFAULT 0,
    notes_processed    INTEGER NOT NULL DEFAULT 0,
    entities_extracted INTEGER NOT NULL DEFAULT 0,
    insights_generated INTEGER NOT NULL DEFAULT 0,
    errors             JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_insight_scheduler_runs_started_at ON insight_scheduler_runs(started_at);

-- Working context config: single-row table persisting the context window.
CREATE TABLE IF NOT EXISTS working_context_config (
    id                  INTEGER PRIMARY KEY CHECK (id = 1),
    context_window_days INTEGER NOT NULL DEFAULT 7,
    updated_at          TIMESTAMPTZ NOT NULL
);
`
