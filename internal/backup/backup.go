// Package backup creates point-in-time snapshots of the sqlite database
// and prunes old ones by count.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Result describes one completed snapshot.
type Result struct {
	Path     string
	Size     int64
	Duration time.Duration
}

// Snapshot writes a consistent copy of the live database into dir, named
// obby-backup-<timestamp>.db. It uses VACUUM INTO, which produces a valid
// point-in-time copy even in WAL mode, and verifies the copy with an
// integrity check. A copy that fails verification is removed so retention
// never counts it.
func Snapshot(ctx context.Context, db *sql.DB, dir string) (*Result, error) {
	start := time.Now()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Microsecond precision keeps names unique across rapid invocations.
	stamp := time.Now().Format("20060102-150405.000000")
	path := filepath.Join(dir, fmt.Sprintf("obby-backup-%s.db", stamp))

	if _, err := db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", path)); err != nil {
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	if err := verify(ctx, path); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("snapshot verification failed: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	return &Result{
		Path:     path,
		Size:     info.Size(),
		Duration: time.Since(start),
	}, nil
}

// verify opens the snapshot read-only and runs sqlite's integrity check.
func verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
