package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Knuckles92/obby-sub000/internal/storage/sqlite"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

func TestSnapshotCopiesLiveDatabase(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(dir, "obby.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	insight := &types.Insight{
		ID:          "ins-1",
		InsightType: types.InsightActiveTodos,
		Title:       "open todos",
		Summary:     "one thing left",
		Status:      types.InsightNew,
		DedupKey:    "ins-1",
	}
	if err := store.CreateInsight(ctx, insight); err != nil {
		t.Fatalf("failed to seed insight: %v", err)
	}

	backupDir := filepath.Join(dir, "backups")
	result, err := Snapshot(ctx, store.DB(), backupDir)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(result.Path), "obby-backup-") {
		t.Errorf("snapshot name = %s, want obby-backup- prefix", filepath.Base(result.Path))
	}
	if result.Size == 0 {
		t.Error("snapshot size is zero")
	}

	// The copy is a standalone database holding the seeded row.
	copyDB, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", result.Path))
	if err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	defer func() { _ = copyDB.Close() }()

	var count int
	if err := copyDB.QueryRow("SELECT COUNT(*) FROM semantic_insights").Scan(&count); err != nil {
		t.Fatalf("failed to query snapshot: %v", err)
	}
	if count != 1 {
		t.Errorf("snapshot insight count = %d, want 1", count)
	}
}

func TestSnapshotCreatesBackupDir(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := sqlite.New(filepath.Join(dir, "obby.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	backupDir := filepath.Join(dir, "nested", "backups")
	if _, err := Snapshot(ctx, store.DB(), backupDir); err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	if _, err := os.Stat(backupDir); err != nil {
		t.Errorf("backup directory was not created: %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	files := []struct {
		name string
		time time.Time
	}{
		{"obby-backup-a.db", now.Add(-2 * time.Hour)},
		{"obby-backup-b.db", now},
		{"obby-backup-c.db", now.Add(-1 * time.Hour)},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte("snapshot"), 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		if err := os.Chtimes(path, f.time, f.time); err != nil {
			t.Fatalf("failed to set file time: %v", err)
		}
	}

	snapshots, err := List(dir)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("len(snapshots) = %d, want 3", len(snapshots))
	}
	if filepath.Base(snapshots[0].Path) != "obby-backup-b.db" {
		t.Errorf("newest snapshot = %s, want obby-backup-b.db", filepath.Base(snapshots[0].Path))
	}
	if filepath.Base(snapshots[2].Path) != "obby-backup-a.db" {
		t.Errorf("oldest snapshot = %s, want obby-backup-a.db", filepath.Base(snapshots[2].Path))
	}
}

func TestListIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "inner.db"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create nested file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "obby-backup-1.db"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to create snapshot file: %v", err)
	}

	snapshots, err := List(dir)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Errorf("len(snapshots) = %d, want 1", len(snapshots))
	}
}

func TestListMissingDirectory(t *testing.T) {
	if _, err := List(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("obby-backup-%d.db", i))
		if err := os.WriteFile(path, []byte("snapshot"), 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		stamp := now.Add(-time.Duration(i) * time.Hour)
		if err := os.Chtimes(path, stamp, stamp); err != nil {
			t.Fatalf("failed to set file time: %v", err)
		}
	}

	removed, err := Prune(dir, 2)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	remaining, err := List(dir)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("len(remaining) = %d, want 2", len(remaining))
	}
	// The two newest survive.
	if filepath.Base(remaining[0].Path) != "obby-backup-0.db" || filepath.Base(remaining[1].Path) != "obby-backup-1.db" {
		t.Errorf("remaining = [%s, %s], want the two newest",
			filepath.Base(remaining[0].Path), filepath.Base(remaining[1].Path))
	}
}

func TestPruneUnderLimit(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		path := filepath.Join(dir, fmt.Sprintf("obby-backup-%d.db", i))
		if err := os.WriteFile(path, []byte("snapshot"), 0o644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	removed, err := Prune(dir, 5)
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
