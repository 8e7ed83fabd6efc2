package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/backup"
	"github.com/Knuckles92/obby-sub000/internal/storage/sqlite"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the sqlite database",
	Long: `Backup copies the live sqlite database into a timestamped snapshot
file using VACUUM INTO, verifies the copy and prunes snapshots beyond
the configured retention count.

Only the sqlite driver is supported; use pg_dump for postgres.`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	if cfg.Storage.Driver != "sqlite" {
		return fmt.Errorf("backup supports the sqlite driver only (configured: %s)", cfg.Storage.Driver)
	}

	store, err := sqlite.New(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	result, err := backup.Snapshot(ctx, store.DB(), cfg.Backup.Dir)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Printf("Snapshot %s (%d bytes) in %s\n",
		result.Path, result.Size, result.Duration.Round(time.Millisecond))

	removed, err := backup.Prune(cfg.Backup.Dir, cfg.Backup.Keep)
	if err != nil {
		return fmt.Errorf("retention pruning failed: %w", err)
	}
	if removed > 0 {
		fmt.Printf("Pruned %d old snapshots (keeping %d)\n", removed, cfg.Backup.Keep)
	}
	return nil
}
