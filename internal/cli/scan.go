package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/vault"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the vault and update file states",
	Long: `Scan walks the vault, hashes every markdown file and records which
ones changed since the last scan. It does not run the processing
pipeline; changed notes become due for the next run.`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	scanner, err := vault.NewScanner(cfg.Vault.Path, store)
	if err != nil {
		return err
	}

	result, err := scanner.ScanAll(context.Background())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Scanned %d files (%d updated, %d removed) in %s\n",
		result.Scanned, result.Updated, result.Removed, result.Duration.Round(time.Millisecond))
	return nil
}
