package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/vault"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan the vault and run the processing pipeline once",
	Long: `Run performs a single processing cycle without starting the daemon:
scan the vault, extract entities from due notes, generate insights and
print a summary. Useful from cron or for a first look at a new vault.`,
	RunE: runOnce,
}

func runOnce(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	reader, err := vault.NewReader(cfg.Vault.Path)
	if err != nil {
		return err
	}
	scanner, err := vault.NewScanner(cfg.Vault.Path, store)
	if err != nil {
		return err
	}
	scheduler, err := buildScheduler(store, reader)
	if err != nil {
		return err
	}

	scan, err := scanner.ScanAll(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	fmt.Printf("Scanned %d files (%d updated, %d removed)\n",
		scan.Scanned, scan.Updated, scan.Removed)

	result := scheduler.TriggerManualRun(ctx)
	if !result.Success {
		return fmt.Errorf("processing failed: %s", result.Message)
	}

	s := result.Summary
	fmt.Printf("\nRun %s finished in %.1fs\n", s.RunID, s.RuntimeSeconds)
	fmt.Printf("  notes processed:    %d\n", s.NotesProcessed)
	fmt.Printf("  entities extracted: %d\n", s.EntitiesExtracted)
	fmt.Printf("  insights generated: %d\n", s.InsightsGenerated)
	if len(s.Errors) > 0 {
		fmt.Printf("  errors:             %d\n", len(s.Errors))
		for _, e := range s.Errors {
			if e.Note != "" {
				fmt.Printf("    %s: %s\n", e.Note, e.Error)
			} else {
				fmt.Printf("    %s\n", e.Error)
			}
		}
	}
	return nil
}
