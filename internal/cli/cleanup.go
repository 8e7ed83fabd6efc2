package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/engine"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old dismissed insights",
	Long: `Cleanup hard-deletes insights that were dismissed more than --days
days ago. Dismissed insights are otherwise kept so their dedup keys
keep suppressing regenerated duplicates.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", engine.DefaultCleanupDays, "age in days before a dismissed insight is deleted")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rules := engine.NewInsightRuleEngine(store, store, engine.DedupPolicy(cfg.Insights.DedupPolicy))
	deleted, err := rules.CleanupExpired(context.Background(), cleanupDays)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted %d dismissed insights older than %d days\n", deleted, cleanupDays)
	return nil
}
