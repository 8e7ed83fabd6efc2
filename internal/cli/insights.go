package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/pkg/types"
)

var (
	insightsType   string
	insightsStatus string
	insightsLimit  int
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "List insights",
	Long: `List insights ordered the way the UI shows them: pinned first, then
new, then viewed, then the rest.

Examples:
  obby insights
  obby insights --type active_todos
  obby insights --status new --limit 10`,
	RunE: runInsights,
}

func init() {
	insightsCmd.Flags().StringVarP(&insightsType, "type", "t", "", "filter by insight type")
	insightsCmd.Flags().StringVarP(&insightsStatus, "status", "s", "", "filter by insight status")
	insightsCmd.Flags().IntVarP(&insightsLimit, "limit", "n", 50, "max results")
}

func runInsights(cmd *cobra.Command, args []string) error {
	if insightsType != "" && !types.IsValidInsightType(types.InsightType(insightsType)) {
		return fmt.Errorf("unknown insight type %q", insightsType)
	}
	if insightsStatus != "" && !types.IsValidInsightStatus(types.InsightStatus(insightsStatus)) {
		return fmt.Errorf("unknown insight status %q", insightsStatus)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	result, err := store.ListInsights(context.Background(), storage.ListOptions{
		Type:   types.InsightType(insightsType),
		Status: types.InsightStatus(insightsStatus),
		Limit:  insightsLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list insights: %w", err)
	}

	if len(result.Items) == 0 {
		fmt.Println("No insights found.")
		return nil
	}

	fmt.Printf("Insights (%d of %d):\n\n", len(result.Items), result.Total)
	for _, ins := range result.Items {
		fmt.Printf("- [%s/%s] %s\n", ins.InsightType, ins.Status, ins.Title)
		if ins.Summary != "" {
			fmt.Printf("    %s\n", ins.Summary)
		}
	}
	if result.HasMore {
		fmt.Printf("\n%d more; raise --limit to see them.\n", result.Total-len(result.Items))
	}
	return nil
}
