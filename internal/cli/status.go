package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/vault"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the scheduler status as JSON",
	Long: `Status prints a point-in-time scheduler snapshot: configured knobs
and the live count of notes waiting for processing. Last and next run
times are only known inside a running daemon and are omitted here.`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reader, err := vault.NewReader(cfg.Vault.Path)
	if err != nil {
		return err
	}
	scheduler, err := buildScheduler(store, reader)
	if err != nil {
		return err
	}

	status, err := scheduler.Status(context.Background())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
