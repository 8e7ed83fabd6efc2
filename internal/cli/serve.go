package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/server"
	"github.com/Knuckles92/obby-sub000/internal/vault"
	"github.com/Knuckles92/obby-sub000/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the obby daemon: watcher, scheduler and HTTP API",
	Long: `Serve starts the long-running daemon. It scans the vault once, then
watches it for changes, runs the processing pipeline on the configured
schedule and exposes the HTTP API and websocket event stream.

SIGINT or SIGTERM shuts everything down gracefully.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A configured window overrides the persisted one at startup. Zero
	// leaves whatever the database already holds.
	if cfg.Context.WindowDays != 0 {
		if err := store.SetContextWindowDays(ctx, cfg.Context.WindowDays); err != nil {
			return err
		}
	}

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

	// Initial scan so the first pipeline run sees the current vault.
	if result, err := scanner.ScanAll(ctx); err != nil {
		log.Printf("WARNING: serve: initial scan failed: %v", err)
	} else {
		log.Printf("serve: initial scan: %d files, %d updated, %d removed",
			result.Scanned, result.Updated, result.Removed)
	}

	// The server wires the scheduler's progress callback into the
	// websocket hub, so it must start before the scheduler loop.
	addr, hub := server.Start(ctx, cfg, store, scheduler, scanner)
	log.Printf("serve: API listening at http://%s", addr)

	watcher := vault.NewWatcher(scanner, vault.DefaultDebounce, func(result *vault.ScanResult) {
		hub.Broadcast(handlers.Event{Type: handlers.EventScanComplete, Scan: result})
	})
	if err := watcher.Start(ctx); err != nil {
		return err
	}

	scheduler.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("serve: shutting down gracefully...")

	// Stop producers before the server: no new runs, no new scans, then
	// cancel to shut down HTTP and the hub.
	scheduler.Stop()
	watcher.Stop()
	cancel()
	time.Sleep(500 * time.Millisecond) // give in-flight connections time to close

	return nil
}
