// Package cli provides the command-line interface for obby.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Knuckles92/obby-sub000/internal/config"
	"github.com/Knuckles92/obby-sub000/internal/engine"
	"github.com/Knuckles92/obby-sub000/internal/extract"
	"github.com/Knuckles92/obby-sub000/internal/storage"
	"github.com/Knuckles92/obby-sub000/internal/storage/postgres"
	"github.com/Knuckles92/obby-sub000/internal/storage/sqlite"
	"github.com/Knuckles92/obby-sub000/internal/vault"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	cfgPath string

	// Loaded configuration, populated by the root PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "obby",
	Short: "Ambient insight engine for markdown vaults",
	Long: `Obby watches a directory of markdown notes, extracts entities from
changed files and surfaces insights about stale todos, orphaned mentions
and recurring themes.

Run "obby serve" for the long-running daemon with the HTTP API, or use
the one-shot commands (run, scan, status, insights) against the same
database.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// No configuration needed for help output.
		switch cmd.Name() {
		case "help", "version", "completion":
			return nil
		}

		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(backupCmd)
}

// openStore opens the configured storage backend.
func openStore() (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return sqlite.New(cfg.Storage.Path)
	case "postgres":
		return postgres.New(cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// buildScheduler wires the processing pipeline: extractor, tracker, rule
// engine, processor and scheduler. The scheduler is returned unstarted so
// callers can either run its polling loop or trigger single runs.
func buildScheduler(store storage.Store, reader *vault.Reader) (*engine.Scheduler, error) {
	extractor, err := extract.New(extractorConfig(cfg.LLM))
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	tracker := engine.NewTracker(store, reader)
	rules := engine.NewInsightRuleEngine(store, store, engine.DedupPolicy(cfg.Insights.DedupPolicy))
	processor := engine.NewProcessor(tracker, extractor, store, store, rules)

	scheduler, err := engine.NewScheduler(processor, tracker, engine.Config{
		Enabled:            cfg.Scheduler.Enabled,
		RunIntervalMinutes: cfg.Scheduler.RunIntervalMinutes,
		MaxRuntimeMinutes:  cfg.Scheduler.MaxRuntimeMinutes,
		MaxNotesPerRun:     cfg.Scheduler.MaxNotesPerRun,
		MaxAiCallsPerRun:   cfg.Scheduler.MaxAiCallsPerRun,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return scheduler, nil
}

// extractorConfig maps the provider-specific LLM settings onto the
// extractor config.
func extractorConfig(llm config.LLMConfig) extract.Config {
	ec := extract.Config{
		Provider: llm.Provider,
		Timeout:  llm.LLMTimeout(),
	}
	switch llm.Provider {
	case "ollama":
		ec.BaseURL = llm.OllamaURL
		ec.Model = llm.OllamaModel
	case "openai":
		ec.APIKey = llm.OpenAIAPIKey
		ec.Model = llm.OpenAIModel
		ec.BaseURL = llm.OpenAIBaseURL
	case "anthropic":
		ec.APIKey = llm.AnthropicAPIKey
		ec.Model = llm.AnthropicModel
	}
	return ec
}
