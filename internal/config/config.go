// Package config loads obby's configuration. Environment variables with
// the OBBY_ prefix are layered over an optional YAML file, which in turn
// overrides the embedded defaults.
//
// The file and environment only seed startup values. The scheduler knobs
// and the context window stay mutable at runtime through the API; the
// context window is persisted in the database, not here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// Config holds all configuration settings for the obby daemon and CLI.
type Config struct {
	Vault     VaultConfig     `yaml:"vault"`
	Storage   StorageConfig   `yaml:"storage"`
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	LLM       LLMConfig       `yaml:"llm"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Insights  InsightsConfig  `yaml:"insights"`
	Context   ContextConfig   `yaml:"context"`
	Backup    BackupConfig    `yaml:"backup"`
}

// VaultConfig locates the markdown vault.
type VaultConfig struct {
	Path string `yaml:"path"` // vault root directory (default: ./vault)
}

// StorageConfig selects and configures the database backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres (default: sqlite)
	Path   string `yaml:"path"`   // sqlite database file (default: ./data/obby.db)
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"` // listen host (default: 127.0.0.1)
	Port int    `yaml:"port"` // listen port (default: 6767)
}

// SecurityConfig contains API authentication settings.
type SecurityConfig struct {
	Production bool   `yaml:"production"` // enforce bearer auth on /api/ (default: false)
	APIToken   string `yaml:"apiToken"`   // bearer token required in production mode
}

// LLMConfig contains entity extraction provider configuration.
type LLMConfig struct {
	Provider        string `yaml:"provider"`        // heuristic, ollama, openai, anthropic (default: heuristic)
	OllamaURL       string `yaml:"ollamaUrl"`       // Ollama API URL (default: http://localhost:11434)
	OllamaModel     string `yaml:"ollamaModel"`     // Ollama model name (default: qwen2.5:7b)
	OpenAIAPIKey    string `yaml:"openaiApiKey"`    // OpenAI API key
	OpenAIModel     string `yaml:"openaiModel"`     // OpenAI model name (default: gpt-4o-mini)
	OpenAIBaseURL   string `yaml:"openaiBaseUrl"`   // OpenAI-compatible endpoint override
	AnthropicAPIKey string `yaml:"anthropicApiKey"` // Anthropic API key
	AnthropicModel  string `yaml:"anthropicModel"`  // Anthropic model name (default: claude-haiku-4-5-20251001)
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`  // per-request timeout (default: 60)
}

// SchedulerConfig seeds the five runtime-mutable processing knobs.
type SchedulerConfig struct {
	Enabled            bool `yaml:"enabled"`            // run the background loop (default: true)
	RunIntervalMinutes int  `yaml:"runIntervalMinutes"` // minimum gap between runs (default: 60)
	MaxRuntimeMinutes  int  `yaml:"maxRuntimeMinutes"`  // per-run time budget (default: 5)
	MaxNotesPerRun     int  `yaml:"maxNotesPerRun"`     // per-run note cap (default: 50)
	MaxAiCallsPerRun   int  `yaml:"maxAiCallsPerRun"`   // declared LLM call budget (default: 20)
}

// InsightsConfig tunes insight generation.
type InsightsConfig struct {
	// DedupPolicy selects how generation decides an insight already
	// exists: "indexed" (dedup-key index, default) or "scan" (legacy
	// substring scan over live insight text).
	DedupPolicy string `yaml:"dedupPolicy"`
}

// ContextConfig seeds the working-context window.
type ContextConfig struct {
	// WindowDays, when non-zero, is written to the database at startup and
	// overrides a previously persisted window. Zero leaves the persisted
	// value (or its 7-day default) alone.
	WindowDays int `yaml:"windowDays"`
}

// BackupConfig configures the backup command.
type BackupConfig struct {
	Dir  string `yaml:"dir"`  // snapshot directory (default: ./backups)
	Keep int    `yaml:"keep"` // snapshots to retain (default: 7)
}

// Load builds the configuration: defaults, then the YAML file at path if
// one is given, then OBBY_ environment variables on top. The result is
// validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects unusable values. It is called by Load but exported so
// hand-built configs in tests get the same checks.
func (c *Config) Validate() error {
	if c.Vault.Path == "" {
		return fmt.Errorf("vault path is required")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q (sqlite or postgres)", c.Storage.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Security.Production && c.Security.APIToken == "" {
		return fmt.Errorf("production mode requires an api token")
	}

	switch c.LLM.Provider {
	case "", "heuristic", "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.LLM.TimeoutSeconds < 1 {
		return fmt.Errorf("llm timeout must be at least 1 second, got %d", c.LLM.TimeoutSeconds)
	}

	s := c.Scheduler
	if s.RunIntervalMinutes < 1 {
		return fmt.Errorf("scheduler runIntervalMinutes must be at least 1, got %d", s.RunIntervalMinutes)
	}
	if s.MaxRuntimeMinutes < 1 {
		return fmt.Errorf("scheduler maxRuntimeMinutes must be at least 1, got %d", s.MaxRuntimeMinutes)
	}
	if s.MaxNotesPerRun < 1 {
		return fmt.Errorf("scheduler maxNotesPerRun must be at least 1, got %d", s.MaxNotesPerRun)
	}
	if s.MaxAiCallsPerRun < 1 {
		return fmt.Errorf("scheduler maxAiCallsPerRun must be at least 1, got %d", s.MaxAiCallsPerRun)
	}

	switch c.Insights.DedupPolicy {
	case "", "indexed", "scan":
	default:
		return fmt.Errorf("unsupported insights dedupPolicy %q (indexed or scan)", c.Insights.DedupPolicy)
	}

	if c.Context.WindowDays != 0 && !types.IsValidContextWindowDays(c.Context.WindowDays) {
		return fmt.Errorf("context windowDays must be one of %v, got %d",
			types.ValidContextWindowDays, c.Context.WindowDays)
	}

	if c.Backup.Keep < 1 {
		return fmt.Errorf("backup keep must be at least 1, got %d", c.Backup.Keep)
	}
	return nil
}

// LLMTimeout returns the per-request timeout as a duration.
func (c *LLMConfig) LLMTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// defaultConfig returns the embedded defaults.
func defaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			Path: "./vault",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "./data/obby.db",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 6767,
		},
		Security: SecurityConfig{
			Production: false,
			APIToken:   "",
		},
		LLM: LLMConfig{
			Provider:       "heuristic",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "qwen2.5:7b",
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-haiku-4-5-20251001",
			TimeoutSeconds: 60,
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			RunIntervalMinutes: 60,
			MaxRuntimeMinutes:  5,
			MaxNotesPerRun:     50,
			MaxAiCallsPerRun:   20,
		},
		Insights: InsightsConfig{
			DedupPolicy: "indexed",
		},
		Context: ContextConfig{
			WindowDays: 0,
		},
		Backup: BackupConfig{
			Dir:  "./backups",
			Keep: 7,
		},
	}
}

// applyEnv overlays OBBY_ environment variables on top of cfg. Unset
// variables leave the current value alone.
func applyEnv(cfg *Config) {
	cfg.Vault.Path = getEnv("OBBY_VAULT_PATH", cfg.Vault.Path)

	cfg.Storage.Driver = getEnv("OBBY_DB_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Path = getEnv("OBBY_DB_PATH", cfg.Storage.Path)
	cfg.Storage.DSN = getEnv("OBBY_DB_DSN", cfg.Storage.DSN)

	cfg.Server.Host = getEnv("OBBY_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("OBBY_PORT", cfg.Server.Port)

	cfg.Security.Production = getEnvBool("OBBY_PRODUCTION", cfg.Security.Production)
	cfg.Security.APIToken = getEnv("OBBY_API_TOKEN", cfg.Security.APIToken)

	cfg.LLM.Provider = getEnv("OBBY_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("OBBY_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("OBBY_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OpenAIAPIKey = getEnv("OBBY_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("OBBY_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.OpenAIBaseURL = getEnv("OBBY_OPENAI_BASE_URL", cfg.LLM.OpenAIBaseURL)
	cfg.LLM.AnthropicAPIKey = getEnv("OBBY_ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.AnthropicModel = getEnv("OBBY_ANTHROPIC_MODEL", cfg.LLM.AnthropicModel)
	cfg.LLM.TimeoutSeconds = getEnvInt("OBBY_LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.Scheduler.Enabled = getEnvBool("OBBY_SCHEDULER_ENABLED", cfg.Scheduler.Enabled)
	cfg.Scheduler.RunIntervalMinutes = getEnvInt("OBBY_RUN_INTERVAL_MINUTES", cfg.Scheduler.RunIntervalMinutes)
	cfg.Scheduler.MaxRuntimeMinutes = getEnvInt("OBBY_MAX_RUNTIME_MINUTES", cfg.Scheduler.MaxRuntimeMinutes)
	cfg.Scheduler.MaxNotesPerRun = getEnvInt("OBBY_MAX_NOTES_PER_RUN", cfg.Scheduler.MaxNotesPerRun)
	cfg.Scheduler.MaxAiCallsPerRun = getEnvInt("OBBY_MAX_AI_CALLS_PER_RUN", cfg.Scheduler.MaxAiCallsPerRun)

	cfg.Insights.DedupPolicy = getEnv("OBBY_DEDUP_POLICY", cfg.Insights.DedupPolicy)

	cfg.Context.WindowDays = getEnvInt("OBBY_CONTEXT_WINDOW_DAYS", cfg.Context.WindowDays)

	cfg.Backup.Dir = getEnv("OBBY_BACKUP_DIR", cfg.Backup.Dir)
	cfg.Backup.Keep = getEnvInt("OBBY_BACKUP_KEEP", cfg.Backup.Keep)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. A set-but-unparsable value falls back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no" in any
// case. A set-but-unparsable value falls back to the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
