package engine

import "fmt"

// Config holds the scheduler knobs. All fields are mutable at runtime
// through UpdateConfig; no restart is needed for a change to take effect.
type Config struct {
	// RunIntervalMinutes is the minimum gap between scheduled runs.
	RunIntervalMinutes int `json:"runIntervalMinutes"`

	// MaxRuntimeMinutes bounds a single pipeline run. The budget is
	// checked between notes, never mid-extraction.
	MaxRuntimeMinutes int `json:"maxRuntimeMinutes"`

	// MaxNotesPerRun caps how many due notes one run picks up.
	MaxNotesPerRun int `json:"maxNotesPerRun"`

	// MaxAiCallsPerRun is a declared budget for LLM calls per run. It is
	// carried in config and surfaced over the API but not yet enforced by
	// the processor.
	MaxAiCallsPerRun int `json:"maxAiCallsPerRun"`

	// Enabled gates the background loop. Manual triggers still work when
	// the scheduler is disabled.
	Enabled bool `json:"enabled"`
}

// DefaultConfig returns the scheduler defaults.
func DefaultConfig() Config {
	return Config{
		RunIntervalMinutes: 60,
		MaxRuntimeMinutes:  5,
		MaxNotesPerRun:     50,
		MaxAiCallsPerRun:   20,
		Enabled:            true,
	}
}

// Validate checks that every knob is in a usable range.
func (c Config) Validate() error {
	if c.RunIntervalMinutes < 1 {
		return fmt.Errorf("runIntervalMinutes must be at least 1, got %d", c.RunIntervalMinutes)
	}
	if c.MaxRuntimeMinutes < 1 {
		return fmt.Errorf("maxRuntimeMinutes must be at least 1, got %d", c.MaxRuntimeMinutes)
	}
	if c.MaxNotesPerRun < 1 {
		return fmt.Errorf("maxNotesPerRun must be at least 1, got %d", c.MaxNotesPerRun)
	}
	if c.MaxAiCallsPerRun < 1 {
		return fmt.Errorf("maxAiCallsPerRun must be at least 1, got %d", c.MaxAiCallsPerRun)
	}
	return nil
}
