package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// Progress event stages passed to the scheduler's callback. The web layer
// forwards these to connected clients.
const (
	EventProcessingStarted  = "processing_started"
	EventProcessingComplete = "processing_complete"
)

// Single-flight states for the atomic run guard.
const (
	stateIdle int32 = iota
	stateRunning
)

// pollInterval is how often the background loop re-evaluates ShouldRun.
const pollInterval = 60 * time.Second

// ProcessingResult is the outcome of one run attempt, scheduled or manual.
// A rejected attempt (another run in flight) carries Success=false and no
// summary; no run record is written for it.
type ProcessingResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Summary *types.RunSummary `json:"summary,omitempty"`
}

// SchedulerStatus is a point-in-time view of the scheduler for the API.
// QueueSize is the live due-note count, re-queried on every call.
type SchedulerStatus struct {
	Enabled   bool       `json:"enabled"`
	IsRunning bool       `json:"isRunning"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	NextRun   *time.Time `json:"nextRun,omitempty"`
	QueueSize int        `json:"queueSize"`
	Config    Config     `json:"config"`
}

// Scheduler drives periodic pipeline runs and serializes them: at most one
// run is in flight at any time, whether it was started by the poll loop or
// by a manual trigger.
type Scheduler struct {
	processor *Processor
	tracker   *ProcessingStateTracker

	state atomic.Int32

	mu      sync.RWMutex
	config  Config
	lastRun *time.Time
	nextRun *time.Time

	onProgress func(stage string, summary *types.RunSummary)

	cancel context.CancelFunc
	done   chan struct{}

	clock func() time.Time
}

// NewScheduler creates a scheduler with the given configuration.
func NewScheduler(processor *Processor, tracker *ProcessingStateTracker, cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		processor: processor,
		tracker:   tracker,
		config:    cfg,
		clock:     time.Now,
	}, nil
}

// SetProgressCallback registers a callback invoked at run boundaries with
// the event stage and, on completion, the run summary. Set it before Start;
// it is read without locking.
func (s *Scheduler) SetProgressCallback(fn func(stage string, summary *types.RunSummary)) {
	s.onProgress = fn
}

// ShouldRun reports whether a scheduled run is due: the scheduler is
// enabled and either no run has happened yet or the configured interval
// has elapsed since the last one.
func (s *Scheduler) ShouldRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.config.Enabled {
		return false
	}
	if s.lastRun == nil {
		return true
	}
	interval := time.Duration(s.config.RunIntervalMinutes) * time.Minute
	return s.clock().Sub(*s.lastRun) >= interval
}

// RunScheduledProcessing executes one pipeline run under the single-flight
// guard. If another run is already in flight it returns a soft rejection
// without touching the database. Run errors are reported in the result, not
// returned, so callers always get a uniform shape.
func (s *Scheduler) RunScheduledProcessing(ctx context.Context) *ProcessingResult {
	if !s.state.CompareAndSwap(stateIdle, stateRunning) {
		return &ProcessingResult{Success: false, Message: "Processing already in progress"}
	}
	defer s.state.Store(stateIdle)

	now := s.clock()
	s.mu.Lock()
	s.lastRun = &now
	cfg := s.config
	s.mu.Unlock()

	s.emit(EventProcessingStarted, nil)

	maxRuntime := time.Duration(cfg.MaxRuntimeMinutes) * time.Minute
	summary, err := s.processor.RunPipeline(ctx, cfg.MaxNotesPerRun, maxRuntime)

	if summary != nil {
		s.emit(EventProcessingComplete, summary)
	}

	next := now.Add(time.Duration(cfg.RunIntervalMinutes) * time.Minute)
	s.mu.Lock()
	s.nextRun = &next
	s.mu.Unlock()

	if err != nil {
		log.Printf("ERROR: scheduler: run failed: %v", err)
		return &ProcessingResult{
			Success: false,
			Message: fmt.Sprintf("Processing failed: %v", err),
			Summary: summary,
		}
	}
	return &ProcessingResult{
		Success: true,
		Message: fmt.Sprintf("Processed %d notes, generated %d insights", summary.NotesProcessed, summary.InsightsGenerated),
		Summary: summary,
	}
}

// TriggerManualRun starts a run immediately, skipping the interval check.
// It works even when the scheduler is disabled; only an in-flight run can
// reject it.
func (s *Scheduler) TriggerManualRun(ctx context.Context) *ProcessingResult {
	return s.RunScheduledProcessing(ctx)
}

// Start launches the background polling loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx)
	log.Printf("scheduler: started, polling every %s", pollInterval)
}

// Stop cancels the polling loop and waits for it to exit. An in-flight run
// is cancelled through its context and still finalizes its run record.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	log.Printf("scheduler: stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle runs one poll iteration. Panics are contained here so a broken
// cycle never kills the loop.
func (s *Scheduler) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: scheduler: cycle panicked: %v", r)
		}
	}()

	if !s.ShouldRun() {
		return
	}
	result := s.RunScheduledProcessing(ctx)
	if !result.Success {
		log.Printf("WARNING: scheduler: scheduled run: %s", result.Message)
	}
}

// Status returns the current scheduler state with a live due-note count.
func (s *Scheduler) Status(ctx context.Context) (*SchedulerStatus, error) {
	queue, err := s.tracker.CountDue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count due notes: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &SchedulerStatus{
		Enabled:   s.config.Enabled,
		IsRunning: s.state.Load() == stateRunning,
		QueueSize: queue,
		Config:    s.config,
	}
	if s.lastRun != nil {
		t := *s.lastRun
		status.LastRun = &t
	}
	if s.nextRun != nil {
		t := *s.nextRun
		status.NextRun = &t
	}
	return status, nil
}

// Config returns a copy of the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig validates and swaps the configuration. The next scheduled
// time is recomputed against the new interval.
func (s *Scheduler) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	if s.lastRun != nil {
		next := s.lastRun.Add(time.Duration(cfg.RunIntervalMinutes) * time.Minute)
		s.nextRun = &next
	}
	return nil
}

func (s *Scheduler) emit(stage string, summary *types.RunSummary) {
	if s.onProgress != nil {
		s.onProgress(stage, summary)
	}
}
