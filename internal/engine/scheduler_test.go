package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Knuckles92/obby-sub000/pkg/types"
)

// gatedExtractor blocks inside Extract until released, so tests can hold a
// run in flight.
type gatedExtractor struct {
	started chan struct{}
	release chan struct{}
}

func newGatedExtractor() *gatedExtractor {
	return &gatedExtractor{started: make(chan struct{}), release: make(chan struct{})}
}

func (e *gatedExtractor) Extract(ctx context.Context, notePath, content string) ([]*types.Entity, error) {
	close(e.started)
	<-e.release
	return nil, nil
}

func (e *gatedExtractor) Model() string { return "gated" }

// TestShouldRun covers the interval gate: disabled schedulers never run,
// a never-run scheduler runs immediately, otherwise the interval decides.
func TestShouldRun(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name     string
		enabled  bool
		lastRun  time.Duration // 0 means never ran
		interval int
		want     bool
	}{
		{"disabled", false, 0, 60, false},
		{"never_ran", true, 0, 60, true},
		{"too_soon", true, 30 * time.Minute, 60, false},
		{"interval_elapsed", true, 61 * time.Minute, 60, true},
		{"exactly_at_interval", true, 60 * time.Minute, 60, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Enabled = tc.enabled
			cfg.RunIntervalMinutes = tc.interval

			sched, err := NewScheduler(nil, nil, cfg)
			if err != nil {
				t.Fatalf("NewScheduler() failed: %v", err)
			}
			sched.clock = func() time.Time { return now }
			if tc.lastRun != 0 {
				last := now.Add(-tc.lastRun)
				sched.lastRun = &last
			}

			if got := sched.ShouldRun(); got != tc.want {
				t.Errorf("ShouldRun() = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestRunScheduledProcessingSingleFlight verifies that a second trigger
// while a run is in flight is softly rejected and writes no run record.
func TestRunScheduledProcessingSingleFlight(t *testing.T) {
	store := newTestStore(t)
	reader := newFakeReader()
	extractor := newGatedExtractor()
	ctx := context.Background()

	seedNote(t, store, reader, "slow.md", "content", time.Now())

	tracker := NewTracker(store, reader)
	rules := NewInsightRuleEngine(store, store, DedupIndexed)
	processor := NewProcessor(tracker, extractor, store, store, rules)
	sched, err := NewScheduler(processor, tracker, DefaultConfig())
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}

	resultCh := make(chan *ProcessingResult, 1)
	go func() { resultCh <- sched.RunScheduledProcessing(ctx) }()

	select {
	case <-extractor.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never reached extraction")
	}

	status, err := sched.Status(ctx)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if !status.IsRunning {
		t.Error("Status.IsRunning = false during an in-flight run")
	}

	reject := sched.TriggerManualRun(ctx)
	if reject.Success {
		t.Error("concurrent trigger succeeded, want soft rejection")
	}
	if reject.Message != "Processing already in progress" {
		t.Errorf("rejection message = %q", reject.Message)
	}
	if reject.Summary != nil {
		t.Error("rejection carries a summary")
	}

	close(extractor.release)

	var first *ProcessingResult
	select {
	case first = <-resultCh:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never completed")
	}
	if !first.Success {
		t.Errorf("first run failed: %s", first.Message)
	}

	// Only the completed run left a record.
	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("run records = %d, want 1", len(runs))
	}
}

// TestTriggerManualRunBypassesSchedule verifies manual runs ignore both
// the interval and the enabled flag, and that progress events fire in
// order around the run.
func TestTriggerManualRunBypassesSchedule(t *testing.T) {
	store := newTestStore(t)
	reader := newFakeReader()
	extractor := newFakeExtractor()
	ctx := context.Background()

	seedNote(t, store, reader, "note.md", "- [ ] task", time.Now())
	extractor.entities["note.md"] = []*types.Entity{todoEntity("note.md", "task")}

	cfg := DefaultConfig()
	cfg.Enabled = false

	tracker := NewTracker(store, reader)
	rules := NewInsightRuleEngine(store, store, DedupIndexed)
	processor := NewProcessor(tracker, extractor, store, store, rules)
	sched, err := NewScheduler(processor, tracker, cfg)
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}

	var stages []string
	var completeSummary *types.RunSummary
	sched.SetProgressCallback(func(stage string, summary *types.RunSummary) {
		stages = append(stages, stage)
		if stage == EventProcessingComplete {
			completeSummary = summary
		}
	})

	if sched.ShouldRun() {
		t.Error("ShouldRun() = true while disabled")
	}

	result := sched.TriggerManualRun(ctx)
	if !result.Success {
		t.Fatalf("manual run failed: %s", result.Message)
	}
	if result.Summary == nil || result.Summary.NotesProcessed != 1 {
		t.Errorf("summary = %+v, want one processed note", result.Summary)
	}

	if len(stages) != 2 || stages[0] != EventProcessingStarted || stages[1] != EventProcessingComplete {
		t.Errorf("stages = %v, want [started, complete]", stages)
	}
	if completeSummary == nil {
		t.Error("completion event carried no summary")
	}

	status, err := sched.Status(ctx)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if status.LastRun == nil || status.NextRun == nil {
		t.Error("run timestamps not recorded after a manual run")
	}
	if status.QueueSize != 0 {
		t.Errorf("QueueSize = %d, want 0 after processing", status.QueueSize)
	}
}

// TestSchedulerStatusBeforeAnyRun verifies the initial status shape.
func TestSchedulerStatusBeforeAnyRun(t *testing.T) {
	store := newTestStore(t)
	reader := newFakeReader()
	ctx := context.Background()

	seedNote(t, store, reader, "a.md", "x", time.Now())
	seedNote(t, store, reader, "b.md", "y", time.Now())

	tracker := NewTracker(store, reader)
	sched, err := NewScheduler(nil, tracker, DefaultConfig())
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}

	status, err := sched.Status(ctx)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	if !status.Enabled || status.IsRunning {
		t.Errorf("status = %+v, want enabled and idle", status)
	}
	if status.LastRun != nil || status.NextRun != nil {
		t.Error("run timestamps set before any run")
	}
	if status.QueueSize != 2 {
		t.Errorf("QueueSize = %d, want 2", status.QueueSize)
	}
	if status.Config.RunIntervalMinutes != 60 {
		t.Errorf("Config.RunIntervalMinutes = %d, want default 60", status.Config.RunIntervalMinutes)
	}
}

// TestUpdateConfig verifies validation and that the next scheduled time
// follows a changed interval.
func TestUpdateConfig(t *testing.T) {
	sched, err := NewScheduler(nil, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}

	bad := DefaultConfig()
	bad.RunIntervalMinutes = 0
	if err := sched.UpdateConfig(bad); err == nil {
		t.Error("UpdateConfig accepted a zero interval")
	}
	if sched.Config().RunIntervalMinutes != 60 {
		t.Error("rejected update still changed the config")
	}

	last := time.Now()
	sched.mu.Lock()
	sched.lastRun = &last
	sched.mu.Unlock()

	good := DefaultConfig()
	good.RunIntervalMinutes = 15
	if err := sched.UpdateConfig(good); err != nil {
		t.Fatalf("UpdateConfig() failed: %v", err)
	}

	wantNext := last.Add(15 * time.Minute)
	sched.mu.RLock()
	gotNext := sched.nextRun
	sched.mu.RUnlock()
	if gotNext == nil || !gotNext.Equal(wantNext) {
		t.Errorf("nextRun = %v, want %v", gotNext, wantNext)
	}
}

// TestSchedulerStartStop verifies the polling loop shuts down cleanly.
func TestSchedulerStartStop(t *testing.T) {
	sched, err := NewScheduler(nil, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("NewScheduler() failed: %v", err)
	}

	sched.Start(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}

	// Stopping twice is harmless.
	sched.Stop()
}
