package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/campwatch/internal/config"
)

type mockSweeper struct {
	mu    sync.Mutex
	runs  int
	block chan struct{}
}

func (m *mockSweeper) Sweep(ctx context.Context) {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()
	if m.block != nil {
		<-m.block
	}
}

func (m *mockSweeper) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

func TestEngine_NewEngine(t *testing.T) {
	sweeper := &mockSweeper{}
	engine, err := NewEngine(sweeper, config.SchedulerConfig{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if engine == nil {
		t.Fatal("Engine should not be nil")
	}
	if engine.sweeper != sweeper {
		t.Error("Sweeper not set correctly")
	}
}

func TestEngine_InvalidSchedule(t *testing.T) {
	_, err := NewEngine(&mockSweeper{}, config.SchedulerConfig{SweepSchedule: "not a schedule"})
	if err == nil {
		t.Error("invalid schedule should be rejected")
	}
}

func TestEngine_ComponentLifecycle(t *testing.T) {
	engine, err := NewEngine(&mockSweeper{}, config.SchedulerConfig{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ctx := context.Background()

	if err := engine.Health(ctx); err == nil {
		t.Error("Health should fail before Init")
	}

	if err := engine.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if engine.ctx == nil {
		t.Error("Context should be set after Init")
	}

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !engine.IsRunning() {
		t.Error("Engine should be running after Start")
	}
	if err := engine.Health(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	// Start is idempotent.
	if err := engine.Start(ctx); err != nil {
		t.Errorf("Second Start failed: %v", err)
	}

	if err := engine.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if engine.IsRunning() {
		t.Error("Engine should not be running after Stop")
	}

	// Stop is idempotent.
	if err := engine.Stop(ctx); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
}

func TestEngine_RunSweepCountsAndTimestamps(t *testing.T) {
	sweeper := &mockSweeper{}
	engine, err := NewEngine(sweeper, config.SchedulerConfig{})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	if err := engine.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if !engine.LastSweepTime().IsZero() {
		t.Error("LastSweepTime should be zero before any run")
	}

	engine.runSweep()

	if sweeper.Runs() != 1 {
		t.Errorf("runs = %d, want 1", sweeper.Runs())
	}
	if engine.LastSweepTime().IsZero() {
		t.Error("LastSweepTime should advance after a run")
	}
}

func TestEngine_StopWaitsForInFlightSweep(t *testing.T) {
	sweeper := &mockSweeper{block: make(chan struct{})}
	engine, err := NewEngine(sweeper, config.SchedulerConfig{
		ShutdownTimeout:      "2s",
		InFlightPollInterval: "10ms",
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ctx := context.Background()
	if err := engine.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	sweepStarted := make(chan struct{})
	go func() {
		close(sweepStarted)
		engine.runSweep()
	}()
	<-sweepStarted
	time.Sleep(20 * time.Millisecond)

	stopDone := make(chan error, 1)
	go func() { stopDone <- engine.Stop(ctx) }()

	select {
	case <-stopDone:
		t.Fatal("Stop should wait while a sweep is in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(sweeper.block)

	select {
	case err := <-stopDone:
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the sweep finished")
	}
}
