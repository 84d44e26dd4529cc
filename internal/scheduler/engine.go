package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/campwatch/internal/config"
	cwErrors "github.com/harunnryd/campwatch/internal/errors"

	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

// SweepRunner is the periodic job the engine drives.
type SweepRunner interface {
	Sweep(ctx context.Context)
}

// Engine fires the sweep on a cron schedule. One sweep runs at a time; a
// sweep still in flight when the next fire time arrives delays it rather
// than overlapping it.
type Engine struct {
	sweeper  SweepRunner
	schedule cron.Schedule

	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	running       bool
	inFlightRuns  uint
	lastSweepTime time.Time

	shutdownTimeout      time.Duration
	inFlightPollInterval time.Duration
}

func NewEngine(sweeper SweepRunner, cfg config.SchedulerConfig) (*Engine, error) {
	spec := cfg.SweepSchedule
	if spec == "" {
		spec = config.DefaultSchedulerSweepSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}

	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultSchedulerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler shutdown timeout: %w", err)
	}

	inFlightPollInterval, err := config.DurationOrDefault(cfg.InFlightPollInterval, config.DefaultSchedulerInFlightPollInterval)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler in-flight poll interval: %w", err)
	}

	return &Engine{
		sweeper:              sweeper,
		schedule:             schedule,
		shutdownTimeout:      shutdownTimeout,
		inFlightPollInterval: inFlightPollInterval,
	}, nil
}

func (e *Engine) Init(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	slog.Info("Sweep engine initialized")
	return nil
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	go e.run()

	slog.Info("Sweep engine started")
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	e.cancel()

	done := make(chan struct{})
	go func() {
		e.waitForInFlightRuns()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Sweep engine stopped gracefully")
		return nil
	case <-time.After(e.shutdownTimeout):
		slog.Warn("Sweep engine shutdown timeout, force stopping")
		return cwErrors.Internal("shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Health(ctx context.Context) error {
	if e.ctx == nil {
		return cwErrors.Internal("sweep engine not initialized")
	}
	if !e.IsRunning() {
		return cwErrors.Internal("sweep engine not running")
	}
	return nil
}

func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// LastSweepTime reports when the previous sweep finished (zero before the
// first one).
func (e *Engine) LastSweepTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSweepTime
}

func (e *Engine) run() {
	for {
		next := e.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			e.runSweep()
		case <-e.ctx.Done():
			timer.Stop()
			slog.Info("Sweep engine run loop stopped")
			return
		}
	}
}

func (e *Engine) runSweep() {
	e.mu.Lock()
	e.inFlightRuns++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlightRuns--
		e.lastSweepTime = time.Now()
		e.mu.Unlock()
	}()

	runID := ulid.Make().String()
	started := time.Now()
	slog.Debug("Sweep run starting", "run_id", runID)

	e.sweeper.Sweep(e.ctx)

	slog.Debug("Sweep run finished", "run_id", runID, "duration_ms", time.Since(started).Milliseconds())
}

func (e *Engine) waitForInFlightRuns() {
	ticker := time.NewTicker(e.inFlightPollInterval)
	defer ticker.Stop()

	for {
		<-ticker.C
		e.mu.RLock()
		count := e.inFlightRuns
		e.mu.RUnlock()

		if count == 0 {
			return
		}
		slog.Info("Waiting for in-flight sweep", "count", count)
	}
}
