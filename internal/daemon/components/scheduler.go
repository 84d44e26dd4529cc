package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/campwatch/internal/config"
	"github.com/harunnryd/campwatch/internal/daemon"
	"github.com/harunnryd/campwatch/internal/scheduler"
	"github.com/harunnryd/campwatch/internal/tracker"
)

// SchedulerComponent drives the periodic threshold sweep.
type SchedulerComponent struct {
	cfg         *config.Config
	trackerComp *TrackerComponent
	issues      tracker.IssueChecker
	alerts      tracker.AlertSink
	engine      *scheduler.Engine
}

func NewSchedulerComponent(cfg *config.Config, trackerComp *TrackerComponent, issues tracker.IssueChecker, alerts tracker.AlertSink) *SchedulerComponent {
	return &SchedulerComponent{
		cfg:         cfg,
		trackerComp: trackerComp,
		issues:      issues,
		alerts:      alerts,
	}
}

func (s *SchedulerComponent) Name() string {
	return "Scheduler"
}

func (s *SchedulerComponent) Dependencies() []string {
	return []string{"Tracker", "Reconciler"}
}

func (s *SchedulerComponent) Init(ctx context.Context) error {
	if s.trackerComp == nil {
		return fmt.Errorf("trackerComp not provided")
	}

	mgr := s.trackerComp.GetManager()
	if mgr == nil {
		return fmt.Errorf("tracker not initialized")
	}

	sweeper := tracker.NewSweeper(mgr, s.trackerComp.GetPolicy(), s.issues, s.alerts)
	engine, err := scheduler.NewEngine(sweeper, s.cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("failed to create sweep engine: %w", err)
	}
	s.engine = engine

	if err := s.engine.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize sweep engine: %w", err)
	}

	slog.Info("Scheduler initialized", "component", s.Name(), "schedule", s.cfg.Scheduler.SweepSchedule)
	return nil
}

func (s *SchedulerComponent) Start(ctx context.Context) error {
	if s.engine == nil {
		return fmt.Errorf("sweep engine not initialized")
	}

	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sweep engine: %w", err)
	}

	slog.Info("Scheduler started", "component", s.Name())
	return nil
}

func (s *SchedulerComponent) Stop(ctx context.Context) error {
	if s.engine == nil {
		slog.Info("Scheduler not initialized, skipping stop", "component", s.Name())
		return nil
	}

	if err := s.engine.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop sweep engine: %w", err)
	}

	slog.Info("Scheduler stopped", "component", s.Name())
	return nil
}

func (s *SchedulerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if s.engine == nil {
		return &daemon.ComponentHealth{
			Name:    s.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if err := s.engine.Health(ctx); err != nil {
		return &daemon.ComponentHealth{
			Name:    s.Name(),
			Healthy: false,
			Error:   err,
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    s.Name(),
		Healthy: true,
		Error:   nil,
	}, nil
}

func (s *SchedulerComponent) GetEngine() *scheduler.Engine {
	return s.engine
}
