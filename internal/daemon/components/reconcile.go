package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harunnryd/campwatch/internal/config"
	"github.com/harunnryd/campwatch/internal/daemon"
	"github.com/harunnryd/campwatch/internal/tracker"
)

// ReconcileComponent rebuilds the tracking table from Jira once at startup,
// before the sweep engine begins evaluating thresholds.
type ReconcileComponent struct {
	cfg         *config.Config
	trackerComp *TrackerComponent
	source      tracker.IssueSource
	reconciler  *tracker.Reconciler
	ran         bool
}

func NewReconcileComponent(cfg *config.Config, trackerComp *TrackerComponent, source tracker.IssueSource) *ReconcileComponent {
	return &ReconcileComponent{
		cfg:         cfg,
		trackerComp: trackerComp,
		source:      source,
	}
}

func (r *ReconcileComponent) Name() string {
	return "Reconciler"
}

func (r *ReconcileComponent) Dependencies() []string {
	return []string{"Tracker"}
}

func (r *ReconcileComponent) Init(ctx context.Context) error {
	if r.trackerComp == nil {
		return fmt.Errorf("trackerComp not provided")
	}

	mgr := r.trackerComp.GetManager()
	if mgr == nil {
		return fmt.Errorf("tracker not initialized")
	}

	r.reconciler = tracker.NewReconciler(mgr, r.trackerComp.GetPolicy(), r.source, r.cfg.Jira.PrimaryStatusField)

	slog.Info("Reconciler initialized", "component", r.Name())
	return nil
}

func (r *ReconcileComponent) Start(ctx context.Context) error {
	if r.reconciler == nil {
		return fmt.Errorf("reconciler not initialized")
	}

	if !r.cfg.Daemon.ReconcileOnStart {
		slog.Info("Startup reconciliation disabled", "component", r.Name())
		r.ran = true
		return nil
	}

	reconcileTimeout, err := config.DurationOrDefault(r.cfg.Daemon.ReconcileTimeout, config.DefaultDaemonReconcileTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon reconcile timeout: %w", err)
	}

	reconcileCtx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	r.reconciler.Reconcile(reconcileCtx)
	r.ran = true

	slog.Info("Startup reconciliation completed", "component", r.Name())
	return nil
}

func (r *ReconcileComponent) Stop(ctx context.Context) error {
	return nil
}

func (r *ReconcileComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if r.reconciler == nil {
		return &daemon.ComponentHealth{
			Name:    r.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}
	if !r.ran {
		return &daemon.ComponentHealth{
			Name:    r.Name(),
			Healthy: false,
			Error:   fmt.Errorf("startup reconciliation pending"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    r.Name(),
		Healthy: true,
		Error:   nil,
	}, nil
}

// Reconcile runs an on-demand reconciliation pass.
func (r *ReconcileComponent) Reconcile(ctx context.Context) error {
	if r.reconciler == nil {
		return fmt.Errorf("reconciler not initialized")
	}
	r.reconciler.Reconcile(ctx)
	return nil
}
