package components

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/harunnryd/campwatch/internal/config"
	"github.com/harunnryd/campwatch/internal/daemon"
	"github.com/harunnryd/campwatch/internal/tracker"
)

// TrackerComponent owns the tracking state: the data directory lock, the
// persisted table, the threshold policy, and the manager everything else
// mutates state through.
type TrackerComponent struct {
	cfg      *config.Config
	fileLock *tracker.FileLock
	store    *tracker.Store
	policy   *tracker.Policy
	mgr      *tracker.Manager
}

func NewTrackerComponent(cfg *config.Config) *TrackerComponent {
	return &TrackerComponent{cfg: cfg}
}

func (t *TrackerComponent) Name() string {
	return "Tracker"
}

func (t *TrackerComponent) Dependencies() []string {
	return nil
}

func (t *TrackerComponent) Init(ctx context.Context) error {
	fileLock, err := tracker.NewFileLock(t.cfg.Tracker.DataPath, nil)
	if err != nil {
		return fmt.Errorf("failed to lock data directory: %w", err)
	}
	t.fileLock = fileLock

	t.store = tracker.NewStore(filepath.Join(t.cfg.Tracker.DataPath, "status-tracking.json"))
	t.policy = tracker.NewPolicy(t.cfg.Tracker)
	t.mgr = tracker.NewManager(t.policy, t.store)

	slog.Info("Tracker initialized", "component", t.Name(), "data_path", t.cfg.Tracker.DataPath)
	return nil
}

func (t *TrackerComponent) Start(ctx context.Context) error {
	if t.mgr == nil {
		return fmt.Errorf("tracker not initialized")
	}
	return nil
}

func (t *TrackerComponent) Stop(ctx context.Context) error {
	if t.mgr != nil {
		t.mgr.Persist()
	}
	if t.fileLock != nil {
		t.fileLock.Unlock()
	}
	slog.Info("Tracker stopped", "component", t.Name())
	return nil
}

func (t *TrackerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if t.mgr == nil {
		return &daemon.ComponentHealth{
			Name:    t.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}
	if t.fileLock == nil || !t.fileLock.IsLocked() {
		return &daemon.ComponentHealth{
			Name:    t.Name(),
			Healthy: false,
			Error:   fmt.Errorf("data directory lock not held"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    t.Name(),
		Healthy: true,
		Error:   nil,
	}, nil
}

func (t *TrackerComponent) GetManager() *tracker.Manager {
	return t.mgr
}

func (t *TrackerComponent) GetPolicy() *tracker.Policy {
	return t.policy
}
